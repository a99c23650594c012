// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPage normalizes pagination inputs: pages below 1 become 1, sizes
// outside (0, max] become def.
func ClampPage(page, size, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > max {
		size = def
	}
	return page, size
}
