// Package services defines the business logic for message intake and report
// generation. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrEmptyText is returned when a webhook payload contains no message
	// text under any recognized key.
	ErrEmptyText = errors.New("message text is empty")

	// ErrInvalidPeriod is returned when a report is requested for a period
	// string that does not parse as a partition stem.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrPeriodNotFound indicates that no partition file exists for the
	// requested period.
	ErrPeriodNotFound = errors.New("period not found")
)
