// Package period implements the 11th-to-10th billing window used to partition
// attendance messages. A Period is computed purely from a calendar date;
// callers are expected to pass instants that are already localized to the
// configured business timezone.
package period

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// cutoverDay is the last day of the month that still belongs to the previous
// billing window. Day 11 opens a new window.
const cutoverDay = 10

// Period is the half-open billing window [Start .. End] at date granularity.
// Start always falls on the 11th and End on the 10th of the following month.
// Both bounds are stored at midnight UTC and carry date information only.
type Period struct {
	Start time.Time
	End   time.Time
}

// For maps an instant to its enclosing billing window.
//
// Rules:
//   - day <= 10: the window is (previous month 11 .. this month 10)
//   - day >  10: the window is (this month 11 .. next month 10)
//
// Month arithmetic wraps across year boundaries in both directions; time.Date
// normalizes month 0 and month 13 for us.
func For(t time.Time) Period {
	y, m, d := t.Date()
	if d <= cutoverDay {
		return Period{
			Start: time.Date(y, m-1, 11, 0, 0, 0, 0, time.UTC),
			End:   time.Date(y, m, 10, 0, 0, 0, 0, time.UTC),
		}
	}
	return Period{
		Start: time.Date(y, m, 11, 0, 0, 0, 0, time.UTC),
		End:   time.Date(y, m+1, 10, 0, 0, 0, 0, time.UTC),
	}
}

// Contains reports whether the calendar date of t falls inside the window.
// Only the date components of t are considered.
func (p Period) Contains(t time.Time) bool {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !day.Before(p.Start) && !day.After(p.End)
}

// Stem returns the canonical filename stem for the window:
//
//	messages_{startYYYYMM}_{startDD}-{endYYYYMM}_{endDD}
//
// The stem is a pure function of the Period: equal periods always produce the
// same stem. Callers append ".json" or ".xlsx" as needed.
func (p Period) Stem() string {
	return fmt.Sprintf("messages_%04d%02d_%02d-%04d%02d_%02d",
		p.Start.Year(), int(p.Start.Month()), p.Start.Day(),
		p.End.Year(), int(p.End.Month()), p.End.Day())
}

// JSONName returns the partition filename for the window.
func (p Period) JSONName() string { return p.Stem() + ".json" }

// XLSXName returns the report filename for the window.
func (p Period) XLSXName() string { return p.Stem() + ".xlsx" }

// stemRE matches the canonical stem with an optional extension.
var stemRE = regexp.MustCompile(`^messages_(\d{4})(\d{2})_(\d{2})-(\d{4})(\d{2})_(\d{2})$`)

// ParseStem recovers a Period from a filename stem (extension tolerated).
// The second return value is false when the name does not follow the
// canonical layout or encodes an impossible window.
func ParseStem(name string) (Period, bool) {
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".json"), ".xlsx")
	m := stemRE.FindStringSubmatch(name)
	if m == nil {
		return Period{}, false
	}
	p := Period{
		Start: time.Date(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]), 0, 0, 0, 0, time.UTC),
		End:   time.Date(atoi(m[4]), time.Month(atoi(m[5])), atoi(m[6]), 0, 0, 0, 0, time.UTC),
	}
	// Reject stems whose digits do not round-trip (e.g. month 13) or whose
	// bounds are not an 11th-to-10th window.
	if p.Stem() != name || p.Start.Day() != 11 || p.End.Day() != cutoverDay || !p.End.After(p.Start) {
		return Period{}, false
	}
	return p, true
}

// atoi parses digit-only input already validated by stemRE.
func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
