// Package classify decides whether a message body represents a clock-in, a
// clock-out, or neither. Two interchangeable strategies exist: a zero-latency
// keyword match (the default and the correctness baseline) and a remote
// natural-language judgment call that degrades to "unclassified" on any
// failure. A privileged hashtag short-circuits either strategy to clock-in.
package classify

import (
	"context"
	"strings"

	"github.com/tbourn/go-attendance-backend/internal/extract"
)

// Default keyword lists, matching the phrasing attendance messages have used
// since the first revision of the bot.
var (
	defaultStartWords = []string{"開始"}
	defaultEndWords   = []string{"終了"}
)

// Request carries everything a strategy may need for one message.
type Request struct {
	Body      string   // tag-stripped message body
	Tags      []string // extracted hashtags, hash already removed
	TimeLabel string   // formatted local time to place into the chosen slot
}

// Result is the three-way exclusive outcome. Exactly one field holds the
// request's TimeLabel; the other two are empty strings.
type Result struct {
	ClockIn      string
	ClockOut     string
	Unclassified string
}

// Outcome returns a stable label for the populated slot, used for logging
// and metrics.
func (r Result) Outcome() string {
	switch {
	case r.ClockIn != "":
		return "clock_in"
	case r.ClockOut != "":
		return "clock_out"
	default:
		return "unclassified"
	}
}

// ClockIn builds a Result with the clock-in slot populated.
func ClockIn(label string) Result { return Result{ClockIn: label} }

// ClockOut builds a Result with the clock-out slot populated.
func ClockOut(label string) Result { return Result{ClockOut: label} }

// Unclassified builds a Result with the unclassified slot populated.
func Unclassified(label string) Result { return Result{Unclassified: label} }

// Classifier is a single-message classification strategy.
//
// Implementations never return an error: a strategy that cannot decide (or
// cannot reach its backend) must produce an unclassified Result so that one
// undecidable message never blocks report generation.
type Classifier interface {
	Classify(ctx context.Context, req Request) Result
}

// Keyword is the default strategy: a body containing a start keyword and no
// end keyword is a clock-in, the reverse is a clock-out, everything else
// (both, neither) is unclassified.
type Keyword struct {
	StartWords []string // defaults to 開始
	EndWords   []string // defaults to 終了
}

// Classify implements Classifier.
func (k Keyword) Classify(_ context.Context, req Request) Result {
	start := k.StartWords
	if len(start) == 0 {
		start = defaultStartWords
	}
	end := k.EndWords
	if len(end) == 0 {
		end = defaultEndWords
	}

	hasStart := containsAny(req.Body, start)
	hasEnd := containsAny(req.Body, end)
	switch {
	case hasStart && !hasEnd:
		return ClockIn(req.TimeLabel)
	case hasEnd && !hasStart:
		return ClockOut(req.TimeLabel)
	default:
		return Unclassified(req.TimeLabel)
	}
}

// Privileged wraps another strategy with the privileged-tag override: when
// the designated hashtag is present the message is a clock-in, full stop,
// and Next is never consulted (in particular, no remote call is made).
type Privileged struct {
	Tag  string
	Next Classifier
}

// Classify implements Classifier.
func (p Privileged) Classify(ctx context.Context, req Request) Result {
	if extract.HasTag(req.Tags, p.Tag) {
		return ClockIn(req.TimeLabel)
	}
	if p.Next == nil {
		return Keyword{}.Classify(ctx, req)
	}
	return p.Next.Classify(ctx, req)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}
