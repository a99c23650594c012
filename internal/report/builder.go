// Package report turns a period's raw message partition into per-user
// attendance tables and renders them as a multi-sheet spreadsheet. All output
// here is ephemeral: every run recomputes annotated rows from the partition.
package report

import (
	"context"

	"github.com/tbourn/go-attendance-backend/internal/classify"
	"github.com/tbourn/go-attendance-backend/internal/domain"
	"github.com/tbourn/go-attendance-backend/internal/extract"
)

// weekdayLabels maps time.Weekday (Sunday = 0) to the single-kanji labels
// used in the spreadsheet.
var weekdayLabels = [7]string{"日", "月", "火", "水", "木", "金", "土"}

// timeLabelLayout formats the clock column values.
const timeLabelLayout = "15:04"

// Options configures a build.
type Options struct {
	// Classifier decides the clock-in/clock-out/unclassified slot.
	// Nil falls back to the keyword strategy with default keywords.
	Classifier classify.Classifier
	// Concurrency bounds parallel classification calls; <=1 is sequential.
	Concurrency int
}

// Report holds one ordered table per user. Users preserves first-arrival
// order so sheet order is stable across runs of the same partition.
type Report struct {
	Users []string
	Rows  map[string][]domain.AnnotatedRecord

	// Messages counts annotated rows; Skipped counts records dropped for
	// missing an authoritative instant.
	Messages int
	Skipped  int
}

// Build annotates every message in partition order: tags and body are
// extracted, the body is classified using the message's formatted local
// time, and the resulting row is appended to the author's bucket. Records
// without an authoritative instant cannot be placed on a date row and are
// skipped, not fatal.
func Build(ctx context.Context, msgs []domain.RawMessage, opts Options) *Report {
	c := opts.Classifier
	if c == nil {
		c = classify.Keyword{}
	}

	r := &Report{Rows: make(map[string][]domain.AnnotatedRecord)}

	kept := make([]domain.RawMessage, 0, len(msgs))
	reqs := make([]classify.Request, 0, len(msgs))
	tagLists := make([][]string, 0, len(msgs))
	bodies := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.ReceivedAt.IsZero() {
			r.Skipped++
			continue
		}
		tags, body := extract.Tags(m.Text)
		kept = append(kept, m)
		tagLists = append(tagLists, tags)
		bodies = append(bodies, body)
		reqs = append(reqs, classify.Request{
			Body:      body,
			Tags:      tags,
			TimeLabel: m.ReceivedAt.Format(timeLabelLayout),
		})
	}

	results := classify.All(ctx, c, reqs, opts.Concurrency)

	for i, m := range kept {
		user := m.Author()
		if _, seen := r.Rows[user]; !seen {
			r.Users = append(r.Users, user)
		}
		r.Rows[user] = append(r.Rows[user], domain.AnnotatedRecord{
			Month:        int(m.ReceivedAt.Month()),
			Day:          m.ReceivedAt.Day(),
			Weekday:      weekdayLabels[m.ReceivedAt.Weekday()],
			ClockIn:      results[i].ClockIn,
			ClockOut:     results[i].ClockOut,
			Unclassified: results[i].Unclassified,
			Tags:         tagLists[i],
			Body:         bodies[i],
		})
		r.Messages++
	}
	return r
}

// Counts tallies rows per classification outcome, for logging and metrics.
func (r *Report) Counts() (clockIn, clockOut, unclassified int) {
	for _, rows := range r.Rows {
		for _, rec := range rows {
			switch {
			case rec.ClockIn != "":
				clockIn++
			case rec.ClockOut != "":
				clockOut++
			default:
				unclassified++
			}
		}
	}
	return
}
