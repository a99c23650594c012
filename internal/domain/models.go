// Package domain defines the core data model: the raw webhook message as it
// is persisted in period partitions, and the derived, never-persisted
// annotated record used by the report builder.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Placeholder is the bucket label used when a message carries no author name.
const Placeholder = "未設定"

// RawMessage is one inbound chat event, immutable once stored. Text and
// Username are the canonical fields; ReceivedAt is the authoritative instant
// (message-origination time when the transport supplied one, receipt time
// otherwise), already localized to the business timezone.
//
// Extra preserves every transport field the core does not interpret, so a
// stored partition round-trips the original payload verbatim. Records are
// kept in strict receipt order and are never deduplicated.
type RawMessage struct {
	Text       string
	Username   string
	ReceivedAt time.Time
	Extra      map[string]json.RawMessage
}

// reservedKeys are owned by the canonical fields and removed from Extra on
// decode. "message" is the legacy name of the text field.
var reservedKeys = [...]string{"text", "message", "username", "received_at"}

// MarshalJSON flattens the message into a single JSON object: passthrough
// fields first, canonical fields on top (canonical values win on key clash).
func (m RawMessage) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	text, err := json.Marshal(m.Text)
	if err != nil {
		return nil, err
	}
	out["text"] = text
	if m.Username != "" {
		u, err := json.Marshal(m.Username)
		if err != nil {
			return nil, err
		}
		out["username"] = u
	}
	if !m.ReceivedAt.IsZero() {
		at, err := json.Marshal(m.ReceivedAt.Format(time.RFC3339))
		if err != nil {
			return nil, err
		}
		out["received_at"] = at
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes either the current shape (text/username/received_at)
// or the legacy shape that keyed the body under "message". Unknown fields are
// retained in Extra. A malformed received_at is left zero rather than failing
// the whole partition; the report path skips such records.
func (m *RawMessage) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*m = RawMessage{}

	if raw, ok := fields["text"]; ok {
		_ = json.Unmarshal(raw, &m.Text)
	} else if raw, ok := fields["message"]; ok {
		_ = json.Unmarshal(raw, &m.Text)
	}
	if raw, ok := fields["username"]; ok {
		_ = json.Unmarshal(raw, &m.Username)
	}
	if raw, ok := fields["received_at"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				m.ReceivedAt = t
			}
		}
	}
	for _, k := range reservedKeys {
		delete(fields, k)
	}
	if len(fields) > 0 {
		m.Extra = fields
	}
	return nil
}

// Author returns the display name to bucket this message under, falling back
// to the Placeholder label when the transport supplied none.
func (m RawMessage) Author() string {
	if u := strings.TrimSpace(m.Username); u != "" {
		return u
	}
	return Placeholder
}

// AnnotatedRecord is one spreadsheet row, recomputed on every report run and
// never persisted. Exactly one of ClockIn, ClockOut and Unclassified is
// non-blank; the classifier enforces that invariant.
type AnnotatedRecord struct {
	Month        int
	Day          int
	Weekday      string // single-kanji label, 日 through 土
	ClockIn      string // "HH:MM" or blank
	ClockOut     string // "HH:MM" or blank
	Unclassified string // "HH:MM" or blank
	Tags         []string
	Body         string
}

// TagList renders the tag column value.
func (r AnnotatedRecord) TagList() string { return strings.Join(r.Tags, ", ") }
