// Package services – WebhookService
//
// This file implements WebhookService, the application-level component that
// turns raw webhook payloads into stored messages. It extracts the message
// text and author, resolves the receipt instant, buckets the message into its
// billing period, and appends it to the partition file.
//
// Duplicate payloads are stored as-is: intake must never drop or collapse
// messages, because the report stage is the only place where interpretation
// happens.
//
// Observability: Receive is OpenTelemetry-instrumented; spans include the
// resolved partition stem and author.
package services

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-attendance-backend/internal/domain"
	"github.com/tbourn/go-attendance-backend/internal/period"
	"github.com/tbourn/go-attendance-backend/internal/store"
)

// consumedKeys are payload keys mapped onto RawMessage fields or used for
// authentication; everything else is preserved verbatim in Extra.
var consumedKeys = map[string]struct{}{
	"text":      {},
	"message":   {},
	"username":  {},
	"timestamp": {},
	"token":     {},
}

// WebhookService persists incoming chat messages into period partitions.
type WebhookService struct {
	Store *store.Store

	// Loc is the zone used to bucket messages into periods. Nil means UTC.
	Loc *time.Location

	// Now is overridable for tests; nil uses time.Now.
	Now func() time.Time
}

// Receive stores one webhook payload and returns the persisted message along
// with the period it was filed under.
func (s *WebhookService) Receive(ctx context.Context, payload map[string]any) (*domain.RawMessage, period.Period, error) {
	tr := otel.Tracer("services/WebhookService")
	ctx, span := tr.Start(ctx, "Receive")
	defer span.End()

	text := stringField(payload, "text")
	if text == "" {
		text = stringField(payload, "message")
	}
	if strings.TrimSpace(text) == "" {
		return nil, period.Period{}, ErrEmptyText
	}

	msg := domain.RawMessage{
		Text:       text,
		Username:   stringField(payload, "username"),
		ReceivedAt: s.receivedAt(payload),
	}
	for k, v := range payload {
		if _, consumed := consumedKeys[k]; consumed {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		if msg.Extra == nil {
			msg.Extra = make(map[string]json.RawMessage)
		}
		msg.Extra[k] = raw
	}

	p := period.For(msg.ReceivedAt)
	span.SetAttributes(
		attribute.String("period.stem", p.Stem()),
		attribute.String("message.author", msg.Author()),
	)

	if err := s.Store.Append(ctx, p, msg); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		return nil, period.Period{}, err
	}

	messagesReceived.Inc()
	log.Ctx(ctx).Debug().
		Str("period", p.Stem()).
		Str("author", msg.Author()).
		Msg("message stored")
	return &msg, p, nil
}

// receivedAt resolves the message instant: a numeric "timestamp" field wins
// (unix seconds, or milliseconds when the magnitude says so), otherwise the
// receipt time is used. The result is localized to the configured zone.
func (s *WebhookService) receivedAt(payload map[string]any) time.Time {
	loc := s.Loc
	if loc == nil {
		loc = time.UTC
	}

	if v, ok := payload["timestamp"]; ok {
		if sec, ok := numericTimestamp(v); ok {
			return time.Unix(sec, 0).In(loc)
		}
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().In(loc)
}

// numericTimestamp accepts float64 (JSON numbers) and decimal strings.
// Values above 1e12 are treated as milliseconds.
func numericTimestamp(v any) (int64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if n <= 0 {
		return 0, false
	}
	if n > 1e12 {
		n /= 1000
	}
	return int64(n), true
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
