package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-attendance-backend/internal/domain"
	"github.com/tbourn/go-attendance-backend/internal/period"
)

var testPeriod = period.For(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))

func msg(text, user string, hour int) domain.RawMessage {
	return domain.RawMessage{
		Text:       text,
		Username:   user,
		ReceivedAt: time.Date(2024, time.March, 15, hour, 0, 0, 0, time.UTC),
	}
}

func TestAppendLoad_RoundTrip(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	in := msg("業務開始 #task", "Alice", 9)
	in.Extra = map[string]json.RawMessage{"post_id": json.RawMessage(`7`)}
	if err := s.Append(ctx, testPeriod, in); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := s.Load(ctx, testPeriod)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	if got[0].Text != in.Text || got[0].Username != in.Username || !got[0].ReceivedAt.Equal(in.ReceivedAt) {
		t.Fatalf("round trip mismatch: %+v", got[0])
	}
	if string(got[0].Extra["post_id"]) != `7` {
		t.Fatalf("extra field lost: %v", got[0].Extra)
	}
}

func TestLoad_AbsentPartitionIsEmpty(t *testing.T) {
	s := New(t.TempDir())
	got, err := s.Load(context.Background(), testPeriod)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d messages, want 0", len(got))
	}
}

func TestAppend_PreservesOrderAndDuplicates(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	dup := msg("業務開始", "Alice", 9)
	for _, m := range []domain.RawMessage{dup, msg("業務終了", "Bob", 18), dup} {
		if err := s.Append(ctx, testPeriod, m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.Load(ctx, testPeriod)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("duplicates must be preserved verbatim, got %d messages", len(got))
	}
	if got[0].Text != "業務開始" || got[1].Text != "業務終了" || got[2].Text != "業務開始" {
		t.Fatalf("order not preserved: %+v", got)
	}
}

func TestLoad_LegacyContainerShape(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	legacy := `{"raw_messages":[
		{"text":"業務開始","username":"Alice","received_at":"2024-03-15T09:00:00+09:00"},
		{"message":"業務終了","username":"Alice","received_at":"2024-03-15T18:00:00+09:00"}
	]}`
	if err := os.WriteFile(s.Path(testPeriod), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(context.Background(), testPeriod)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	// Both the container shape and the legacy "message" key normalize.
	if got[0].Text != "業務開始" || got[1].Text != "業務終了" {
		t.Fatalf("normalization failed: %+v", got)
	}
}

func TestLoad_LegacyAndBareShapesAgree(t *testing.T) {
	ctx := context.Background()
	bare := New(t.TempDir())
	wrapped := New(t.TempDir())

	records := `[{"text":"a","username":"u"},{"text":"b","username":"u"}]`
	if err := os.WriteFile(bare.Path(testPeriod), []byte(records), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(wrapped.Path(testPeriod), []byte(`{"raw_messages":`+records+`}`), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := bare.Load(ctx, testPeriod)
	if err != nil {
		t.Fatal(err)
	}
	b, err := wrapped.Load(ctx, testPeriod)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) || a[0].Text != b[0].Text || a[1].Text != b[1].Text {
		t.Fatalf("shapes disagree: %+v vs %+v", a, b)
	}
}

func TestLoad_CorruptPartition(t *testing.T) {
	s := New(t.TempDir())
	if err := os.WriteFile(s.Path(testPeriod), []byte(`[{"text": truncated`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Load(context.Background(), testPeriod)
	if !errors.Is(err, ErrCorruptPartition) {
		t.Fatalf("err = %v, want ErrCorruptPartition", err)
	}
}

func TestAppend_RefusesCorruptPartition(t *testing.T) {
	s := New(t.TempDir())
	if err := os.WriteFile(s.Path(testPeriod), []byte(`not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	err := s.Append(context.Background(), testPeriod, msg("x", "u", 9))
	if !errors.Is(err, ErrCorruptPartition) {
		t.Fatalf("err = %v, want ErrCorruptPartition", err)
	}
}

func TestAppend_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	if err := s.Append(context.Background(), testPeriod, msg("x", "u", 9)); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestAppend_ConcurrentWriters(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Append(ctx, testPeriod, msg("開始", "u", 9)); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Load(ctx, testPeriod)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != n {
		t.Fatalf("got %d messages, want %d (lost appends)", len(got), n)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	ctx := context.Background()

	p1 := period.For(time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC))
	p2 := period.For(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))
	for _, p := range []period.Period{p2, p1} {
		if err := s.Append(ctx, p, msg("x", "u", 9)); err != nil {
			t.Fatal(err)
		}
	}
	// Non-partition files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "messages_bogus.json"), []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d partitions, want 2", len(got))
	}
	if !got[0].Start.Before(got[1].Start) {
		t.Fatalf("partitions not sorted: %v", got)
	}
}

func TestExists(t *testing.T) {
	s := New(t.TempDir())
	if s.Exists(testPeriod) {
		t.Fatal("Exists = true before any write")
	}
	if err := s.Append(context.Background(), testPeriod, msg("x", "u", 9)); err != nil {
		t.Fatal(err)
	}
	if !s.Exists(testPeriod) {
		t.Fatal("Exists = false after append")
	}
}
