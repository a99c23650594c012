package repo

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-attendance-backend/internal/domain"
)

func ensureUniqueIndex(t *testing.T, db *gorm.DB) {
	t.Helper()
	// Ensure uniqueness on key so the duplicate path is guaranteed.
	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_idem_key ON idempotency(key)`)
}

func TestGetIdempotency_BlankKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	rec, err := GetIdempotency(context.Background(), db, "   ", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID:        "expired",
		Key:       "k1",
		Status:    200,
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}

	rec2, err2 := GetIdempotency(context.Background(), db, "missing", now)
	if rec2 != nil || err2 != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec2, err2)
	}
}

func TestGetIdempotency_Success(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	ok := &domain.Idempotency{
		ID:        "ok",
		Key:       "k2",
		RunID:     "r1",
		Status:    201,
		CreatedAt: now.Add(-time.Minute),
		ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(ok).Error; err != nil {
		t.Fatalf("seed ok: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, "k2", now)
	if err != nil {
		t.Fatalf("GetIdempotency success err: %v", err)
	}
	if rec == nil || rec.RunID != "r1" || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestCreateIdempotency_SuccessAndDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ensureUniqueIndex(t, db)

	ttl := 90 * time.Minute
	start := time.Now().UTC()

	rec, err := CreateIdempotency(context.Background(), db, "k9", "r9", 202, ttl)
	if err != nil {
		t.Fatalf("CreateIdempotency error: %v", err)
	}
	if rec == nil || rec.ID == "" || rec.Key != "k9" || rec.RunID != "r9" || rec.Status != 202 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	// ExpiresAt should be in (start, start+2h), loose bound to avoid timing flakes.
	if !(rec.ExpiresAt.After(start) && rec.ExpiresAt.Before(start.Add(2*time.Hour))) {
		t.Fatalf("unexpected ExpiresAt: %v", rec.ExpiresAt)
	}

	_, err2 := CreateIdempotency(context.Background(), db, "k9", "rX", 200, ttl)
	if err2 != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err2)
	}
}

// Generic DB error path: attempt insert without migrating the table.
func TestCreateIdempotency_Error_NoTable(t *testing.T) {
	db := newTestDB(t) // intentionally NOT migrating idempotency
	_, err := CreateIdempotency(context.Background(), db, "kX", "rX", 200, time.Minute)
	if err == nil {
		t.Fatalf("expected error when table is missing")
	}
	if err == ErrDuplicate {
		t.Fatalf("expected non-duplicate error, got ErrDuplicate")
	}
}
