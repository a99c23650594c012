// Package store persists raw webhook messages as one JSON partition file per
// billing period. A partition is a JSON array of message objects; every
// append rewrites the whole file through a temp-file/rename pair so a crash
// mid-write never truncates the partition. Appends to the same partition are
// serialized by an in-process mutex (the webhook path is the only writer).
//
// Loads normalize two legacy layouts: a root object holding the array under
// "raw_messages", and records keying the body under "message" instead of
// "text" (handled by domain.RawMessage itself).
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tbourn/go-attendance-backend/internal/domain"
	"github.com/tbourn/go-attendance-backend/internal/period"
)

// ErrCorruptPartition wraps JSON decode failures so callers can treat the
// partition as unprocessable without aborting a batch run.
var ErrCorruptPartition = errors.New("store: corrupt partition")

// Store manages the partition files under a single data directory.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a Store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}
}

// Path returns the partition file path for the period.
func (s *Store) Path(p period.Period) string {
	return filepath.Join(s.dir, p.JSONName())
}

// Exists reports whether a partition file is present for the period.
func (s *Store) Exists(p period.Period) bool {
	_, err := os.Stat(s.Path(p))
	return err == nil
}

// Append adds msg to the end of the period's partition, creating the file on
// first write. An absent file is an empty partition, never an error; a file
// that exists but does not parse is an error, because silently resetting it
// would drop previously stored messages.
func (s *Store) Append(ctx context.Context, p period.Period, msg domain.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := s.partitionLock(p.Stem())
	lock.Lock()
	defer lock.Unlock()

	path := s.Path(p)
	msgs, err := s.readPartition(path)
	if err != nil {
		return err
	}
	msgs = append(msgs, msg)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: create data dir: %w", err)
	}
	return writeAtomic(path, msgs)
}

// Load returns the partition's messages in stored (receipt) order. An absent
// partition loads as an empty list.
func (s *Store) Load(ctx context.Context, p period.Period) ([]domain.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readPartition(s.Path(p))
}

// List scans the data directory and returns the periods of every partition
// file whose name parses as a canonical stem, sorted by start date.
func (s *Store) List(ctx context.Context) ([]period.Period, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := filepath.Glob(filepath.Join(s.dir, "messages_*.json"))
	if err != nil {
		return nil, err
	}
	out := make([]period.Period, 0, len(names))
	for _, name := range names {
		if p, ok := period.ParseStem(filepath.Base(name)); ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// readPartition decodes a partition file, tolerating the legacy container
// shape. Absent file ⇒ empty slice.
func (s *Store) readPartition(path string) ([]domain.RawMessage, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodePartition(data)
}

// decodePartition accepts either the current root shape (a bare array) or
// the legacy container object {"raw_messages": [...]}.
func decodePartition(data []byte) ([]domain.RawMessage, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return []domain.RawMessage{}, nil
	}

	if trimmed[0] == '{' {
		var container struct {
			RawMessages []domain.RawMessage `json:"raw_messages"`
		}
		if err := json.Unmarshal(trimmed, &container); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptPartition, err)
		}
		if container.RawMessages == nil {
			return []domain.RawMessage{}, nil
		}
		return container.RawMessages, nil
	}

	var msgs []domain.RawMessage
	if err := json.Unmarshal(trimmed, &msgs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPartition, err)
	}
	return msgs, nil
}

// writeAtomic marshals msgs and replaces path via a same-directory temp file
// and rename, so readers only ever observe a complete partition.
func writeAtomic(path string, msgs []domain.RawMessage) error {
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// partitionLock returns the mutex guarding one partition's read-modify-write.
func (s *Store) partitionLock(stem string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[stem]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[stem] = lock
	}
	return lock
}
