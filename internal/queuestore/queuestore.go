// Package queuestore implements the Durable Queue Store (spec.md C2): a
// single ordered list persisted per key, with atomic replace-on-save
// semantics. It backs the Offline Queue's action list, the Optimistic
// Update Manager's journal, and the record-snapshot blob, the same way
// aghassemi-go.ref's watchable package persists a single ordered change
// log that downstream readers replay from the start on every load.
package queuestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/neighborhood-lab/care-commons-sub007/internal/corerrors"
)

// Store is one key's durable ordered list. T is the element type (e.g.
// model.QueuedAction); Store is parameterized per key rather than generic
// over keys so each caller gets a type-safe Load/Save pair.
type Store[T any] struct {
	path string
	mu   sync.Mutex
}

// Well-known keys (spec.md §6).
const (
	KeyOfflineQueue     = "@offline_queue"
	KeyOptimisticUpdates = "@optimistic_updates"
	KeyRecordSnapshots  = "@record_snapshots"
)

// Open returns a Store backed by a single file named key under dir. The
// file holds the list as encoding/json writes it (UTF-8; struct fields in
// declaration order, map keys sorted); it is not passed through
// crypto.Canonicalize.
func Open[T any](dir, key string) *Store[T] {
	return &Store[T]{path: filepath.Join(dir, key+".json")}
}

// Load reads the persisted list, or an empty list if the file has never
// been saved. A save that crashed mid-write never leaves a load seeing a
// partial result: Save always writes to a temp file and renames, which on
// every target filesystem this core runs on is atomic with respect to a
// concurrent open+read.
func (s *Store[T]) Load(ctx context.Context) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []T{}, nil
	}
	if err != nil {
		return nil, corerrors.Wrapf(err, corerrors.KindStore, "queuestore: read %s", s.path)
	}
	if len(data) == 0 {
		return []T{}, nil
	}
	var list []T
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, corerrors.Wrapf(err, corerrors.KindStore, "queuestore: decode %s", s.path)
	}
	return list, nil
}

// Save atomically replaces the persisted list. It never leaves a partially
// written file visible to a concurrent Load: the new content is written to
// a sibling temp file and then renamed into place, and rename is atomic on
// the same filesystem.
func (s *Store[T]) Save(ctx context.Context, list []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if list == nil {
		list = []T{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return corerrors.Wrapf(err, corerrors.KindStore, "queuestore: encode %s", s.path)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return corerrors.Wrapf(err, corerrors.KindStore, "queuestore: mkdir for %s", s.path)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return corerrors.Wrapf(err, corerrors.KindStore, "queuestore: write %s", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return corerrors.Wrapf(err, corerrors.KindStore, "queuestore: rename %s", tmp)
	}
	return nil
}

// Clear removes the persisted list entirely; a subsequent Load returns an
// empty list.
func (s *Store[T]) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return corerrors.Wrapf(err, corerrors.KindStore, "queuestore: clear %s", s.path)
	}
	return nil
}
