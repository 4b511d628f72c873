// Package store implements the Local Store (spec.md C1): typed,
// indexed, persistent record storage with a single-writer transaction
// discipline. It follows the structural pattern of
// aghassemi-go.ref/services/syncbase/store: a small Store/Transaction
// interface pair plus a RunInTransaction-style helper, backed here by a
// pure-Go SQLite driver (modernc.org/sqlite) through sqlx rather than the
// teacher's cgo-wrapped LevelDB, since the spec calls for "a relational
// file (SQLite-style)".
package store

import (
	"context"

	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
)

// Filter narrows a Query to records matching all set fields. A zero-value
// field is "don't care" except for SinceUpdatedAt, which is exclusive of
// the Record whose UpdatedAt equals it (records already observed at that
// cursor are not re-returned).
type Filter struct {
	OrganizationID  string
	SinceUpdatedAt  int64
	IncludeDeleted  bool
	Limit           int
}

// Fields is a generic field map for Create/Update; it is marshaled to the
// record's JSON payload, with any of the kind's IndexedColumns promoted
// into real SQL columns for query performance.
type Fields map[string]interface{}

// Mutator reads the current fields of a record and returns the fields to
// write. Returning nil leaves the record unchanged (a no-op Update), used
// when a mutator decides the write isn't needed after inspecting state.
type Mutator func(current Fields) (Fields, error)

// Reader is the read side of the Local Store, satisfied both by the Store
// itself (outside a transaction, over a stable snapshot) and by a
// Transaction (inside a transaction, over its own uncommitted writes).
type Reader interface {
	Get(ctx context.Context, kind model.EntityKind, id string) (*model.Record, error)
	Query(ctx context.Context, kind model.EntityKind, filter Filter) ([]*model.Record, error)
}

// Writer is the write side of the Local Store. Its methods are available
// only on the Transaction passed to a Store.Write callback; Store itself
// does not implement Writer.
type Writer interface {
	Create(ctx context.Context, kind model.EntityKind, fields Fields) (*model.Record, error)
	Update(ctx context.Context, kind model.EntityKind, id string, mutate Mutator) (*model.Record, error)
	MarkDeleted(ctx context.Context, kind model.EntityKind, id string) error
}

// Transaction is a single write transaction: every mutation performed
// through it is visible atomically with respect to other writers.
type Transaction interface {
	Reader
	Writer
}

// TxnFunc is the body of a write transaction (spec.md C1's write(txn)).
type TxnFunc func(txn Transaction) error

// Store is the Local Store's public surface.
type Store interface {
	Reader

	// Write runs fn atomically with respect to other writers, under the
	// store's single-writer discipline (spec.md §5: "the store may choose
	// internally to serialize writes on a single queue; readers never
	// block writers").
	Write(ctx context.Context, fn TxnFunc) error

	// Compact physically removes tombstoned records of the given kind
	// older than olderThanMillis (SPEC_FULL.md supplement to §4.1's
	// "tombstoning ... until a compaction is triggered").
	Compact(ctx context.Context, kind model.EntityKind, olderThanMillis int64) (int, error)

	// Close releases the underlying database handle.
	Close() error
}
