package store

import (
	"fmt"

	"github.com/neighborhood-lab/care-commons-sub007/internal/corerrors"
)

// ErrNotFound reports a Get/Update against an ID that does not exist (or is
// not visible because it is a tombstone: Get never returns tombstoned
// records, and Query returns them only with Filter.IncludeDeleted).
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("store: %s %q not found", e.Kind, e.ID)
}

func wrapNotFound(kind, id string) error {
	return corerrors.Wrap(&ErrNotFound{Kind: kind, ID: id}, corerrors.KindStore, "record not found").
		WithDetailsf("kind=%s id=%s", kind, id)
}

func wrapSQLError(op string, err error) error {
	if err == nil {
		return nil
	}
	return corerrors.Wrapf(err, corerrors.KindStore, "store: %s failed", op)
}
