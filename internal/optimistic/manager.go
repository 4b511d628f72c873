// Package optimistic implements the Optimistic Update Manager (spec.md
// C7): it applies a proposed mutation to the Local Store immediately,
// journals enough to undo it, and exposes the undo and pending-work
// queries the rest of the core needs. Grounded on aghassemi-go.ref's
// watchable package, which journals every local store mutation as a
// replayable log entry the sync engine can walk back over; here the log
// entries are undo records instead of sync records.
package optimistic

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/neighborhood-lab/care-commons-sub007/internal/clock"
	"github.com/neighborhood-lab/care-commons-sub007/internal/corelog"
	"github.com/neighborhood-lab/care-commons-sub007/internal/corerrors"
	"github.com/neighborhood-lab/care-commons-sub007/internal/crypto"
	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
	"github.com/neighborhood-lab/care-commons-sub007/internal/queuestore"
	"github.com/neighborhood-lab/care-commons-sub007/internal/store"

	"go.uber.org/zap"
)

// maxSyncedPerKind is the §4.5 journal trim threshold.
const maxSyncedPerKind = 50

// Manager is the Optimistic Update Manager.
type Manager struct {
	db      store.Store
	journal *queuestore.Store[model.OptimisticUpdate]
	clock   clock.Clock
	log     *zap.Logger
}

// New returns a Manager backed by db for record mutation and journal for
// the persisted undo log (spec.md §6's `@optimistic_updates` blob).
func New(db store.Store, journal *queuestore.Store[model.OptimisticUpdate], clk clock.Clock, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{db: db, journal: journal, clock: clk, log: log}
}

// ApplyUpdate performs operation against (kind, id) in a single Local
// Store write transaction: it snapshots the current fields as a
// beforeImage (nil for create), performs the mutation, then appends an
// OptimisticUpdate recording what happened to the persisted journal.
func (m *Manager) ApplyUpdate(ctx context.Context, kind model.EntityKind, id string, operation model.OperationKind, proposed store.Fields) (*model.OptimisticUpdate, error) {
	var beforeImage []byte

	err := m.db.Write(ctx, func(txn store.Transaction) error {
		if operation != model.OpCreate {
			current, err := txn.Get(ctx, kind, id)
			if err != nil {
				if _, ok := err.(*store.ErrNotFound); !ok {
					return err
				}
			} else {
				beforeImage = current.Payload
			}
		}

		switch operation {
		case model.OpCreate:
			if proposed["id"] == nil {
				proposed = withID(proposed, id)
			}
			_, err := txn.Create(ctx, kind, proposed)
			return err
		case model.OpUpdate:
			_, err := txn.Update(ctx, kind, id, func(store.Fields) (store.Fields, error) {
				return proposed, nil
			})
			return err
		case model.OpDelete:
			return txn.MarkDeleted(ctx, kind, id)
		default:
			return corerrors.Newf(corerrors.KindValidation, "optimistic: unknown operation %q", operation)
		}
	})
	if err != nil {
		return nil, err
	}

	proposedJSON, err := json.Marshal(proposed)
	if err != nil {
		return nil, corerrors.Wrapf(err, corerrors.KindStore, "optimistic: marshal proposed state")
	}

	update := &model.OptimisticUpdate{
		ID:            crypto.NewID(),
		RecordKind:    kind,
		RecordID:      id,
		Operation:     operation,
		ProposedState: proposedJSON,
		BeforeImage:   beforeImage,
		Status:        model.UpdatePending,
		CreatedAt:     m.clock.NowMillis(),
	}

	list, err := m.journal.Load(ctx)
	if err != nil {
		return nil, err
	}
	list = append(list, *update)
	if err := m.journal.Save(ctx, list); err != nil {
		return nil, err
	}

	m.log.Debug("optimistic update applied", corelog.NewFields().Component("optimistic").Operation(string(operation)).Resource(string(kind), id)...)
	return update, nil
}

// MarkSynced sets updateId's status to SYNCED, then trims the journal so
// no record kind retains more than maxSyncedPerKind SYNCED entries
// (oldest discarded first).
func (m *Manager) MarkSynced(ctx context.Context, updateID string) error {
	list, err := m.journal.Load(ctx)
	if err != nil {
		return err
	}

	idx := indexOf(list, updateID)
	if idx < 0 {
		return corerrors.Newf(corerrors.KindStore, "optimistic: update %q not found", updateID)
	}
	list[idx].Status = model.UpdateSynced
	list[idx].SyncedAt = m.clock.NowMillis()

	list = trimSynced(list)
	return m.journal.Save(ctx, list)
}

// trimSynced keeps at most maxSyncedPerKind SYNCED entries per record kind,
// discarding the oldest (by CreatedAt) first. Non-SYNCED entries are never
// trimmed.
func trimSynced(list []model.OptimisticUpdate) []model.OptimisticUpdate {
	byKind := map[model.EntityKind][]int{}
	for i, u := range list {
		if u.Status == model.UpdateSynced {
			byKind[u.RecordKind] = append(byKind[u.RecordKind], i)
		}
	}

	drop := map[int]bool{}
	for _, idxs := range byKind {
		if len(idxs) <= maxSyncedPerKind {
			continue
		}
		sort.Slice(idxs, func(a, b int) bool { return list[idxs[a]].CreatedAt < list[idxs[b]].CreatedAt })
		for _, i := range idxs[:len(idxs)-maxSyncedPerKind] {
			drop[i] = true
		}
	}
	if len(drop) == 0 {
		return list
	}

	out := make([]model.OptimisticUpdate, 0, len(list)-len(drop))
	for i, u := range list {
		if !drop[i] {
			out = append(out, u)
		}
	}
	return out
}

// MarkFailed sets updateId's status to FAILED and, if rollback is true,
// invokes Rollback and advances the status to ROLLED_BACK on success.
func (m *Manager) MarkFailed(ctx context.Context, updateID string, cause error, rollback bool) error {
	list, err := m.journal.Load(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(list, updateID)
	if idx < 0 {
		return corerrors.Newf(corerrors.KindStore, "optimistic: update %q not found", updateID)
	}
	list[idx].Status = model.UpdateFailed
	list[idx].FailedAt = m.clock.NowMillis()
	if cause != nil {
		list[idx].ErrorMessage = cause.Error()
	}
	update := list[idx]
	if err := m.journal.Save(ctx, list); err != nil {
		return err
	}

	if !rollback {
		return nil
	}
	if err := m.Rollback(ctx, &update); err != nil {
		return err
	}

	list, err = m.journal.Load(ctx)
	if err != nil {
		return err
	}
	idx = indexOf(list, updateID)
	if idx >= 0 {
		list[idx].Status = model.UpdateRolledBack
		if err := m.journal.Save(ctx, list); err != nil {
			return err
		}
	}
	return nil
}

// Rollback undoes an OptimisticUpdate's local effect. create is undone by
// tombstoning the record it created; update is undone by writing its
// beforeImage back; delete cannot be undone (the deletion already
// tombstoned a record whose prior state this manager does not reconstruct)
// and is instead logged and surfaced as a manual-review item so nothing is
// silently lost.
func (m *Manager) Rollback(ctx context.Context, update *model.OptimisticUpdate) error {
	switch update.Operation {
	case model.OpCreate:
		return m.db.Write(ctx, func(txn store.Transaction) error {
			return txn.MarkDeleted(ctx, update.RecordKind, update.RecordID)
		})
	case model.OpUpdate:
		var before store.Fields
		if len(update.BeforeImage) > 0 {
			if err := json.Unmarshal(update.BeforeImage, &before); err != nil {
				return corerrors.Wrapf(err, corerrors.KindStore, "optimistic: decode beforeImage for %s", update.ID)
			}
		}
		return m.db.Write(ctx, func(txn store.Transaction) error {
			_, err := txn.Update(ctx, update.RecordKind, update.RecordID, func(store.Fields) (store.Fields, error) {
				return before, nil
			})
			return err
		})
	case model.OpDelete:
		m.log.Error("cannot un-delete, surfacing as manual review",
			corelog.NewFields().Component("optimistic").Operation("rollback").Resource(string(update.RecordKind), update.RecordID)...)
		return corerrors.Newf(corerrors.KindConflict, "cannot un-delete %s %s: requires manual review", update.RecordKind, update.RecordID)
	default:
		return corerrors.Newf(corerrors.KindValidation, "optimistic: unknown operation %q", update.Operation)
	}
}

// HasPendingUpdates reports whether (kind, id) has any PENDING optimistic
// update outstanding.
func (m *Manager) HasPendingUpdates(ctx context.Context, kind model.EntityKind, id string) (bool, error) {
	list, err := m.journal.Load(ctx)
	if err != nil {
		return false, err
	}
	var pending []*model.OptimisticUpdate
	for i := range list {
		if list[i].RecordKind == kind && list[i].RecordID == id {
			pending = append(pending, &list[i])
		}
	}
	return !model.Clean(pending), nil
}

// PendingCount returns the number of PENDING optimistic updates across all
// record kinds, surfaced through C11's getSyncState() (spec.md §4.9).
func (m *Manager) PendingCount(ctx context.Context) (int, error) {
	list, err := m.journal.Load(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, u := range list {
		if u.Status == model.UpdatePending {
			count++
		}
	}
	return count, nil
}

func indexOf(list []model.OptimisticUpdate, id string) int {
	for i, u := range list {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func withID(fields store.Fields, id string) store.Fields {
	out := store.Fields{"id": id}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
