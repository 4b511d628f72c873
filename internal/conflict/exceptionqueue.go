package conflict

import (
	"context"
	"sort"

	"github.com/neighborhood-lab/care-commons-sub007/internal/clock"
	"github.com/neighborhood-lab/care-commons-sub007/internal/crypto"
	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
	"github.com/neighborhood-lab/care-commons-sub007/internal/queuestore"
)

// KeyExceptions is the exception queue's queuestore blob key. Manual-review
// items are a SPEC_FULL.md supplement: spec.md names `manual` resolutions
// and RequiresManualReview but not where they're held pending a
// supervisor's decision, so this follows the same persisted-blob pattern
// C2 already defines for `@offline_queue` and `@optimistic_updates`.
const KeyExceptions = "@exceptions"

// ExceptionQueue holds ConflictResolutions that require a human decision.
type ExceptionQueue struct {
	persist *queuestore.Store[model.ExceptionItem]
	clock   clock.Clock
}

// NewExceptionQueue returns an ExceptionQueue backed by persist.
func NewExceptionQueue(persist *queuestore.Store[model.ExceptionItem], clk clock.Clock) *ExceptionQueue {
	return &ExceptionQueue{persist: persist, clock: clk}
}

// Add appends a new unresolved exception for (kind, recordID).
func (q *ExceptionQueue) Add(ctx context.Context, kind model.EntityKind, recordID string, resolution model.ConflictResolution) (*model.ExceptionItem, error) {
	item := model.ExceptionItem{
		ID:         crypto.NewID(),
		Kind:       kind,
		RecordID:   recordID,
		CreatedAt:  q.clock.NowMillis(),
		Resolution: resolution,
	}

	list, err := q.persist.Load(ctx)
	if err != nil {
		return nil, err
	}
	list = append(list, item)
	if err := q.persist.Save(ctx, list); err != nil {
		return nil, err
	}
	return &item, nil
}

// Pending returns every unresolved exception, oldest first.
func (q *ExceptionQueue) Pending(ctx context.Context) ([]model.ExceptionItem, error) {
	list, err := q.persist.Load(ctx)
	if err != nil {
		return nil, err
	}
	var pending []model.ExceptionItem
	for _, item := range list {
		if !item.Resolved {
			pending = append(pending, item)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt < pending[j].CreatedAt })
	return pending, nil
}

// Resolve marks an exception resolved, supplying the decision applied.
func (q *ExceptionQueue) Resolve(ctx context.Context, id string, resolution model.ConflictResolution) error {
	list, err := q.persist.Load(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == id {
			list[i].Resolved = true
			list[i].ResolvedAt = q.clock.NowMillis()
			list[i].Resolution = resolution
			return q.persist.Save(ctx, list)
		}
	}
	return nil
}
