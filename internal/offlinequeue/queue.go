// Package offlinequeue implements the Offline Queue (spec.md C8): a
// durable, priority-ordered retry queue with exponential backoff, fronted
// by a circuit breaker so a downed API doesn't turn every drain pass into
// a pile of slow, doomed HTTP calls.
package offlinequeue

import (
	"context"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"github.com/neighborhood-lab/care-commons-sub007/internal/clock"
	"github.com/neighborhood-lab/care-commons-sub007/internal/corelog"
	"github.com/neighborhood-lab/care-commons-sub007/internal/corerrors"
	"github.com/neighborhood-lab/care-commons-sub007/internal/crypto"
	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
	"github.com/neighborhood-lab/care-commons-sub007/internal/network"
	"github.com/neighborhood-lab/care-commons-sub007/internal/queuestore"

	"go.uber.org/zap"
)

// OptimisticNotifier is the subset of the Optimistic Update Manager (C7)
// the queue calls back into when a queued action finally succeeds,
// exhausts its retry budget, or fails fatally.
type OptimisticNotifier interface {
	MarkSynced(ctx context.Context, updateID string) error
	MarkFailed(ctx context.Context, updateID string, cause error, rollback bool) error
}

// Config configures a Queue.
type Config struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
}

// Queue is the Offline Queue.
type Queue struct {
	persist    *queuestore.Store[model.QueuedAction]
	probe      *network.Probe
	exec       Executor
	optimistic OptimisticNotifier
	clock      clock.Clock
	cfg        Config
	breaker    *gobreaker.CircuitBreaker
	metrics    *Metrics
	log        *zap.Logger
}

// New returns a Queue. optimistic may be nil if the caller has no
// optimistic-update linkage (e.g. a pure test harness); in that case
// MarkSynced/MarkFailed are simply not invoked.
func New(persist *queuestore.Store[model.QueuedAction], probe *network.Probe, exec Executor, optimistic OptimisticNotifier, clk clock.Clock, cfg Config, metrics *Metrics, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "offline_queue_http",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Queue{persist: persist, probe: probe, exec: exec, optimistic: optimistic, clock: clk, cfg: cfg, breaker: breaker, metrics: metrics, log: log}
}

// Enqueue appends a new action. priority defaults per spec.md §4.6's
// DefaultPriorityForKind table when priority is zero.
func (q *Queue) Enqueue(ctx context.Context, kind model.ActionKind, payload []byte, optimisticUpdateID string, priority model.Priority) (*model.QueuedAction, error) {
	if priority == 0 {
		priority = model.DefaultPriorityForKind(kind)
	}
	action := model.QueuedAction{
		ID:                 crypto.NewID(),
		Kind:               kind,
		Payload:            payload,
		EnqueuedAt:         q.clock.NowMillis(),
		Priority:           priority,
		MaxRetries:         q.cfg.MaxRetries,
		OptimisticUpdateID: optimisticUpdateID,
	}

	list, err := q.persist.Load(ctx)
	if err != nil {
		return nil, err
	}
	list = append(list, action)
	if err := q.persist.Save(ctx, list); err != nil {
		return nil, err
	}
	q.metrics.setQueueSize(len(list))
	return &action, nil
}

// Size returns the current persisted queue length.
func (q *Queue) Size(ctx context.Context) (int, error) {
	list, err := q.persist.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// Stats is a breakdown of the persisted queue by priority, surfaced
// through C11's getSyncState() (spec.md §4.9).
type Stats struct {
	Total        int
	ByPriority   map[model.Priority]int
	RetryingCount int
}

// Stats summarizes the current persisted queue.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	list, err := q.persist.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: len(list), ByPriority: make(map[model.Priority]int, 4)}
	for _, action := range list {
		stats.ByPriority[action.Priority]++
		if action.Retries > 0 {
			stats.RetryingCount++
		}
	}
	return stats, nil
}

// Clear empties the queue (P6: after Clear, Size() = 0).
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.persist.Clear(ctx); err != nil {
		return err
	}
	q.metrics.setQueueSize(0)
	return nil
}

// Drain runs one drain pass (spec.md §4.6). If the Network Probe reports
// offline, it does nothing: no network calls, no writes (P7).
func (q *Queue) Drain(ctx context.Context) error {
	if !q.probe.IsOnline() {
		return nil
	}

	list, err := q.persist.Load(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority > list[j].Priority
		}
		return list[i].EnqueuedAt < list[j].EnqueuedAt
	})

	now := q.clock.NowMillis()
	kept := make([]model.QueuedAction, 0, len(list))
	var failures []error

	for _, action := range list {
		if !action.EligibleAt(now) {
			kept = append(kept, action)
			continue
		}
		if action.Exhausted() {
			q.dropExhausted(ctx, &action)
			continue
		}

		status, hasStatus, execErr := q.executeWithBreaker(ctx, action)
		switch {
		case execErr == nil && hasStatus && status >= 200 && status < 300:
			q.onSuccess(ctx, &action)

		case classify(status, hasStatus) == ClassifyRetryable:
			q.scheduleRetry(&action, now, execErr, status, hasStatus)
			kept = append(kept, action)

		case classify(status, hasStatus) == ClassifyConflict:
			q.dropConflict(ctx, &action)

		default: // ClassifyFatal
			if err := q.dropFatal(ctx, &action, execErr, status); err != nil {
				failures = append(failures, err)
			}
		}
	}

	if err := q.persist.Save(ctx, kept); err != nil {
		return err
	}
	q.metrics.setQueueSize(len(kept))

	return corerrors.Chain(failures...)
}

func (q *Queue) executeWithBreaker(ctx context.Context, action model.QueuedAction) (int, bool, error) {
	type result struct {
		status    int
		hasStatus bool
	}
	r, err := q.breaker.Execute(func() (interface{}, error) {
		status, hasStatus, execErr := q.exec.Execute(ctx, action)
		if execErr != nil {
			return result{status, hasStatus}, execErr
		}
		return result{status, hasStatus}, nil
	})
	if r == nil {
		return 0, false, err
	}
	res := r.(result)
	return res.status, res.hasStatus, err
}

func (q *Queue) onSuccess(ctx context.Context, action *model.QueuedAction) {
	q.metrics.observeOutcome("success")
	q.log.Debug("queued action delivered", corelog.QueueFields(action.ID, string(action.Kind), int(action.Priority))...)
	if q.optimistic != nil && action.OptimisticUpdateID != "" {
		if err := q.optimistic.MarkSynced(ctx, action.OptimisticUpdateID); err != nil {
			q.log.Error("failed to mark optimistic update synced", corelog.QueueFields(action.ID, string(action.Kind), int(action.Priority)).Err(err)...)
		}
	}
}

func (q *Queue) scheduleRetry(action *model.QueuedAction, now int64, execErr error, status int, hasStatus bool) {
	action.Retries++
	msg := "network error"
	if execErr != nil {
		msg = execErr.Error()
	} else if hasStatus {
		msg = "server error"
	}
	action.Errors = append(action.Errors, model.ActionError{
		OccurredAt: now,
		Message:    msg,
		StatusCode: status,
	})
	action.LastAttemptAt = now
	action.NextRetryAt = now + delay(action.Retries, q.cfg.BaseDelay, q.cfg.MaxDelay).Milliseconds()
	q.metrics.observeOutcome("retry")
	q.log.Warn("queued action failed, retrying", corelog.QueueFields(action.ID, string(action.Kind), int(action.Priority)).Custom("retries", action.Retries)...)
}

func (q *Queue) dropExhausted(ctx context.Context, action *model.QueuedAction) {
	q.metrics.observeOutcome("dropped_exhausted")
	q.log.Error("queued action exhausted retry budget, dropping", corelog.QueueFields(action.ID, string(action.Kind), int(action.Priority))...)
	q.rollbackOptimistic(ctx, action, corerrors.Newf(corerrors.KindNetwork, "retry budget exhausted for action %s", action.ID))
}

func (q *Queue) dropFatal(ctx context.Context, action *model.QueuedAction, execErr error, status int) error {
	q.metrics.observeOutcome("dropped_fatal")
	cause := execErr
	if cause == nil {
		cause = corerrors.Newf(corerrors.KindServer, "action %s rejected with status %d", action.ID, status)
	}
	q.log.Error("queued action fatal, dropping", corelog.QueueFields(action.ID, string(action.Kind), int(action.Priority)).Err(cause)...)
	q.rollbackOptimistic(ctx, action, cause)
	return nil
}

// dropConflict removes the action from the queue without rolling back its
// optimistic update: the update stays PENDING and is reconciled once the
// Sync Manager's next pull surfaces the server's version of the record.
func (q *Queue) dropConflict(ctx context.Context, action *model.QueuedAction) {
	q.metrics.observeOutcome("dropped_conflict")
	q.log.Warn("queued action conflicted, routing to conflict resolver on next pull", corelog.QueueFields(action.ID, string(action.Kind), int(action.Priority))...)
}

func (q *Queue) rollbackOptimistic(ctx context.Context, action *model.QueuedAction, cause error) {
	if q.optimistic == nil || action.OptimisticUpdateID == "" {
		return
	}
	if err := q.optimistic.MarkFailed(ctx, action.OptimisticUpdateID, cause, true); err != nil {
		q.log.Error("rollback of optimistic update failed", corelog.QueueFields(action.ID, string(action.Kind), int(action.Priority)).Err(err)...)
	}
}
