package syncmanager

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/neighborhood-lab/care-commons-sub007/internal/clock"
	"github.com/neighborhood-lab/care-commons-sub007/internal/conflict"
	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
	"github.com/neighborhood-lab/care-commons-sub007/internal/network"
	"github.com/neighborhood-lab/care-commons-sub007/internal/offlinequeue"
	"github.com/neighborhood-lab/care-commons-sub007/internal/queuestore"
	"github.com/neighborhood-lab/care-commons-sub007/internal/store"
)

type fakeClock struct{ ms int64 }

func (f *fakeClock) NowMillis() int64         { f.ms++; return f.ms }
func (f *fakeClock) Now() time.Time           { return time.UnixMilli(f.ms) }
func (f *fakeClock) Monotonic() time.Duration { return time.Duration(f.ms) * time.Millisecond }

var _ clock.Clock = (*fakeClock)(nil)

type stubPuller struct {
	result PullResult
	err    error
	calls  int
}

func (s *stubPuller) Pull(ctx context.Context, since string) (PullResult, error) {
	s.calls++
	return s.result, s.err
}

type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, action model.QueuedAction) (int, bool, error) {
	return 0, false, nil
}

func newTestManager(t *testing.T, puller Puller) (*Manager, store.Store) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:", &fakeClock{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	dir := t.TempDir()
	qpersist := queuestore.Open[model.QueuedAction](dir, queuestore.KeyOfflineQueue)
	probe := network.New(true, 0, &fakeClock{})
	queue := offlinequeue.New(qpersist, probe, noopExecutor{}, nil, &fakeClock{}, offlinequeue.Config{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxRetries: 1}, nil, nil)

	excepts := conflict.NewExceptionQueue(queuestore.Open[model.ExceptionItem](dir, conflict.KeyExceptions), &fakeClock{})
	history := queuestore.Open[HistoryEntry](dir, KeyHistory)
	cursors := queuestore.Open[cursorRecord](dir, KeyCursor)

	m := New(queue, puller, db, probe, excepts, &fakeClock{}, history, cursors, Config{}, nil)
	return m, db
}

func TestManualSyncEmptyPullReturnsSuccess(t *testing.T) {
	m, _ := newTestManager(t, &stubPuller{result: PullResult{}})
	entry, err := m.ManualSync(context.Background())
	if err != nil {
		t.Fatalf("ManualSync: %v", err)
	}
	if !entry.Success {
		t.Errorf("expected success entry, got %+v", entry)
	}
	if m.State() != model.SyncIdle {
		t.Errorf("expected Idle after pass, got %v", m.State())
	}
}

func TestManualSyncPullFailureEntersBackingOff(t *testing.T) {
	m, _ := newTestManager(t, &stubPuller{err: errors.New("network down")})
	_, err := m.ManualSync(context.Background())
	if err == nil {
		t.Fatal("expected error from failed pull")
	}
	if m.State() != model.SyncBackingOff {
		t.Errorf("expected BackingOff, got %v", m.State())
	}
}

func TestManualSyncAppliesCreateChange(t *testing.T) {
	puller := &stubPuller{result: PullResult{
		Changes: []Change{{Kind: model.EntityNote, ID: "note-1", Op: "upsert", Record: map[string]interface{}{"noteText": "hello", "updated_at": float64(1)}}},
		Cursor:  "cursor-1",
	}}
	m, db := newTestManager(t, puller)
	ctx := context.Background()

	if _, err := m.ManualSync(ctx); err != nil {
		t.Fatalf("ManualSync: %v", err)
	}

	rec, err := db.Get(ctx, model.EntityNote, "note-1")
	if err != nil {
		t.Fatalf("Get after reconcile: %v", err)
	}
	if rec.ID != "note-1" {
		t.Errorf("expected note-1 to be created, got %+v", rec)
	}

	list, _ := m.GetSyncHistory(ctx)
	if len(list) != 1 || !list[0].Success {
		t.Errorf("expected one successful history entry, got %+v", list)
	}
}

func TestManualSyncConcurrentCallsShareOnePass(t *testing.T) {
	puller := &stubPuller{result: PullResult{}}
	m, _ := newTestManager(t, puller)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		_, _ = m.ManualSync(ctx)
		close(done)
	}()
	_, _ = m.ManualSync(ctx)
	<-done

	if puller.calls == 0 {
		t.Fatal("expected at least one pull")
	}
}

func TestApplyChangeEVVRecordCriticalConflictGoesToExceptionQueue(t *testing.T) {
	m, db := newTestManager(t, &stubPuller{})
	ctx := context.Background()

	_ = db.Write(ctx, func(txn store.Transaction) error {
		_, err := txn.Create(ctx, model.EntityEVVRecord, store.Fields{
			"id": "visit-9", "visitId": "visit-9", "clockInTime": float64(1000), "serviceDate": "2026-07-30",
		})
		return err
	})

	err := m.applyChange(ctx, Change{
		Kind: model.EntityEVVRecord, ID: "visit-9", Op: "upsert",
		Record: map[string]interface{}{"visitId": "visit-9", "clockInTime": float64(2000), "serviceDate": "2026-07-30"},
	})
	if err != nil {
		t.Fatalf("applyChange: %v", err)
	}

	pending, err := m.excepts.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].RecordID != "visit-9" {
		t.Errorf("expected clockInTime disagreement to land in the exception queue, got %+v", pending)
	}

	rec, err := db.Get(ctx, model.EntityEVVRecord, "visit-9")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var fields store.Fields
	_ = json.Unmarshal(rec.Payload, &fields)
	if fields["clockInTime"] != float64(1000) {
		t.Errorf("expected local record untouched pending manual review, got %+v", fields)
	}
}

func TestApplyChangeDeleteMarksDeleted(t *testing.T) {
	m, db := newTestManager(t, &stubPuller{})
	ctx := context.Background()

	_ = db.Write(ctx, func(txn store.Transaction) error {
		_, err := txn.Create(ctx, model.EntityNote, store.Fields{"id": "note-2", "noteText": "x"})
		return err
	})

	err := m.applyChange(ctx, Change{Kind: model.EntityNote, ID: "note-2", Op: "delete"})
	if err != nil {
		t.Fatalf("applyChange delete: %v", err)
	}

	recs, err := db.Query(ctx, model.EntityNote, store.Filter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "note-2" || !recs[0].Deleted {
		t.Errorf("expected record marked deleted, got %+v", recs)
	}
}
