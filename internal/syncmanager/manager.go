package syncmanager

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"go.uber.org/zap"

	"github.com/neighborhood-lab/care-commons-sub007/internal/clock"
	"github.com/neighborhood-lab/care-commons-sub007/internal/conflict"
	"github.com/neighborhood-lab/care-commons-sub007/internal/corelog"
	"github.com/neighborhood-lab/care-commons-sub007/internal/corerrors"
	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
	"github.com/neighborhood-lab/care-commons-sub007/internal/network"
	"github.com/neighborhood-lab/care-commons-sub007/internal/offlinequeue"
	"github.com/neighborhood-lab/care-commons-sub007/internal/queuestore"
	"github.com/neighborhood-lab/care-commons-sub007/internal/store"
)

const defaultHistoryCapacity = 20

// KeyHistory and KeyCursor are the queuestore blob keys callers should
// open the Manager's history and cursor stores with.
const (
	KeyHistory = "@sync_history"
	KeyCursor  = "@sync_cursor"
)

// cursorRecord is the single-element list queuestore persists the pull
// cursor as, reusing C2's blob mechanism rather than adding a new
// storage layer just for one string.
type cursorRecord struct {
	Cursor string `json:"cursor"`
}

// NewCursorStore opens the queuestore blob a Manager persists its pull
// cursor in. Callers construct one of these to pass to New since
// cursorRecord is this package's own internal wire shape.
func NewCursorStore(dir string) *queuestore.Store[cursorRecord] {
	return queuestore.Open[cursorRecord](dir, KeyCursor)
}

// Puller performs the server pull leg of a sync pass (spec.md §6's
// `GET {base}/sync?since=<cursor>`).
type Puller interface {
	Pull(ctx context.Context, since string) (PullResult, error)
}

// Manager is the Sync Manager.
type Manager struct {
	queue   *offlinequeue.Queue
	puller  Puller
	db      store.Store
	probe   *network.Probe
	clock   clock.Clock
	history *queuestore.Store[HistoryEntry]
	cursors *queuestore.Store[cursorRecord]
	excepts *conflict.ExceptionQueue

	sf singleflight.Group

	mu          sync.Mutex
	state       model.SyncState
	lastSyncAt  int64
	lastSuccess bool

	syncInterval time.Duration
	backoffAfter time.Duration
	log          *zap.Logger
}

// Config configures a Manager.
type Config struct {
	SyncInterval time.Duration
	BackoffAfter time.Duration
}

// New returns a Manager in the Idle state.
func New(queue *offlinequeue.Queue, puller Puller, db store.Store, probe *network.Probe, excepts *conflict.ExceptionQueue, clk clock.Clock, historyStore *queuestore.Store[HistoryEntry], cursorStore *queuestore.Store[cursorRecord], cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		queue: queue, puller: puller, db: db, probe: probe, clock: clk,
		history: historyStore, cursors: cursorStore, excepts: excepts,
		state: model.SyncIdle, syncInterval: cfg.SyncInterval, backoffAfter: cfg.BackoffAfter, log: log,
	}
}

// State returns the current orchestration state.
func (m *Manager) State() model.SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s model.SyncState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.log.Debug("sync state transition", corelog.SyncFields(string(s))...)
}

// ManualSync triggers (or joins) one sync pass. Concurrent callers while a
// pass is already in flight receive that same pass's result rather than
// starting a second one (spec.md §4.8/§5).
func (m *Manager) ManualSync(ctx context.Context) (HistoryEntry, error) {
	v, err, _ := m.sf.Do("sync-pass", func() (interface{}, error) {
		return m.runPass(ctx)
	})
	if v == nil {
		return HistoryEntry{}, err
	}
	return v.(HistoryEntry), err
}

// Tick runs one pass on every call, exactly as ManualSync does. It does not
// check whether the periodic interval has elapsed or whether connectivity
// just transitioned online; it runs the pass regardless.
func (m *Manager) Tick(ctx context.Context) (HistoryEntry, error) {
	return m.ManualSync(ctx)
}

func (m *Manager) runPass(ctx context.Context) (HistoryEntry, error) {
	m.setState(model.SyncDraining)
	drainErr := m.queue.Drain(ctx)
	if drainErr != nil {
		m.log.Warn("drain completed with per-item failures", corelog.SyncFields(string(model.SyncDraining)).Err(drainErr)...)
	}

	m.setState(model.SyncPulling)
	cursor := m.loadCursor(ctx)
	result, err := m.puller.Pull(ctx, cursor)
	if err != nil {
		return m.finishBackingOff(ctx, err)
	}

	if len(result.Changes) > 0 {
		m.setState(model.SyncReconciling)
		for _, change := range result.Changes {
			if err := m.applyChange(ctx, change); err != nil {
				m.log.Error("reconcile failed, change will be re-fetched next pull",
					corelog.SyncFields(string(model.SyncReconciling)).Custom("kind", string(change.Kind)).Custom("id", change.ID).Err(err)...)
			}
		}
	}

	m.saveCursor(ctx, result.Cursor)
	return m.finishSuccess(ctx, len(result.Changes))
}

func (m *Manager) finishSuccess(ctx context.Context, changesCount int) (HistoryEntry, error) {
	m.setState(model.SyncIdle)
	now := m.clock.NowMillis()
	m.mu.Lock()
	m.lastSyncAt = now
	m.lastSuccess = true
	m.mu.Unlock()

	entry := HistoryEntry{Timestamp: now, Success: true, ChangesCount: changesCount}
	m.appendHistory(ctx, entry)
	return entry, nil
}

func (m *Manager) finishBackingOff(ctx context.Context, cause error) (HistoryEntry, error) {
	m.setState(model.SyncBackingOff)
	now := m.clock.NowMillis()
	m.mu.Lock()
	m.lastSyncAt = now
	m.lastSuccess = false
	m.mu.Unlock()

	entry := HistoryEntry{Timestamp: now, Success: false, Error: cause.Error()}
	m.appendHistory(ctx, entry)

	if m.backoffAfter > 0 {
		time.AfterFunc(m.backoffAfter, func() { m.setState(model.SyncIdle) })
	}
	return entry, corerrors.Wrapf(cause, corerrors.KindNetwork, "sync pull failed")
}

// GetSyncHistory returns the bounded ring buffer of recent sync passes,
// most recent last.
func (m *Manager) GetSyncHistory(ctx context.Context) ([]HistoryEntry, error) {
	return m.history.Load(ctx)
}

func (m *Manager) appendHistory(ctx context.Context, entry HistoryEntry) {
	list, err := m.history.Load(ctx)
	if err != nil {
		m.log.Error("failed to load sync history", corelog.SyncFields(string(m.State())).Err(err)...)
		return
	}
	list = append(list, entry)
	if len(list) > defaultHistoryCapacity {
		list = list[len(list)-defaultHistoryCapacity:]
	}
	if err := m.history.Save(ctx, list); err != nil {
		m.log.Error("failed to persist sync history", corelog.SyncFields(string(m.State())).Err(err)...)
	}
}

func (m *Manager) loadCursor(ctx context.Context) string {
	list, err := m.cursors.Load(ctx)
	if err != nil || len(list) == 0 {
		return ""
	}
	return list[len(list)-1].Cursor
}

func (m *Manager) saveCursor(ctx context.Context, cursor string) {
	if cursor == "" {
		return
	}
	if err := m.cursors.Save(ctx, []cursorRecord{{Cursor: cursor}}); err != nil {
		m.log.Error("failed to persist sync cursor", corelog.SyncFields(string(m.State())).Err(err)...)
	}
}

// applyChange reconciles one server-side change into the Local Store,
// resolving a conflict against the current local record when both sides
// disagree, per spec.md §4.7.
func (m *Manager) applyChange(ctx context.Context, change Change) error {
	if change.Op == "delete" {
		return m.db.Write(ctx, func(txn store.Transaction) error {
			return txn.MarkDeleted(ctx, change.Kind, change.ID)
		})
	}

	local, err := m.db.Get(ctx, change.Kind, change.ID)
	if err != nil {
		var notFound *store.ErrNotFound
		if !errors.As(err, &notFound) {
			return err
		}
		return m.db.Write(ctx, func(txn store.Transaction) error {
			fields := withID(change.Record, change.ID)
			_, err := txn.Create(ctx, change.Kind, fields)
			return err
		})
	}

	var localFields conflict.Record
	if err := json.Unmarshal(local.Payload, &localFields); err != nil {
		return corerrors.Wrapf(err, corerrors.KindStore, "decode local payload for %s %s", change.Kind, change.ID)
	}

	resolution := conflict.Resolve(localFields, change.Record, change.Kind)
	if resolution.Strategy == model.StrategyManual {
		_, err := m.excepts.Add(ctx, change.Kind, change.ID, resolution)
		return err
	}

	return m.db.Write(ctx, func(txn store.Transaction) error {
		_, err := txn.Update(ctx, change.Kind, change.ID, func(store.Fields) (store.Fields, error) {
			return store.Fields(resolution.ResolvedRecord), nil
		})
		return err
	})
}

func withID(fields map[string]interface{}, id string) store.Fields {
	out := store.Fields{"id": id}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
