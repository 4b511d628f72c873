// Package syncmanager implements the Sync Manager (spec.md C10): the
// orchestration state machine that drives queue drain, server pull, and
// conflict reconciliation as one coordinated pass. Grounded on
// aghassemi-go.ref's vsync/initiator.go and vsync/responder.go, which
// likewise step a sync round through discrete phases (connect, exchange
// generation vectors, apply deltas) rather than running everything as one
// monolithic call.
package syncmanager

import "github.com/neighborhood-lab/care-commons-sub007/internal/model"

// Change is one server-side delta returned by a pull (spec.md §6).
type Change struct {
	Kind          model.EntityKind       `json:"kind"`
	ID            string                 `json:"id"`
	Op            string                 `json:"op"` // "upsert" | "delete"
	Record        map[string]interface{} `json:"record,omitempty"`
	ServerVersion string                 `json:"serverVersion"`
	UpdatedAt     int64                  `json:"updatedAt"`
}

// PullResult is a `GET {base}/sync?since=<cursor>` response.
type PullResult struct {
	Changes []Change `json:"changes"`
	Cursor  string   `json:"cursor"`
}

// HistoryEntry is one sync-history ring buffer record (spec.md §4.8).
type HistoryEntry struct {
	Timestamp    int64  `json:"timestamp"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	ChangesCount int    `json:"changesCount,omitempty"`
}

// SyncState is the current orchestration snapshot returned by C11's
// getSyncState() (spec.md §4.9).
type SyncState struct {
	IsOnline          bool   `json:"isOnline"`
	QueueSize         int    `json:"queueSize"`
	PendingOptimistic int    `json:"pendingOptimistic"`
	LastSyncAt        int64  `json:"lastSyncAt,omitempty"`
	LastSyncSuccess   bool   `json:"lastSyncSuccess"`
	State             string `json:"state"`
}
