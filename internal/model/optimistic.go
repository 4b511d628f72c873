package model

// OptimisticUpdate is a locally-applied mutation pending remote
// confirmation (§3). BeforeImage is nil for create operations, and is the
// raw pre-mutation record fields for update/delete when the record existed
// locally at apply time.
type OptimisticUpdate struct {
	ID            string        `json:"id"`
	RecordKind    EntityKind    `json:"recordKind"`
	RecordID      string        `json:"recordId"`
	Operation     OperationKind `json:"operation"`
	ProposedState []byte        `json:"proposedState"`
	BeforeImage   []byte        `json:"beforeImage,omitempty"`
	Status        UpdateStatus  `json:"status"`
	CreatedAt     int64         `json:"createdAt"`
	SyncedAt      int64         `json:"syncedAt,omitempty"`
	FailedAt      int64         `json:"failedAt,omitempty"`
	ErrorMessage  string        `json:"errorMessage,omitempty"`
	RetryCount    int           `json:"retryCount"`
}

// Clean reports whether a record has no pending optimistic work, per the
// §4.5 invariant "a record is clean iff zero PENDING updates".
func Clean(pending []*OptimisticUpdate) bool {
	for _, u := range pending {
		if u.Status == UpdatePending {
			return false
		}
	}
	return true
}
