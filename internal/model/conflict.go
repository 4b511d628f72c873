package model

// FieldConflict describes one field that disagrees between the client and
// server versions of a record.
type FieldConflict struct {
	Field       string      `json:"field"`
	ClientValue interface{} `json:"clientValue"`
	ServerValue interface{} `json:"serverValue"`
	Severity    Severity    `json:"severity"`
}

// ConflictResolution is the result of resolving one (local, remote) pair
// for the same (kind, id) (§3, §4.7).
type ConflictResolution struct {
	Strategy            Strategy               `json:"strategy"`
	ResolvedRecord       map[string]interface{} `json:"resolvedRecord"`
	FieldConflicts       []FieldConflict        `json:"fieldConflicts,omitempty"`
	RequiresManualReview bool                   `json:"requiresManualReview"`
	ResolutionMetadata   map[string]interface{} `json:"resolutionMetadata,omitempty"`
}

// ManualDecision is the caller-supplied resolution for a `manual` conflict
// (§4.7 applyManualResolution).
type ManualDecision struct {
	SelectedStrategy string                 `json:"selectedStrategy"` // client | server | field-by-field
	FieldResolutions map[string]interface{} `json:"fieldResolutions,omitempty"`
	ResolvedBy       string                 `json:"resolvedBy"`
}

// ConflictDetection is the result of detectPotentialConflicts (§4.7).
type ConflictDetection struct {
	HasConflict     bool     `json:"hasConflict"`
	DifferingFields []string `json:"differingFields,omitempty"`
	Severity        Severity `json:"severity,omitempty"`
}

// ExceptionItem is a manual-resolution record awaiting supervisor review,
// persisted to the exception queue (SPEC_FULL.md supplement).
type ExceptionItem struct {
	ID         string              `json:"id"`
	Kind       EntityKind          `json:"kind"`
	RecordID   string              `json:"recordId"`
	CreatedAt  int64               `json:"createdAt"`
	Resolution ConflictResolution  `json:"resolution"`
	Resolved   bool                `json:"resolved"`
	ResolvedAt int64               `json:"resolvedAt,omitempty"`
}
