// Package conflict implements the Conflict Resolver (spec.md C9): merging
// a local record with the server's record for the same (kind, id) when
// both have been mutated. Grounded on aghassemi-go.ref's
// services/syncbase/sync/dag.go, which resolves concurrent per-object
// versions by walking version metadata rather than the object payload;
// here there is no multi-device DAG, so the generic path collapses to a
// straight updatedAt comparison, falling through to a per-kind merge only
// when the timestamps tie.
package conflict

import (
	"reflect"

	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
)

// Record is the generic field map both Resolve and detectPotentialConflicts
// operate on: the raw server/client record shape, keyed by its wire field
// names, since conflict resolution runs on payloads as received over the
// wire, before any of them are decoded into typed records. EVV-record and
// note keys are the camelCase keys model's JSON tags and the facade's
// field maps produce; the visit field lists, the task "status" key and the
// detectPotentialConflicts critical set use snake_case names.
// "updated_at" is this package's own bookkeeping key for the local
// last-write timestamp, not a field of any entity's wire shape.
type Record = map[string]interface{}

// Resolve merges local and remote for kind, implementing spec.md §4.7.
func Resolve(local, remote Record, kind model.EntityKind) model.ConflictResolution {
	localUpdated := numberField(local, "updated_at")
	remoteUpdated := numberField(remote, "updated_at")

	const threshold = 0

	switch {
	case localUpdated > remoteUpdated+threshold:
		return model.ConflictResolution{Strategy: model.StrategyClientWins, ResolvedRecord: local}
	case remoteUpdated > localUpdated+threshold:
		return model.ConflictResolution{Strategy: model.StrategyServerWins, ResolvedRecord: remote}
	}

	switch kind {
	case model.EntityVisit:
		return resolveVisit(local, remote)
	case model.EntityTimeEntry:
		return resolveTask(local, remote)
	case model.EntityEVVRecord:
		return resolveEVVRecord(local, remote)
	case model.EntityNote:
		return resolveNote(local, remote)
	default:
		return model.ConflictResolution{Strategy: model.StrategyServerWins, ResolvedRecord: remote, RequiresManualReview: true}
	}
}

// criticalFields is the §4.7 "critical set" used by detectPotentialConflicts.
var criticalFields = map[string]bool{
	"clock_in_time": true, "clock_out_time": true,
	"client_signature": true, "caregiver_signature": true,
	"service_date": true,
	"latitude":     true, "longitude": true, "location": true,
}

// excludedFromDiff is never reported as a differing field.
var excludedFromDiff = map[string]bool{"id": true, "created_at": true, "updated_at": true}

// DetectPotentialConflicts implements spec.md §4.7's detectPotentialConflicts.
func DetectPotentialConflicts(local, remote Record) model.ConflictDetection {
	var differing []string
	seen := map[string]bool{}
	for k := range local {
		seen[k] = true
	}
	for k := range remote {
		seen[k] = true
	}
	for field := range seen {
		if excludedFromDiff[field] {
			continue
		}
		if !valuesEqual(local[field], remote[field]) {
			differing = append(differing, field)
		}
	}

	if len(differing) == 0 {
		return model.ConflictDetection{HasConflict: false}
	}

	severity := model.SeverityLow
	anyCritical := false
	for _, f := range differing {
		if criticalFields[f] {
			anyCritical = true
			break
		}
	}
	switch {
	case anyCritical:
		severity = model.SeverityHigh
	case len(differing) >= 4:
		severity = model.SeverityMedium
	}

	return model.ConflictDetection{HasConflict: true, DifferingFields: differing, Severity: severity}
}

// ApplyManualResolution implements spec.md §4.7's applyManualResolution.
// now is supplied by the caller so this function, like Resolve, stays pure.
func ApplyManualResolution(local, remote Record, decision model.ManualDecision, now int64) model.ConflictResolution {
	var resolved Record
	switch decision.SelectedStrategy {
	case "client":
		resolved = local
	case "server":
		resolved = remote
	case "field-by-field":
		resolved = Record{}
		seen := map[string]bool{}
		for k := range local {
			seen[k] = true
		}
		for k := range remote {
			seen[k] = true
		}
		for field := range seen {
			switch v := decision.FieldResolutions[field]; v {
			case "client":
				resolved[field] = local[field]
			case "server":
				resolved[field] = remote[field]
			case nil:
				resolved[field] = remote[field]
			default:
				resolved[field] = v
			}
		}
	default:
		resolved = remote
	}

	return model.ConflictResolution{
		Strategy:       model.StrategyManual,
		ResolvedRecord: resolved,
		ResolutionMetadata: map[string]interface{}{
			"resolvedBy": decision.ResolvedBy,
			"resolvedAt": now,
		},
	}
}

func numberField(r Record, key string) float64 {
	v, ok := r[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

func valuesEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	// Nested objects (e.g. clockInVerification) decode to
	// map[string]interface{}/[]interface{}, which == cannot compare;
	// reflect.DeepEqual handles those alongside plain scalars.
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
