package conflict

import "github.com/neighborhood-lab/care-commons-sub007/internal/model"

// visitCriticalFields forces a manual resolution on any disagreement,
// per spec.md §4.7's "Visit conflicts".
var visitCriticalFields = map[string]bool{
	"client_signature": true, "caregiver_signature": true,
	"clock_in_time": true, "clock_out_time": true,
	"service_date": true, "service_location": true,
}

var clientPriorityFields = map[string]bool{
	"care_notes": true, "tasks_completed": true, "client_mood": true,
	"client_condition_notes": true, "activities_performed": true,
	"incident_description": true, "visit_notes": true,
}

var serverPriorityFields = map[string]bool{
	"scheduled_date": true, "scheduled_start": true, "scheduled_end": true,
	"client_id": true, "caregiver_id": true,
	"service_type_code": true, "authorization_id": true,
}

var visitClockFields = map[string]bool{"clock_in_time": true, "clock_out_time": true}

func resolveVisit(local, remote Record) model.ConflictResolution {
	var conflicts []model.FieldConflict
	for f := range visitCriticalFields {
		lv, rv := local[f], remote[f]
		if !valuesEqual(lv, rv) {
			conflicts = append(conflicts, model.FieldConflict{Field: f, ClientValue: lv, ServerValue: rv, Severity: model.SeverityHigh})
		}
	}
	if len(conflicts) > 0 {
		return model.ConflictResolution{Strategy: model.StrategyManual, FieldConflicts: conflicts, RequiresManualReview: true}
	}

	merged := Record{}
	seen := map[string]bool{}
	for k := range local {
		seen[k] = true
	}
	for k := range remote {
		seen[k] = true
	}

	clientHasClockTimes := local["clock_in_time"] != nil || local["clock_out_time"] != nil
	serverHasClockTimes := remote["clock_in_time"] != nil || remote["clock_out_time"] != nil

	for field := range seen {
		switch {
		case visitClockFields[field] && clientHasClockTimes && !serverHasClockTimes:
			merged[field] = local[field]
		case clientPriorityFields[field]:
			if local[field] != nil {
				merged[field] = local[field]
			} else {
				merged[field] = remote[field]
			}
		case serverPriorityFields[field]:
			merged[field] = remote[field]
		default:
			merged[field] = remote[field]
		}
	}

	return model.ConflictResolution{Strategy: model.StrategyMerge, ResolvedRecord: merged}
}

func resolveTask(local, remote Record) model.ConflictResolution {
	localStatus, _ := local["status"].(string)
	remoteStatus, _ := remote["status"].(string)

	switch {
	case localStatus == "completed" && remoteStatus != "completed":
		return model.ConflictResolution{Strategy: model.StrategyClientWins, ResolvedRecord: local}
	case remoteStatus == "completed" && localStatus != "completed":
		return model.ConflictResolution{
			Strategy: model.StrategyManual, RequiresManualReview: true,
			FieldConflicts: []model.FieldConflict{{Field: "status", ClientValue: localStatus, ServerValue: remoteStatus, Severity: model.SeverityHigh}},
		}
	default:
		return model.ConflictResolution{Strategy: model.StrategyServerWins, ResolvedRecord: remote}
	}
}

// evvCriticalFields names the top-level keys produced by recordFields()'s
// JSON-tag-driven marshal of model.EVVRecord; clockInVerification and
// clockOutVerification carry the location (lat/lon), so a disagreement
// there is caught the same way a disagreement in the clock times is.
var evvCriticalFields = map[string]bool{
	"clockInTime": true, "clockOutTime": true, "serviceDate": true,
	"clockInVerification": true, "clockOutVerification": true,
}

func resolveEVVRecord(local, remote Record) model.ConflictResolution {
	var conflicts []model.FieldConflict
	for f := range evvCriticalFields {
		lv, rv := local[f], remote[f]
		if !valuesEqual(lv, rv) {
			conflicts = append(conflicts, model.FieldConflict{Field: f, ClientValue: lv, ServerValue: rv, Severity: model.SeverityHigh})
		}
	}
	if len(conflicts) > 0 {
		return model.ConflictResolution{
			Strategy: model.StrategyManual, FieldConflicts: conflicts, RequiresManualReview: true,
			ResolutionMetadata: map[string]interface{}{"reason": "regulatory compliance"},
		}
	}
	return model.ConflictResolution{Strategy: model.StrategyServerWins, ResolvedRecord: remote}
}

func resolveNote(local, remote Record) model.ConflictResolution {
	localText, _ := local["noteText"].(string)
	remoteText, _ := remote["noteText"].(string)

	if len(localText) >= len(remoteText) {
		return model.ConflictResolution{Strategy: model.StrategyClientWins, ResolvedRecord: local}
	}
	return model.ConflictResolution{Strategy: model.StrategyServerWins, ResolvedRecord: remote}
}
