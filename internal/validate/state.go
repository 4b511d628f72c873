package validate

import "github.com/neighborhood-lab/care-commons-sub007/internal/model"

// StateIssue is one state-specific validation finding (§4.4).
type StateIssue struct {
	Flag               model.ComplianceFlag
	Severity           model.Severity
	Message            string
	Overridable        bool
	RequiresSupervisor bool
}

// StateValidationInput bundles what state-specific validation needs for a
// single clock event.
type StateValidationInput struct {
	Rules          model.StateRules
	EventTime      int64 // clockInTime or clockOutTime, ms since epoch
	ScheduledTime  int64 // scheduledStart or scheduledEnd, ms since epoch; 0 skips the grace check
	IsClockOut     bool
	Verification   model.Verification
	ServiceAddress model.ServiceAddress
}

// StateValidationResult is the combined output of state-specific
// validation: the raw issues found, and the geofence arithmetic that
// produced the GEOFENCE_VIOLATION issue (if any), kept around so callers
// can populate Verification.DistanceFromAddress etc.
type StateValidationResult struct {
	Issues   []StateIssue
	Geofence GeofenceResult
}

// ValidateStateSpecific dispatches on input.Rules.StateCode and implements
// every rule in spec.md §4.4's "State-specific validation" subsection:
// grace period, geofence tolerance, allowed methods, MCO signature/photo
// requirements, and mock-location detection.
func ValidateStateSpecific(in StateValidationInput) StateValidationResult {
	var issues []StateIssue

	if in.ScheduledTime != 0 {
		issues = append(issues, checkGracePeriod(in)...)
	}

	geofence := CheckGeofence(
		in.Verification.Latitude, in.Verification.Longitude, in.Verification.Accuracy,
		in.ServiceAddress.Latitude, in.ServiceAddress.Longitude,
		in.Rules.GeofenceRadiusMeters, in.Rules.GeofenceToleranceMeters,
	)
	if !geofence.IsWithinGeofence {
		// Geofence violations are HIGH: they reduce verificationLevel to
		// PARTIAL and require supervisor review, but do not by themselves
		// force EXCEPTION. Only CRITICAL findings (mock location) do that;
		// a disallowed verification method is BLOCKING, not CRITICAL (see
		// below) -- it is rejected outright rather than downgraded.
		issues = append(issues, StateIssue{
			Flag:               model.FlagGeofenceViolation,
			Severity:           model.SeverityHigh,
			Message:            geofence.Reason,
			Overridable:        false,
			RequiresSupervisor: true,
		})
	}

	if !in.Rules.AllowsMethod(in.Verification.Method) {
		// Not overridable at any severity: spec.md's §4.4 rule for an
		// unauthorized method is that the event is rejected outright, so
		// this needs its own severity class that callers can check for and
		// reject on; DeriveVerificationLevel maps it to EXCEPTION, as it
		// does CRITICAL.
		issues = append(issues, StateIssue{
			Flag:               model.FlagManualOverride,
			Severity:           model.SeverityBlocking,
			Message:            "verification method not allowed for state " + in.Rules.StateCode,
			Overridable:        false,
			RequiresSupervisor: true,
		})
	}

	if in.Rules.RequiresSignature && in.Verification.BiometricVerified == nil {
		issues = append(issues, StateIssue{
			Flag:               model.FlagMissingSignature,
			Severity:           model.SeverityHigh,
			Message:            "state " + in.Rules.StateCode + " requires a signature",
			Overridable:        true,
			RequiresSupervisor: true,
		})
	}
	if in.Rules.RequiresPhoto && in.Verification.PhotoURL == "" {
		issues = append(issues, StateIssue{
			Flag:               model.FlagMissingPhoto,
			Severity:           model.SeverityHigh,
			Message:            "state " + in.Rules.StateCode + " requires a photo",
			Overridable:        true,
			RequiresSupervisor: true,
		})
	}

	if in.Verification.MockLocationDetected {
		issues = append(issues, StateIssue{
			Flag:               model.FlagLocationSuspect,
			Severity:           model.SeverityCritical,
			Message:            "mock location detected",
			Overridable:        false,
			RequiresSupervisor: true,
		})
	}

	return StateValidationResult{Issues: issues, Geofence: geofence}
}

// checkGracePeriod implements the grace-period rule: the event time must
// fall within [scheduled - graceEarly, scheduled + graceLate].
func checkGracePeriod(in StateValidationInput) []StateIssue {
	graceMinutes := in.Rules.ClockInGracePeriodMins
	if in.IsClockOut {
		graceMinutes = in.Rules.ClockOutGracePeriodMins
	}
	graceMillis := int64(graceMinutes) * 60 * 1000
	earliest := in.ScheduledTime - graceMillis
	latest := in.ScheduledTime + graceMillis

	if in.EventTime < earliest || in.EventTime > latest {
		return []StateIssue{{
			Flag:               model.FlagTimeGap,
			Severity:           model.SeverityMedium,
			Message:            "clock event outside scheduled grace period",
			Overridable:        true,
			RequiresSupervisor: true,
		}}
	}
	return nil
}

// DeriveVerificationLevel implements spec.md §4.4's reduction: any
// BLOCKING or CRITICAL issue forces EXCEPTION; else any HIGH forces
// PARTIAL; else FULL. The returned compliance-flag set is exactly [COMPLIANT] when there
// were no issues, and otherwise the union of issue flags with COMPLIANT
// removed (spec.md §4.4, invariant P4).
func DeriveVerificationLevel(issues []StateIssue) (model.VerificationLevel, []model.ComplianceFlag) {
	if len(issues) == 0 {
		return model.VerificationFull, []model.ComplianceFlag{model.FlagCompliant}
	}

	level := model.VerificationFull
	hasHigh := false
	hasCritical := false
	hasBlocking := false
	seen := map[model.ComplianceFlag]bool{}
	var flags []model.ComplianceFlag

	for _, issue := range issues {
		switch issue.Severity {
		case model.SeverityBlocking:
			hasBlocking = true
		case model.SeverityCritical:
			hasCritical = true
		case model.SeverityHigh:
			hasHigh = true
		}
		if !seen[issue.Flag] {
			seen[issue.Flag] = true
			flags = append(flags, issue.Flag)
		}
	}

	switch {
	case hasBlocking, hasCritical:
		level = model.VerificationException
	case hasHigh:
		level = model.VerificationPartial
	default:
		level = model.VerificationFull
	}

	return level, flags
}
