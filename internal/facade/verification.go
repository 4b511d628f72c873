package facade

import (
	"github.com/neighborhood-lab/care-commons-sub007/internal/corerrors"
	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
	"github.com/neighborhood-lab/care-commons-sub007/internal/validate"
)

// verificationInput bundles what buildVerification needs to run C6's full
// validation chain for one clock event.
type verificationInput struct {
	Latitude             float64
	Longitude            float64
	Accuracy             float64
	Timestamp            int64
	TimestampSource      string
	Method               model.VerificationMethod
	LocationSource       string
	DeviceID             string
	MockLocationDetected bool
	PhotoURL             string
	BiometricVerified    *bool
	SupervisorOverrideID string

	Device         model.DeviceInfo
	ServiceAddress model.ServiceAddress
	ScheduledTime  int64
	IsClockOut     bool
}

// buildVerification runs spec.md §4.4's full validation chain for one
// clock event: device validation, location validation (fail-fast
// ValidationError), then state-specific validation producing the
// geofence arithmetic, compliance flags and verification level that
// populate the returned Verification block.
func (f *Facade) buildVerification(stateCode string, in verificationInput) (model.Verification, model.VerificationLevel, []model.ComplianceFlag, error) {
	if in.Method == model.MethodManual && in.SupervisorOverrideID == "" {
		return model.Verification{}, "", nil, corerrors.New(corerrors.KindValidation, "manual verification requires a supervisor-approved override")
	}

	if issues := validate.ValidateDevice(in.Device); len(issues) > 0 {
		return model.Verification{}, "", nil, corerrors.Newf(corerrors.KindValidation, "device validation failed: %v", issues)
	}

	verification := model.Verification{
		Latitude: in.Latitude, Longitude: in.Longitude, Accuracy: in.Accuracy,
		Timestamp: in.Timestamp, TimestampSource: in.TimestampSource, Method: in.Method,
		LocationSource: in.LocationSource, DeviceID: in.DeviceID,
		MockLocationDetected: in.MockLocationDetected, PhotoURL: in.PhotoURL,
		BiometricVerified: in.BiometricVerified, SupervisorOverrideID: in.SupervisorOverrideID,
	}

	if issues := validate.ValidateLocation(verification, f.clock.NowMillis(), f.clockSkewS); len(issues) > 0 {
		return model.Verification{}, "", nil, corerrors.Newf(corerrors.KindValidation, "location validation failed: %v", issues)
	}

	rules, err := f.rules.Lookup(stateCode)
	if err != nil {
		return model.Verification{}, "", nil, corerrors.Wrapf(err, corerrors.KindValidation, "state rules lookup for %q", stateCode)
	}

	result := validate.ValidateStateSpecific(validate.StateValidationInput{
		Rules: rules, EventTime: in.Timestamp, ScheduledTime: in.ScheduledTime, IsClockOut: in.IsClockOut,
		Verification: verification, ServiceAddress: in.ServiceAddress,
	})

	for _, issue := range result.Issues {
		if issue.Severity == model.SeverityBlocking {
			return model.Verification{}, "", nil, corerrors.New(corerrors.KindCompliance, issue.Message)
		}
	}

	verification.IsWithinGeofence = result.Geofence.IsWithinGeofence
	verification.DistanceFromAddress = result.Geofence.DistanceMeters
	verification.GeofencePassed = result.Geofence.IsWithinGeofence

	level, flags := validate.DeriveVerificationLevel(result.Issues)
	verification.VerificationPassed = level != model.VerificationException

	return verification, level, flags, nil
}
