package validate

import (
	"github.com/neighborhood-lab/care-commons-sub007/internal/crypto"
	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
)

// IntegrityResult is the outcome of verifying a record's integrity hash
// and checksum (spec.md §4.4, §7 IntegrityError).
type IntegrityResult struct {
	HashMatch      bool
	ChecksumMatch  bool
	TamperDetected bool
}

// coreDataFields builds the canonicalization input for the integrity hash:
// spec.md §3's coreData, which excludes the two integrity fields
// themselves.
func coreDataFields(r *model.EVVRecord) map[string]interface{} {
	return map[string]interface{}{
		"visitId":              r.VisitID,
		"clientId":             r.ClientID,
		"caregiverId":          r.CaregiverID,
		"serviceDate":          r.ServiceDate,
		"clockInTime":          r.ClockInTime,
		"clockOutTime":         r.ClockOutTime,
		"serviceAddress":       serviceAddressFields(r.ServiceAddress),
		"clockInVerification":  verificationFields(r.ClockInVerification),
		"clockOutVerification": optionalVerificationFields(r.ClockOutVerification),
	}
}

// fullRecordFields builds the canonicalization input for the integrity
// checksum: the entire record minus the two integrity fields.
func fullRecordFields(r *model.EVVRecord) map[string]interface{} {
	fields := coreDataFields(r)
	fields["recordStatus"] = string(r.RecordStatus)
	fields["verificationLevel"] = string(r.VerificationLevel)
	fields["complianceFlags"] = complianceFlagStrings(r.ComplianceFlags)
	fields["totalDurationMinutes"] = r.TotalDurationMinutes
	return fields
}

func serviceAddressFields(a model.ServiceAddress) map[string]interface{} {
	return map[string]interface{}{
		"line":           a.Line,
		"city":           a.City,
		"stateCode":      a.StateCode,
		"latitude":       a.Latitude,
		"longitude":      a.Longitude,
		"geofenceRadius": a.GeofenceRadius,
	}
}

func verificationFields(v model.Verification) map[string]interface{} {
	return map[string]interface{}{
		"latitude":             v.Latitude,
		"longitude":            v.Longitude,
		"accuracy":             v.Accuracy,
		"timestamp":            v.Timestamp,
		"method":               string(v.Method),
		"isWithinGeofence":     v.IsWithinGeofence,
		"distanceFromAddress":  v.DistanceFromAddress,
		"deviceId":             v.DeviceID,
		"mockLocationDetected": v.MockLocationDetected,
	}
}

func optionalVerificationFields(v *model.Verification) interface{} {
	if v == nil {
		return nil
	}
	return verificationFields(*v)
}

func complianceFlagStrings(flags []model.ComplianceFlag) []interface{} {
	out := make([]interface{}, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

// ComputeIntegrityHash implements spec.md §3/§4.4's
// integrityHash = SHA256(canonicalize(coreData)).
func ComputeIntegrityHash(r *model.EVVRecord) string {
	return crypto.Digest(crypto.Canonicalize(coreDataFields(r)))
}

// ComputeIntegrityChecksum implements spec.md §3/§4.4's
// integrityChecksum = SHA256(canonicalize(entireRecord \ integrityFields)).
func ComputeIntegrityChecksum(r *model.EVVRecord) string {
	return crypto.Digest(crypto.Canonicalize(fullRecordFields(r)))
}

// ApplyIntegrity computes and sets both integrity fields on r.
func ApplyIntegrity(r *model.EVVRecord) {
	r.IntegrityHash = ComputeIntegrityHash(r)
	r.IntegrityChecksum = ComputeIntegrityChecksum(r)
}

// VerifyIntegrity re-canonicalizes r in the same order used to produce its
// integrity fields and reports whether each still matches (spec.md §4.4,
// invariant P5).
func VerifyIntegrity(r *model.EVVRecord) IntegrityResult {
	hashMatch := ComputeIntegrityHash(r) == r.IntegrityHash
	checksumMatch := ComputeIntegrityChecksum(r) == r.IntegrityChecksum
	return IntegrityResult{
		HashMatch:      hashMatch,
		ChecksumMatch:  checksumMatch,
		TamperDetected: !(hashMatch && checksumMatch),
	}
}
