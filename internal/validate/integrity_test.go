package validate

import (
	"testing"

	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
)

func sampleEVVRecord() *model.EVVRecord {
	return &model.EVVRecord{
		VisitID:     "visit-1",
		ClientID:    "client-1",
		CaregiverID: "caregiver-1",
		ServiceDate: "2025-11-12",
		ServiceAddress: model.ServiceAddress{
			Line: "1 Main St", City: "Austin", StateCode: "TX",
			Latitude: 30.2672, Longitude: -97.7431, GeofenceRadius: 100,
		},
		ClockInTime: 1762938000000,
		ClockInVerification: model.Verification{
			Latitude: 30.2672, Longitude: -97.7431, Accuracy: 10,
			Method: model.MethodGPS,
		},
		RecordStatus:      model.RecordPending,
		VerificationLevel: model.VerificationFull,
		ComplianceFlags:   []model.ComplianceFlag{model.FlagCompliant},
	}
}

func TestApplyAndVerifyIntegrityRoundTrip(t *testing.T) {
	r := sampleEVVRecord()
	ApplyIntegrity(r)

	result := VerifyIntegrity(r)
	if !result.HashMatch || !result.ChecksumMatch || result.TamperDetected {
		t.Fatalf("expected valid integrity, got %+v", result)
	}
}

func TestVerifyIntegrityDetectsTamper(t *testing.T) {
	r := sampleEVVRecord()
	ApplyIntegrity(r)

	r.ClockInTime += 1000 // tamper with a core field after hashing

	result := VerifyIntegrity(r)
	if result.HashMatch {
		t.Errorf("expected hash mismatch after tamper")
	}
	if !result.TamperDetected {
		t.Errorf("expected tamperDetected = true")
	}
}

func TestChecksumCoversFieldsHashDoesNot(t *testing.T) {
	r1 := sampleEVVRecord()
	r2 := sampleEVVRecord()
	r2.RecordStatus = model.RecordComplete // not part of coreData

	if ComputeIntegrityHash(r1) != ComputeIntegrityHash(r2) {
		t.Errorf("hash should not depend on recordStatus")
	}
	if ComputeIntegrityChecksum(r1) == ComputeIntegrityChecksum(r2) {
		t.Errorf("checksum should depend on recordStatus")
	}
}

func TestClockOutRoundTrip(t *testing.T) {
	r := sampleEVVRecord()
	ApplyIntegrity(r)

	r.ClockOutTime = r.ClockInTime + 2*60*60*1000
	r.ClockOutVerification = &model.Verification{
		Latitude: 30.2672, Longitude: -97.7431, Accuracy: 10, Method: model.MethodGPS,
	}
	r.TotalDurationMinutes = 120
	r.RecordStatus = model.RecordComplete
	ApplyIntegrity(r)

	result := VerifyIntegrity(r)
	if result.TamperDetected {
		t.Fatalf("expected valid integrity after clock-out recompute, got %+v", result)
	}
}
