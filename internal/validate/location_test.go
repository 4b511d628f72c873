package validate

import (
	"testing"

	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
)

func baseVerification(now int64) model.Verification {
	return model.Verification{
		Latitude: 30.0, Longitude: -97.0, Accuracy: 10,
		Timestamp: now, Method: model.MethodGPS,
	}
}

func TestValidateLocationValid(t *testing.T) {
	now := int64(1700000000000)
	v := baseVerification(now)
	issues := ValidateLocation(v, now, 300)
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestValidateLocationClockSkewBoundary(t *testing.T) {
	now := int64(1700000000000)
	v := baseVerification(now - 300*1000)
	if issues := ValidateLocation(v, now, 300); len(issues) != 0 {
		t.Errorf("exactly at tolerance should pass, got %v", issues)
	}

	v2 := baseVerification(now - 301*1000)
	issues := ValidateLocation(v2, now, 300)
	found := false
	for _, i := range issues {
		if i == IssueClockSkew {
			found = true
		}
	}
	if !found {
		t.Errorf("expected clock skew issue just past tolerance, got %v", issues)
	}
}

func TestValidateLocationOutOfRange(t *testing.T) {
	now := int64(1700000000000)
	v := model.Verification{Latitude: 95, Longitude: -200, Accuracy: 2000, Timestamp: now, Method: model.MethodGPS}
	issues := ValidateLocation(v, now, 300)
	want := map[LocationIssue]bool{IssueLatitudeOutOfRange: true, IssueLongitudeOutOfRange: true, IssueAccuracyOutOfRange: true}
	for _, i := range issues {
		delete(want, i)
	}
	if len(want) != 0 {
		t.Errorf("missing expected issues: %v (got %v)", want, issues)
	}
}

func TestValidateLocationMockLocation(t *testing.T) {
	now := int64(1700000000000)
	v := baseVerification(now)
	v.MockLocationDetected = true
	issues := ValidateLocation(v, now, 300)
	found := false
	for _, i := range issues {
		if i == IssueMockLocation {
			found = true
		}
	}
	if !found {
		t.Errorf("expected mock location issue, got %v", issues)
	}
}
