package validate

import (
	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
)

// LocationIssue is one deterministic location-validation failure (§4.4,
// §7 deterministic error strings).
type LocationIssue string

const (
	IssueLatitudeOutOfRange  LocationIssue = "latitude out of range"
	IssueLongitudeOutOfRange LocationIssue = "longitude out of range"
	IssueAccuracyOutOfRange  LocationIssue = "accuracy out of range"
	IssueClockSkew           LocationIssue = "timestamp exceeds clock skew tolerance"
	IssueMethodMissing       LocationIssue = "verification method missing"
	IssueMockLocation        LocationIssue = "mock location detected"
)

// ValidateLocation implements spec.md §4.4's location validation:
// |lat| <= 90, |lon| <= 180, 0 <= accuracy <= 1000,
// |now - timestamp| <= clockSkewToleranceS, method non-null,
// mockLocationDetected == false. Returns every violation found (not just
// the first), each as a deterministic issue string.
func ValidateLocation(v model.Verification, nowMillis int64, clockSkewToleranceS int64) []LocationIssue {
	var issues []LocationIssue

	if v.Latitude < -90 || v.Latitude > 90 {
		issues = append(issues, IssueLatitudeOutOfRange)
	}
	if v.Longitude < -180 || v.Longitude > 180 {
		issues = append(issues, IssueLongitudeOutOfRange)
	}
	if v.Accuracy < 0 || v.Accuracy > 1000 {
		issues = append(issues, IssueAccuracyOutOfRange)
	}
	skewMillis := clockSkewToleranceS * 1000
	diff := nowMillis - v.Timestamp
	if diff < 0 {
		diff = -diff
	}
	if diff > skewMillis {
		issues = append(issues, IssueClockSkew)
	}
	if v.Method == "" {
		issues = append(issues, IssueMethodMissing)
	}
	if v.MockLocationDetected {
		issues = append(issues, IssueMockLocation)
	}

	return issues
}
