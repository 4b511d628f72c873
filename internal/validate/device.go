package validate

import "github.com/neighborhood-lab/care-commons-sub007/internal/model"

// DeviceIssue is one deterministic device-validation failure (§4.4).
type DeviceIssue string

const (
	IssueDeviceIDMissing      DeviceIssue = "device id missing"
	IssueDeviceModelMissing   DeviceIssue = "device model missing"
	IssueDeviceOSMissing      DeviceIssue = "device OS missing"
	IssueAppVersionMissing    DeviceIssue = "app version missing"
	IssueDeviceRooted         DeviceIssue = "device is rooted"
	IssueDeviceJailbroken     DeviceIssue = "device is jailbroken"
)

// ValidateDevice implements spec.md §4.4's device validation.
func ValidateDevice(d model.DeviceInfo) []DeviceIssue {
	var issues []DeviceIssue
	if d.DeviceID == "" {
		issues = append(issues, IssueDeviceIDMissing)
	}
	if d.DeviceModel == "" {
		issues = append(issues, IssueDeviceModelMissing)
	}
	if d.DeviceOS == "" {
		issues = append(issues, IssueDeviceOSMissing)
	}
	if d.AppVersion == "" {
		issues = append(issues, IssueAppVersionMissing)
	}
	if d.IsRooted {
		issues = append(issues, IssueDeviceRooted)
	}
	if d.IsJailbroken {
		issues = append(issues, IssueDeviceJailbroken)
	}
	return issues
}
