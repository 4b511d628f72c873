package validate

import (
	"testing"

	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
)

func TestValidateDeviceValid(t *testing.T) {
	d := model.DeviceInfo{DeviceID: "d1", DeviceModel: "Pixel", DeviceOS: "Android 14", AppVersion: "1.2.3"}
	if issues := ValidateDevice(d); len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestValidateDeviceMissingFields(t *testing.T) {
	issues := ValidateDevice(model.DeviceInfo{})
	if len(issues) != 4 {
		t.Errorf("expected 4 missing-field issues, got %v", issues)
	}
}

func TestValidateDeviceCompromised(t *testing.T) {
	d := model.DeviceInfo{DeviceID: "d1", DeviceModel: "Pixel", DeviceOS: "Android 14", AppVersion: "1.2.3", IsRooted: true, IsJailbroken: true}
	issues := ValidateDevice(d)
	if len(issues) != 2 {
		t.Errorf("expected 2 issues (rooted+jailbroken), got %v", issues)
	}
}
