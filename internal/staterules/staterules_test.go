package staterules

import (
	"testing"

	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
)

func TestLookupKnownState(t *testing.T) {
	table := New(nil)
	rules, err := table.Lookup("TX")
	if err != nil {
		t.Fatalf("Lookup(TX) error: %v", err)
	}
	if rules.GeofenceRadiusMeters != 100 || rules.GeofenceToleranceMeters != 50 {
		t.Errorf("TX rules = %+v", rules)
	}
}

func TestLookupUnknownState(t *testing.T) {
	table := New(nil)
	if _, err := table.Lookup("ZZ"); err == nil {
		t.Fatal("Lookup(ZZ) should fail")
	}
}

func TestOverridesReplaceDefaults(t *testing.T) {
	overrides := map[string]model.StateRules{
		"TX": {StateCode: "TX", GeofenceRadiusMeters: 999},
	}
	table := New(overrides)
	rules, err := table.Lookup("TX")
	if err != nil {
		t.Fatalf("Lookup(TX) error: %v", err)
	}
	if rules.GeofenceRadiusMeters != 999 {
		t.Errorf("override not applied: %+v", rules)
	}
	// Override replaces wholesale: grace period field that was not set in
	// the override should be zero, not the default 15.
	if rules.ClockInGracePeriodMins != 0 {
		t.Errorf("expected wholesale replace, got ClockInGracePeriodMins=%d", rules.ClockInGracePeriodMins)
	}
}

func TestNewAddsUnknownStateFromOverride(t *testing.T) {
	overrides := map[string]model.StateRules{
		"CA": {StateCode: "CA", GeofenceRadiusMeters: 100},
	}
	table := New(overrides)
	if _, err := table.Lookup("CA"); err != nil {
		t.Fatalf("Lookup(CA) should succeed with override: %v", err)
	}
}
