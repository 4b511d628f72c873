package config

import "testing"

func TestLoadRequiresAPIBaseURL(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without API_BASE_URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("SYNC_INTERVAL_MS", "")
	t.Setenv("QUEUE_MAX_RETRIES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SyncIntervalMS != defaultSyncIntervalMS {
		t.Errorf("SyncIntervalMS = %d, want %d", cfg.SyncIntervalMS, defaultSyncIntervalMS)
	}
	if cfg.QueueMaxRetries != defaultQueueMaxRetries {
		t.Errorf("QueueMaxRetries = %d, want %d", cfg.QueueMaxRetries, defaultQueueMaxRetries)
	}
	if cfg.QueueBaseDelayMS != defaultQueueBaseDelayMS {
		t.Errorf("QueueBaseDelayMS = %d, want %d", cfg.QueueBaseDelayMS, defaultQueueBaseDelayMS)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("QUEUE_MAX_RETRIES", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.QueueMaxRetries != 7 {
		t.Errorf("QueueMaxRetries = %d, want 7", cfg.QueueMaxRetries)
	}
}

func TestLoadStateRulesOverridesBadJSON(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("STATE_RULES_OVERRIDES", "{not json")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail on invalid STATE_RULES_OVERRIDES JSON")
	}
}

func TestLoadStateRulesOverridesValid(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("STATE_RULES_OVERRIDES", `{"TX":{"stateCode":"TX","geofenceRadiusMeters":200}}`)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.StateRulesOverrides["TX"].GeofenceRadiusMeters != 200 {
		t.Errorf("override not applied: %+v", cfg.StateRulesOverrides["TX"])
	}
}
