// Package config loads the sync core's runtime configuration (spec.md §6)
// from the environment. It follows aghassemi-go.ref's envvar.go idiom: a
// plain struct populated by a Load function, rather than a reflection-based
// env-binding library (none of the example pack's surviving dependency
// lists carries one).
package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/neighborhood-lab/care-commons-sub007/internal/model"
)

// Config is the sync core's runtime configuration.
type Config struct {
	APIBaseURL          string
	SyncIntervalMS       int64
	QueueMaxRetries      int
	QueueBaseDelayMS     int64
	QueueMaxDelayMS      int64
	ClockSkewToleranceS  int64
	StateRulesOverrides  map[string]model.StateRules
}

const (
	envAPIBaseURL         = "API_BASE_URL"
	envSyncIntervalMS      = "SYNC_INTERVAL_MS"
	envQueueMaxRetries     = "QUEUE_MAX_RETRIES"
	envQueueBaseDelayMS    = "QUEUE_BASE_DELAY_MS"
	envQueueMaxDelayMS     = "QUEUE_MAX_DELAY_MS"
	envClockSkewToleranceS = "CLOCK_SKEW_TOLERANCE_S"
	envStateRulesOverrides = "STATE_RULES_OVERRIDES"
)

const (
	defaultSyncIntervalMS      = 60000
	defaultQueueMaxRetries     = model.DefaultMaxRetries
	defaultQueueBaseDelayMS    = 1000
	defaultQueueMaxDelayMS     = 300000
	defaultClockSkewToleranceS = 300
)

// Load reads configuration from the environment, applying the defaults
// named in spec.md §6. API_BASE_URL is required; all other variables are
// optional.
func Load() (*Config, error) {
	base := os.Getenv(envAPIBaseURL)
	if base == "" {
		return nil, errMissingAPIBaseURL
	}
	cfg := &Config{
		APIBaseURL:          base,
		SyncIntervalMS:      intEnv(envSyncIntervalMS, defaultSyncIntervalMS),
		QueueMaxRetries:     int(intEnv(envQueueMaxRetries, defaultQueueMaxRetries)),
		QueueBaseDelayMS:    intEnv(envQueueBaseDelayMS, defaultQueueBaseDelayMS),
		QueueMaxDelayMS:     intEnv(envQueueMaxDelayMS, defaultQueueMaxDelayMS),
		ClockSkewToleranceS: intEnv(envClockSkewToleranceS, defaultClockSkewToleranceS),
	}
	if raw := os.Getenv(envStateRulesOverrides); raw != "" {
		var overrides map[string]model.StateRules
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return nil, errBadStateRulesOverrides(err)
		}
		cfg.StateRulesOverrides = overrides
	}
	return cfg, nil
}

func intEnv(name string, def int64) int64 {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}
