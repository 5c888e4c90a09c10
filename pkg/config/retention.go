package config

import "time"

// RetentionConfig controls pruning of stored stream events. Events exist so
// reconnecting SSE clients can catch up via Last-Event-ID; they have no value
// past the longest plausible client gap.
type RetentionConfig struct {
	// EventTTL is how long stored events are kept before pruning.
	EventTTL time.Duration

	// CleanupInterval is how often the pruning loop runs.
	CleanupInterval time.Duration
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		EventTTL:        24 * time.Hour,
		CleanupInterval: 1 * time.Hour,
	}
}

// LoadRetentionConfig reads retention settings from the environment on top of
// the defaults.
func LoadRetentionConfig() RetentionConfig {
	cfg := DefaultRetentionConfig()
	cfg.EventTTL = getEnvDuration("EVENT_TTL", cfg.EventTTL)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", cfg.CleanupInterval)
	return cfg
}
