package config

import "time"

// QueueConfig contains queue and worker pool configuration.
// These values control how alerts are polled, claimed, and processed.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per replica/pod.
	// Each worker independently polls and processes alerts.
	WorkerCount int

	// MaxConcurrentAlerts is the global limit of concurrent alerts being
	// processed across ALL replicas/pods. Enforced by database COUNT(*) check.
	MaxConcurrentAlerts int

	// PollInterval is the base interval for checking pending alerts.
	PollInterval time.Duration

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration

	// TaskTimeout is the maximum time a single alert can be processed.
	TaskTimeout time.Duration

	// GracefulShutdownTimeout is the max time to wait for active alerts
	// to complete during shutdown.
	GracefulShutdownTimeout time.Duration

	// MaxAttempts is the number of processing attempts before an alert
	// is marked failed.
	MaxAttempts int
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		WorkerCount:             5,
		MaxConcurrentAlerts:     10,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		TaskTimeout:             5 * time.Minute,
		GracefulShutdownTimeout: 30 * time.Second,
		MaxAttempts:             3,
	}
}

// LoadQueueConfig reads queue settings from the environment on top of the
// defaults.
func LoadQueueConfig() QueueConfig {
	cfg := DefaultQueueConfig()
	cfg.WorkerCount = getEnvInt("QUEUE_WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxConcurrentAlerts = getEnvInt("QUEUE_MAX_CONCURRENT_ALERTS", cfg.MaxConcurrentAlerts)
	cfg.PollInterval = getEnvDuration("QUEUE_POLL_INTERVAL", cfg.PollInterval)
	cfg.PollIntervalJitter = getEnvDuration("QUEUE_POLL_INTERVAL_JITTER", cfg.PollIntervalJitter)
	cfg.TaskTimeout = getEnvDuration("QUEUE_TASK_TIMEOUT", cfg.TaskTimeout)
	cfg.GracefulShutdownTimeout = getEnvDuration("QUEUE_GRACEFUL_SHUTDOWN_TIMEOUT", cfg.GracefulShutdownTimeout)
	cfg.MaxAttempts = getEnvInt("QUEUE_MAX_ATTEMPTS", cfg.MaxAttempts)
	return cfg
}
