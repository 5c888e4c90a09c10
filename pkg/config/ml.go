package config

import "time"

// MLConfig contains settings for the remote classification service.
type MLConfig struct {
	// ServiceURL is the base URL of the inference service. Empty means the
	// remote classifier is disabled and rule-based fallbacks apply.
	ServiceURL string

	// RequestTimeout bounds each classify/extract call.
	RequestTimeout time.Duration
}

// LoadMLConfig reads ML gateway settings from the environment.
func LoadMLConfig() MLConfig {
	return MLConfig{
		ServiceURL:     getEnv("ML_SERVICE_URL", ""),
		RequestTimeout: getEnvDuration("ML_REQUEST_TIMEOUT", 5*time.Second),
	}
}
