package config

// WebhookConfig contains the per-source webhook signing secrets.
type WebhookConfig struct {
	// Secrets maps the alert source name to its HMAC signing secret.
	// An empty secret means requests for that source are rejected unless
	// SkipSignatureVerification is set.
	Secrets map[string]string

	// SkipSignatureVerification disables HMAC checks. Intended for local
	// development only.
	SkipSignatureVerification bool
}

// LoadWebhookConfig reads webhook settings from the environment.
func LoadWebhookConfig() WebhookConfig {
	return WebhookConfig{
		Secrets: map[string]string{
			"datadog":   getEnv("DATADOG_WEBHOOK_SECRET", ""),
			"sentry":    getEnv("SENTRY_WEBHOOK_SECRET", ""),
			"pagerduty": getEnv("PAGERDUTY_WEBHOOK_SECRET", ""),
		},
		SkipSignatureVerification: getEnvBool("SKIP_SIGNATURE_VERIFICATION", false),
	}
}
