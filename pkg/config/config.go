// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config aggregates all service configuration.
type Config struct {
	Server    ServerConfig
	Queue     QueueConfig
	Retrieval RetrievalConfig
	Webhook   WebhookConfig
	ML        MLConfig
	LLM       LLMConfig
	Retention RetentionConfig
	Slack     SlackConfig
	RedisURL  string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string
	Port int
}

// Load reads configuration from the environment, falling back to defaults
// for anything unset.
func Load() Config {
	return Config{
		Server: ServerConfig{
			Host: getEnv("HOST", "0.0.0.0"),
			Port: getEnvInt("PORT", 8080),
		},
		Queue:     LoadQueueConfig(),
		Retrieval: LoadRetrievalConfig(),
		Webhook:   LoadWebhookConfig(),
		ML:        LoadMLConfig(),
		LLM:       LoadLLMConfig(),
		Retention: LoadRetentionConfig(),
		Slack:     LoadSlackConfig(),
		RedisURL:  getEnv("REDIS_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
