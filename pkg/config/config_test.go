package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Queue.WorkerCount)
	assert.Equal(t, 5*time.Minute, cfg.Queue.TaskTimeout)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.InDelta(t, 0.7, cfg.Retrieval.VectorWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.Retrieval.KeywordWeight, 1e-9)
	assert.InDelta(t, 0.1, cfg.Retrieval.MinScore, 1e-9)
	assert.False(t, cfg.Webhook.SkipSignatureVerification)
	assert.Equal(t, 5*time.Second, cfg.ML.RequestTimeout)
	assert.False(t, cfg.LLM.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.Retention.EventTTL)
	assert.Equal(t, time.Hour, cfg.Retention.CleanupInterval)
	assert.Empty(t, cfg.Slack.Token)
	assert.Equal(t, "http://localhost:3000", cfg.Slack.DashboardURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("QUEUE_WORKER_COUNT", "2")
	t.Setenv("QUEUE_POLL_INTERVAL", "250ms")
	t.Setenv("RAG_VECTOR_WEIGHT", "0.5")
	t.Setenv("RAG_KEYWORD_WEIGHT", "0.5")
	t.Setenv("SKIP_SIGNATURE_VERIFICATION", "true")
	t.Setenv("DATADOG_WEBHOOK_SECRET", "dd-secret")
	t.Setenv("ML_SERVICE_URL", "http://ml:8500")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("EVENT_TTL", "6h")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_CHANNEL_ID", "C123")

	cfg := Load()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Queue.WorkerCount)
	assert.Equal(t, 250*time.Millisecond, cfg.Queue.PollInterval)
	assert.InDelta(t, 0.5, cfg.Retrieval.VectorWeight, 1e-9)
	assert.InDelta(t, 0.5, cfg.Retrieval.KeywordWeight, 1e-9)
	assert.True(t, cfg.Webhook.SkipSignatureVerification)
	assert.Equal(t, "dd-secret", cfg.Webhook.Secrets["datadog"])
	assert.Equal(t, "http://ml:8500", cfg.ML.ServiceURL)
	assert.True(t, cfg.LLM.Enabled())
	assert.Equal(t, 6*time.Hour, cfg.Retention.EventTTL)
	assert.Equal(t, "xoxb-test", cfg.Slack.Token)
	assert.Equal(t, "C123", cfg.Slack.Channel)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("QUEUE_POLL_INTERVAL", "soon")
	t.Setenv("RAG_MIN_SCORE", "lots")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Queue.PollInterval)
	assert.InDelta(t, 0.1, cfg.Retrieval.MinScore, 1e-9)
}
