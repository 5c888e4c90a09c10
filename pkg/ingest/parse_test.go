package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatadog(t *testing.T) {
	parsed, err := Parse(SourceDatadog, map[string]any{
		"id":           "12345",
		"title":        "High CPU usage",
		"body":         "CPU > 80% for 5 minutes",
		"last_updated": "2024-01-01T12:00:00Z",
		"tags":         []any{"service:api", "env:production"},
	})
	require.NoError(t, err)

	assert.Equal(t, "12345", parsed.ExternalID)
	assert.Equal(t, "High CPU usage", parsed.Title)
	assert.Equal(t, "CPU > 80% for 5 minutes", parsed.Message)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), parsed.Timestamp)
}

func TestParseDatadogNumericID(t *testing.T) {
	parsed, err := Parse(SourceDatadog, map[string]any{
		"id": float64(98765),
	})
	require.NoError(t, err)
	assert.Equal(t, "98765", parsed.ExternalID)
	assert.Equal(t, "Datadog Alert", parsed.Title)
}

func TestParseDatadogMissingID(t *testing.T) {
	_, err := Parse(SourceDatadog, map[string]any{"title": "no id"})
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, SourceDatadog, parseErr.Source)
}

func TestParseDatadogTitleTruncation(t *testing.T) {
	parsed, err := Parse(SourceDatadog, map[string]any{
		"id":    "1",
		"title": strings.Repeat("x", 600),
	})
	require.NoError(t, err)
	assert.Len(t, parsed.Title, 500)
}

func TestParseDatadogBadTimestampDefaultsToNow(t *testing.T) {
	parsed, err := Parse(SourceDatadog, map[string]any{
		"id":           "1",
		"last_updated": "yesterday-ish",
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed.Timestamp, 5*time.Second)
}

func TestParseSentryNestedIssue(t *testing.T) {
	parsed, err := Parse(SourceSentry, map[string]any{
		"data": map[string]any{
			"issue": map[string]any{
				"id":    "abc123",
				"title": "ZeroDivisionError",
				"metadata": map[string]any{
					"value": "division by zero",
				},
				"lastSeen": "2024-03-02T08:30:00.000000Z",
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "abc123", parsed.ExternalID)
	assert.Equal(t, "ZeroDivisionError", parsed.Title)
	assert.Equal(t, "division by zero", parsed.Message)
	assert.Equal(t, time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC), parsed.Timestamp)
}

func TestParseSentryNestedIssuePrefersEventFields(t *testing.T) {
	parsed, err := Parse(SourceSentry, map[string]any{
		"data": map[string]any{
			"issue": map[string]any{
				"id":       "abc123",
				"title":    "ZeroDivisionError",
				"lastSeen": "2024-03-02T08:30:00Z",
			},
			"event": map[string]any{
				"message":   "division by zero in checkout",
				"timestamp": "2024-03-02T09:00:00Z",
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "division by zero in checkout", parsed.Message)
	assert.Equal(t, time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), parsed.Timestamp)
}

func TestParseSentryFlatEvent(t *testing.T) {
	parsed, err := Parse(SourceSentry, map[string]any{
		"event_id":  "ev-9",
		"message":   "connection reset",
		"timestamp": "2024-03-02T08:30:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, "ev-9", parsed.ExternalID)
	assert.Equal(t, "connection reset", parsed.Title)
	assert.Equal(t, "connection reset", parsed.Message)
}

func TestParseSentryMissingID(t *testing.T) {
	_, err := Parse(SourceSentry, map[string]any{"message": "orphan"})
	require.Error(t, err)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParsePagerDuty(t *testing.T) {
	parsed, err := Parse(SourcePagerDuty, map[string]any{
		"event": map[string]any{
			"id":          "evt-1",
			"occurred_at": "2024-05-05T10:00:00Z",
			"data": map[string]any{
				"id":      "PD-42",
				"title":   "Checkout latency",
				"summary": "p99 above 2s",
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "PD-42", parsed.ExternalID)
	assert.Equal(t, "Checkout latency", parsed.Title)
	assert.Equal(t, "p99 above 2s", parsed.Message)
}

func TestParsePagerDutyMissingEnvelope(t *testing.T) {
	_, err := Parse(SourcePagerDuty, map[string]any{"id": "nope"})
	require.Error(t, err)
}

func TestParseUnknownSource(t *testing.T) {
	_, err := Parse("grafana", map[string]any{"id": "1"})
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "unknown source", parseErr.Reason)
}
