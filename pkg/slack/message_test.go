package slack

import (
	"strings"
	"testing"
	"unicode/utf8"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIncidentOpenedMessage(t *testing.T) {
	input := IncidentOpenedInput{
		IncidentID: 42,
		Title:      "Database latency spike in payments",
		Severity:   "critical",
		Services:   []string{"payments", "db"},
		AlertTitle: "p99 latency above threshold",
	}
	blocks := BuildIncidentOpenedMessage(input, "https://ops.example.com")

	require.Len(t, blocks, 3)

	header, ok := blocks[0].(*goslack.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, header.Text.Text, ":rotating_light:")
	assert.Contains(t, header.Text.Text, "INC-42")
	assert.Contains(t, header.Text.Text, "Database latency spike in payments")

	details := blocks[1].(*goslack.SectionBlock)
	assert.Contains(t, details.Text.Text, "*Severity:* critical")
	assert.Contains(t, details.Text.Text, "payments, db")
	assert.Contains(t, details.Text.Text, "p99 latency above threshold")

	action := blocks[2].(*goslack.ActionBlock)
	require.Len(t, action.Elements.ElementSet, 1)
	btn, ok := action.Elements.ElementSet[0].(*goslack.ButtonBlockElement)
	require.True(t, ok)
	assert.Equal(t, "View Incident", btn.Text.Text)
	assert.Equal(t, "https://ops.example.com/incidents/42", btn.URL)
}

func TestBuildIncidentOpenedMessage_UnknownSeverity(t *testing.T) {
	blocks := BuildIncidentOpenedMessage(IncidentOpenedInput{
		IncidentID: 7,
		Title:      "Odd alert",
		Severity:   "catastrophic",
	}, "https://ops.example.com")

	header := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, header.Text.Text, ":question:")
}

func TestBuildIncidentOpenedMessage_SkipsDuplicateAlertTitle(t *testing.T) {
	blocks := BuildIncidentOpenedMessage(IncidentOpenedInput{
		IncidentID: 8,
		Title:      "Same title",
		Severity:   "warning",
		AlertTitle: "Same title",
	}, "https://ops.example.com")

	details := blocks[1].(*goslack.SectionBlock)
	assert.NotContains(t, details.Text.Text, "Triggering alert")
}

func TestBuildStatusChangedMessage(t *testing.T) {
	t.Run("with user", func(t *testing.T) {
		blocks := BuildStatusChangedMessage(42, "resolved", "alice", "https://ops.example.com")

		require.Len(t, blocks, 1)
		section := blocks[0].(*goslack.SectionBlock)
		assert.Contains(t, section.Text.Text, ":white_check_mark:")
		assert.Contains(t, section.Text.Text, "INC-42")
		assert.Contains(t, section.Text.Text, "*resolved*")
		assert.Contains(t, section.Text.Text, "(by alice)")
		assert.Contains(t, section.Text.Text, "https://ops.example.com/incidents/42")
	})

	t.Run("without user", func(t *testing.T) {
		blocks := BuildStatusChangedMessage(42, "investigating", "", "https://ops.example.com")

		section := blocks[0].(*goslack.SectionBlock)
		assert.Contains(t, section.Text.Text, ":mag:")
		assert.NotContains(t, section.Text.Text, "(by")
	})
}

func TestTruncateForSlack(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", truncateForSlack("hello"))
	})

	t.Run("exact limit unchanged", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength)
		assert.Equal(t, text, truncateForSlack(text))
	})

	t.Run("over limit truncated", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength+100)
		result := truncateForSlack(text)
		assert.True(t, len(result) < len(text))
		assert.Contains(t, result, "truncated")
	})

	t.Run("multi-byte runes not split", func(t *testing.T) {
		text := strings.Repeat("🔥", maxBlockTextLength+10)
		result := truncateForSlack(text)
		assert.Contains(t, result, "truncated")
		assert.True(t, utf8.ValidString(result), "result should be valid UTF-8")
		prefix := strings.Split(result, "\n\n_...")[0]
		assert.Equal(t, maxBlockTextLength, utf8.RuneCountInString(prefix))
	})
}
