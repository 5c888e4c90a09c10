package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAssistantMessageNextStepsIntent(t *testing.T) {
	msg := buildAssistantMessage("what should we do now?", "the summary", []string{"Step A", "Step B"})
	assert.Equal(t, "Recommended next steps:\n1. Step A\n2. Step B", msg)
}

func TestBuildAssistantMessageNextStepsIntentWithoutSteps(t *testing.T) {
	msg := buildAssistantMessage("next step?", "the summary", nil)
	assert.Equal(t, "No next steps were generated for this incident.", msg)
}

func TestBuildAssistantMessageSummaryIntent(t *testing.T) {
	msg := buildAssistantMessage("Give me a RECAP", "the summary", []string{"Step A"})
	assert.Equal(t, "the summary", msg)
}

func TestBuildAssistantMessageDefaultIntent(t *testing.T) {
	msg := buildAssistantMessage("help me", "the summary", []string{"Step A"})
	assert.Equal(t, "the summary\n\nRecommended next steps:\n1. Step A", msg)
}

func TestBuildAssistantMessageDefaultIntentNoSteps(t *testing.T) {
	msg := buildAssistantMessage("help me", "the summary", nil)
	assert.Equal(t, "the summary", msg)
}

func TestFallbackGeneratorWindows(t *testing.T) {
	text := strings.Repeat("x", 60)
	var deltas []string
	err := FallbackGenerator{}.StreamDeltas(context.Background(),
		Prompt{UserMessage: "summary please", Summary: text},
		func(delta string) error {
			deltas = append(deltas, delta)
			return nil
		})
	require.NoError(t, err)

	require.Len(t, deltas, 3)
	assert.Len(t, deltas[0], 24)
	assert.Len(t, deltas[1], 24)
	assert.Len(t, deltas[2], 12)
	assert.Equal(t, text, strings.Join(deltas, ""))
}

func TestFallbackGeneratorEmptyText(t *testing.T) {
	calls := 0
	err := FallbackGenerator{}.StreamDeltas(context.Background(),
		Prompt{UserMessage: "summary", Summary: ""},
		func(string) error {
			calls++
			return nil
		})
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestFallbackGeneratorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := FallbackGenerator{}.StreamDeltas(ctx,
		Prompt{UserMessage: "summary", Summary: strings.Repeat("y", 200)},
		func(string) error {
			calls++
			cancel()
			return nil
		})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestFallbackGeneratorEmitErrorStops(t *testing.T) {
	err := FallbackGenerator{}.StreamDeltas(context.Background(),
		Prompt{UserMessage: "summary", Summary: strings.Repeat("z", 200)},
		func(string) error {
			return assert.AnError
		})
	assert.ErrorIs(t, err, assert.AnError)
}
