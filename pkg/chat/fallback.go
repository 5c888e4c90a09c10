package chat

import (
	"context"
	"fmt"
	"strings"
)

// fallbackChunkSize is the pseudo-delta window width used by the
// deterministic generator.
const fallbackChunkSize = 24

var (
	nextStepPhrases = []string{"next step", "what should", "what now", "action"}
	summaryPhrases  = []string{"summary", "summarize", "recap", "status"}
)

// FallbackGenerator produces deterministic assistant responses without an
// LLM. The user intent is classified by keyword match and the response is
// emitted in fixed-size windows as pseudo-deltas.
type FallbackGenerator struct{}

// StreamDeltas implements Generator.
func (FallbackGenerator) StreamDeltas(ctx context.Context, p Prompt, emit func(delta string) error) error {
	text := buildAssistantMessage(p.UserMessage, p.Summary, p.NextSteps)
	for i := 0; i < len(text); i += fallbackChunkSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		end := i + fallbackChunkSize
		if end > len(text) {
			end = len(text)
		}
		if err := emit(text[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// buildAssistantMessage classifies intent and composes the response from the
// grounded summary and next steps.
func buildAssistantMessage(userMessage, summary string, nextSteps []string) string {
	normalized := strings.ToLower(strings.TrimSpace(userMessage))

	if containsAny(normalized, nextStepPhrases) {
		if len(nextSteps) > 0 {
			return "Recommended next steps:\n" + numbered(nextSteps)
		}
		return "No next steps were generated for this incident."
	}

	if containsAny(normalized, summaryPhrases) {
		return summary
	}

	if len(nextSteps) > 0 {
		return summary + "\n\nRecommended next steps:\n" + numbered(nextSteps)
	}
	return summary
}

func containsAny(s string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(s, phrase) {
			return true
		}
	}
	return false
}

func numbered(steps []string) string {
	lines := make([]string, len(steps))
	for i, step := range steps {
		lines[i] = fmt.Sprintf("%d. %s", i+1, step)
	}
	return strings.Join(lines, "\n")
}
