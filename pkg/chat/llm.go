package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/opsrelay/opsrelay/pkg/models"
	"github.com/opsrelay/opsrelay/pkg/session"
)

const systemPrompt = "You are OpsRelay incident copilot.\n" +
	"Produce concise, operator-ready responses.\n" +
	"Formatting requirements:\n" +
	"- Use short paragraphs.\n" +
	"- Use bullet lists for grouped items.\n" +
	"- Use numbered lists for ordered actions.\n" +
	"- Keep line breaks explicit.\n" +
	"- Do not invent facts outside the provided context.\n" +
	"- If context is insufficient, state that clearly.\n"

// LLMGenerator streams assistant deltas from a chat completion model.
type LLMGenerator struct {
	client openai.Client
	model  string
}

// NewLLMGenerator creates an LLM-backed generator.
func NewLLMGenerator(apiKey, model string) *LLMGenerator {
	return &LLMGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// StreamDeltas implements Generator.
func (g *LLMGenerator) StreamDeltas(ctx context.Context, p Prompt, emit func(delta string) error) error {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	for _, turn := range p.History {
		switch turn.Role {
		case session.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(userPrompt(p)))

	stream := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    openai.ChatModel(g.model),
	})
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := emit(delta); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("chat completion stream failed: %w", err)
	}
	return nil
}

// userPrompt composes the operator question with the grounded context.
func userPrompt(p Prompt) string {
	stepLines := "None"
	if len(p.NextSteps) > 0 {
		stepLines = numbered(p.NextSteps)
	}

	citationLines := "None"
	if len(p.Citations) > 0 {
		lines := make([]string, len(p.Citations))
		for i, c := range p.Citations {
			lines[i] = citationLabel(c, i+1)
		}
		citationLines = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(
		"Operator question:\n%s\n\nUse only this context:\nIncident Summary:\n%s\n\nCandidate Next Steps:\n%s\n\nCitations:\n%s",
		p.UserMessage, p.Summary, stepLines, citationLines)
}

func citationLabel(c models.Citation, idx int) string {
	switch c.Type {
	case models.CitationIncident:
		return strings.TrimSpace(fmt.Sprintf("[%d] incident #%d: %s", idx, c.ID, c.Title))
	case models.CitationAlert:
		return strings.TrimSpace(fmt.Sprintf("[%d] alert #%d: %s", idx, c.ID, c.Title))
	case models.CitationRunbook:
		source := c.SourceDocument
		if source == "" {
			source = "runbook"
		}
		if c.ChunkIndex == nil {
			return fmt.Sprintf("[%d] runbook: %s", idx, source)
		}
		return fmt.Sprintf("[%d] runbook: %s (chunk %d)", idx, source, *c.ChunkIndex)
	default:
		return fmt.Sprintf("[%d] source", idx)
	}
}
