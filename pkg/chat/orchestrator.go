// Package chat orchestrates the incident-scoped assistant stream: it grounds
// the response in the summarizer's output and emits an ordered SSE event
// sequence with exactly one terminal done event.
package chat

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/opsrelay/opsrelay/pkg/models"
	"github.com/opsrelay/opsrelay/pkg/session"
	"github.com/opsrelay/opsrelay/pkg/summarize"
)

const summarizeTool = "incident.summarize"

// Event is one server-sent event. Data is marshaled verbatim by the
// transport layer.
type Event struct {
	Name string
	Data map[string]any
}

// EmitFunc delivers an event to the client. Returning an error (client
// disconnected) stops the stream; no further events are attempted.
type EmitFunc func(Event) error

// Prompt carries the grounded context handed to a generator. History holds
// the conversation's earlier turns, oldest first; it is empty on the first
// turn or when no history store is attached.
type Prompt struct {
	UserMessage string
	Summary     string
	NextSteps   []string
	Citations   []models.Citation
	History     []session.Message
}

// Generator produces assistant deltas for a prompt. emit is called once per
// delta; an emit error aborts generation.
type Generator interface {
	StreamDeltas(ctx context.Context, p Prompt, emit func(delta string) error) error
}

// ContextBuilder is the summarizer surface the orchestrator depends on.
type ContextBuilder interface {
	SummarizeWithLimits(ctx context.Context, incidentID, limitSimilar, limitRunbook int, force bool) (*summarize.Result, error)
}

// Request is one chat turn. Zero retrieval limits fall back to the
// summarizer defaults.
type Request struct {
	IncidentID     int
	Message        string
	ConversationID string
	LimitSimilar   int
	LimitRunbook   int
}

// Orchestrator runs one chat turn per Stream call.
type Orchestrator struct {
	builder   ContextBuilder
	generator Generator
	history   *session.Manager
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(builder ContextBuilder, generator Generator, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{builder: builder, generator: generator, logger: logger}
}

// WithHistory attaches a conversation store. Without one, every turn is
// single-shot.
func (o *Orchestrator) WithHistory(store *session.Manager) *Orchestrator {
	o.history = store
	return o
}

// Stream executes the chat state machine for one user message. The event
// order is: tool running, assistant deltas, assistant, tool done, done{ok}.
// Any failure after the opening tool event yields the failure trio instead:
// tool failed, error, done{ok:false}. An emit error means the client is gone;
// the stream stops immediately without further events.
func (o *Orchestrator) Stream(ctx context.Context, req Request, emit EmitFunc) error {
	incidentID := req.IncidentID
	userMessage := req.Message
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = fmt.Sprintf("incident-%d", incidentID)
	}
	limitSimilar := req.LimitSimilar
	if limitSimilar <= 0 {
		limitSimilar = summarize.DefaultSimilarLimit
	}
	limitRunbook := req.LimitRunbook
	if limitRunbook <= 0 {
		limitRunbook = summarize.DefaultRunbookLimit
	}
	messageID := newAssistantMessageID()

	if err := emit(Event{Name: "tool", Data: map[string]any{
		"tool":   summarizeTool,
		"status": "running",
	}}); err != nil {
		return err
	}

	result, err := o.builder.SummarizeWithLimits(ctx, incidentID, limitSimilar, limitRunbook, false)
	if err != nil {
		o.logger.Warn("Chat context build failed", "incident_id", incidentID, "error", err)
		return o.emitFailure(emit, err)
	}

	prompt := Prompt{
		UserMessage: userMessage,
		Summary:     result.Summary,
		NextSteps:   result.NextSteps,
		Citations:   result.Citations,
	}
	if o.history != nil {
		prompt.History = o.history.History(conversationID)
	}

	var parts []string
	streamErr := o.generator.StreamDeltas(ctx, prompt, func(delta string) error {
		parts = append(parts, delta)
		return emit(Event{Name: "assistant_delta", Data: map[string]any{
			"id":              messageID,
			"role":            "assistant",
			"delta":           delta,
			"conversation_id": conversationID,
		}})
	})
	if streamErr != nil {
		if ctx.Err() != nil {
			// Client disconnected; nothing left to deliver events to.
			return streamErr
		}
		o.logger.Warn("Assistant stream failed",
			"incident_id", incidentID,
			"deltas_emitted", len(parts),
			"error", streamErr)
		return o.emitFailure(emit, streamErr)
	}

	content := strings.TrimSpace(strings.Join(parts, ""))
	if content == "" {
		return o.emitFailure(emit, fmt.Errorf("LLM stream returned no content"))
	}

	if o.history != nil {
		o.history.Append(conversationID, incidentID, session.RoleUser, userMessage)
		o.history.Append(conversationID, incidentID, session.RoleAssistant, content)
	}

	if err := emit(Event{Name: "assistant", Data: map[string]any{
		"id":              messageID,
		"role":            "assistant",
		"content":         content,
		"citations":       result.Citations,
		"conversation_id": conversationID,
	}}); err != nil {
		return err
	}
	if err := emit(Event{Name: "tool", Data: map[string]any{
		"tool":   summarizeTool,
		"status": "done",
	}}); err != nil {
		return err
	}
	return emit(Event{Name: "done", Data: map[string]any{"ok": true}})
}

// emitFailure sends the failure trio. Emit errors are returned but the trio
// is never reordered or partially upgraded to a success.
func (o *Orchestrator) emitFailure(emit EmitFunc, cause error) error {
	if err := emit(Event{Name: "tool", Data: map[string]any{
		"tool":   summarizeTool,
		"status": "failed",
	}}); err != nil {
		return err
	}
	if err := emit(Event{Name: "error", Data: map[string]any{
		"message": cause.Error(),
	}}); err != nil {
		return err
	}
	return emit(Event{Name: "done", Data: map[string]any{"ok": false}})
}

func newAssistantMessageID() string {
	id := uuid.New()
	return "assistant-" + hex.EncodeToString(id[:])
}
