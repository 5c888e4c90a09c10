package session

import (
	"sync"
	"time"
)

// MessageRole represents the role of a message sender.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single conversation turn.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// Conversation holds the ordered message history for one chat conversation.
// History is bounded; the oldest turns are dropped past the cap.
type Conversation struct {
	ID         string    `json:"id"`
	IncidentID int       `json:"incident_id"`
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	mu sync.RWMutex
}

// maxMessages caps the retained history per conversation.
const maxMessages = 50

// Append adds a message to the conversation (thread-safe).
func (c *Conversation) Append(role MessageRole, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Messages = append(c.Messages, Message{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	if len(c.Messages) > maxMessages {
		c.Messages = c.Messages[len(c.Messages)-maxMessages:]
	}
	c.UpdatedAt = time.Now()
}

// History returns a safe copy of the conversation's messages.
func (c *Conversation) History() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	messages := make([]Message, len(c.Messages))
	copy(messages, c.Messages)
	return messages
}
