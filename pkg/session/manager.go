// Package session keeps in-memory chat conversation history so follow-up
// questions carry their earlier turns. History is per-process and best-effort;
// losing it degrades a conversation to single-turn, nothing more.
package session

import (
	"sync"
	"time"
)

// Manager manages conversations in memory.
type Manager struct {
	conversations map[string]*Conversation
	mu            sync.RWMutex
}

// NewManager creates a new conversation manager.
func NewManager() *Manager {
	return &Manager{
		conversations: make(map[string]*Conversation),
	}
}

// GetOrCreate returns the conversation with the given ID, creating it if
// needed.
func (m *Manager) GetOrCreate(conversationID string, incidentID int) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.conversations[conversationID]; ok {
		return conv
	}

	now := time.Now()
	conv := &Conversation{
		ID:         conversationID,
		IncidentID: incidentID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.conversations[conversationID] = conv
	return conv
}

// Append records a message on the conversation, creating it if needed.
func (m *Manager) Append(conversationID string, incidentID int, role MessageRole, content string) {
	m.GetOrCreate(conversationID, incidentID).Append(role, content)
}

// History returns a copy of the conversation's messages, or nil when the
// conversation is unknown.
func (m *Manager) History(conversationID string) []Message {
	m.mu.RLock()
	conv, ok := m.conversations[conversationID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return conv.History()
}

// Delete removes a conversation. Unknown IDs are a no-op.
func (m *Manager) Delete(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, conversationID)
}
