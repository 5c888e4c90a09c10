package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager()

	conv := m.GetOrCreate("incident-1", 1)
	require.NotNil(t, conv)
	assert.Equal(t, "incident-1", conv.ID)
	assert.Equal(t, 1, conv.IncidentID)

	again := m.GetOrCreate("incident-1", 1)
	assert.Same(t, conv, again)
}

func TestManager_AppendAndHistory(t *testing.T) {
	m := NewManager()

	m.Append("incident-2", 2, RoleUser, "what happened?")
	m.Append("incident-2", 2, RoleAssistant, "Database latency spiked.")

	history := m.History("incident-2")
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "what happened?", history[0].Content)
	assert.Equal(t, RoleAssistant, history[1].Role)

	t.Run("history is a copy", func(t *testing.T) {
		history[0].Content = "mutated"
		fresh := m.History("incident-2")
		assert.Equal(t, "what happened?", fresh[0].Content)
	})
}

func TestManager_HistoryUnknownConversation(t *testing.T) {
	m := NewManager()
	assert.Nil(t, m.History("missing"))
}

func TestManager_Delete(t *testing.T) {
	m := NewManager()
	m.Append("incident-3", 3, RoleUser, "hello")

	m.Delete("incident-3")
	assert.Nil(t, m.History("incident-3"))

	// Deleting again is a no-op.
	m.Delete("incident-3")
}

func TestConversation_BoundedHistory(t *testing.T) {
	m := NewManager()
	for i := 0; i < maxMessages+10; i++ {
		m.Append("incident-4", 4, RoleUser, fmt.Sprintf("message %d", i))
	}

	history := m.History("incident-4")
	require.Len(t, history, maxMessages)
	assert.Equal(t, "message 10", history[0].Content, "oldest turns are dropped first")
}

func TestManager_ConcurrentAppend(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Append("incident-5", 5, RoleUser, "concurrent")
		}()
	}
	wg.Wait()

	assert.Len(t, m.History("incident-5"), 10)
}
