package events

import (
	"log/slog"
	"sync"
)

const subscriberBufferSize = 64

// Hub fans NOTIFY payloads out to SSE subscribers grouped by channel.
// Slow subscribers are skipped rather than blocking the dispatch loop;
// they recover missed events through catchup.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan []byte
}

// NewHub creates an empty subscriber hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan []byte)}
}

// Subscribe registers a subscriber on a channel. The returned cancel func
// removes the subscription and closes the event channel; it is safe to call
// more than once.
func (h *Hub) Subscribe(channel string) (<-chan []byte, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan []byte, subscriberBufferSize)

	if h.subs[channel] == nil {
		h.subs[channel] = make(map[int]chan []byte)
	}
	h.subs[channel][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if chans, ok := h.subs[channel]; ok {
				delete(chans, id)
				if len(chans) == 0 {
					delete(h.subs, channel)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Broadcast delivers a payload to every subscriber on the channel.
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs[channel] {
		select {
		case ch <- payload:
		default:
			slog.Warn("Dropping event for slow subscriber",
				"channel", channel, "subscriber_id", id)
		}
	}
}

// SubscriberCount returns the number of subscribers on a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

// Channels returns the channels that currently have subscribers.
func (h *Hub) Channels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	channels := make([]string, 0, len(h.subs))
	for channel := range h.subs {
		channels = append(channels, channel)
	}
	return channels
}
