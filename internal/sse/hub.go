package sse

import (
	"log/slog"
	"sync"
)

// AllTopic receives every event regardless of host.
const AllTopic = "*"

// Event represents a server-sent event to be published to subscribers.
type Event struct {
	Type string // "decision", "stats"
	Data []byte // JSON payload
}

// Hub is a fan-out hub keyed by topic. The edge publishes each decision to
// AllTopic and to the request host.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	logger      *slog.Logger
}

// NewHub creates a new SSE hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a new subscriber for topic. The returned cancel
// function must be called when the subscriber disconnects.
func (h *Hub) Subscribe(topic string) (chan Event, func()) {
	ch := make(chan Event, 64)
	h.mu.Lock()
	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[chan Event]struct{})
	}
	h.subscribers[topic][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers[topic], ch)
			if len(h.subscribers[topic]) == 0 {
				delete(h.subscribers, topic)
			}
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish sends an event to all subscribers of topic. Slow subscribers
// lose the event instead of blocking the publisher.
func (h *Hub) Publish(topic string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[topic] {
		select {
		case ch <- event:
		default:
			h.logger.Warn("sse: dropped event for slow client", "topic", topic)
		}
	}
}

// PublishDecision publishes a decision payload to AllTopic and to host.
func (h *Hub) PublishDecision(host string, data []byte) {
	event := Event{Type: "decision", Data: data}
	h.Publish(AllTopic, event)
	if host != "" && host != AllTopic {
		h.Publish(host, event)
	}
}

// SubscriberCount returns the number of active subscribers for topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}
