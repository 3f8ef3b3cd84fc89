package presence

import (
	"log/slog"
	"sync"

	"github.com/zhouzirui/huddle/backend/internal/model/presence"
)

// subscriberBuffer bounds each connection's outbound queue. A subscriber that
// falls this far behind starts losing events rather than blocking delivery
// to everyone else.
const subscriberBuffer = 32

// Subscriber is one live connection's view of the broadcast stream.
type Subscriber struct {
	ConnID string
	UserID string
	Events chan presence.Event
}

// Hub fans presence events out to subscribed connections. Sends are
// non-blocking: a slow or dead subscriber never delays the rest.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscriber)}
}

// Join registers a connection and returns its event channel. Events
// broadcast after Join are queued in order; the caller is expected to send
// its snapshot frame before draining the channel.
func (h *Hub) Join(connID, userID string) *Subscriber {
	sub := &Subscriber{
		ConnID: connID,
		UserID: userID,
		Events: make(chan presence.Event, subscriberBuffer),
	}
	h.mu.Lock()
	h.subs[connID] = sub
	h.mu.Unlock()
	return sub
}

// Leave removes a connection and closes its event channel.
func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	sub, ok := h.subs[connID]
	if ok {
		delete(h.subs, connID)
	}
	h.mu.Unlock()
	if ok {
		close(sub.Events)
	}
}

// Broadcast queues an event for every subscriber except excludeConnID.
// Events for a given user are queued in the order Broadcast is called; no
// ordering holds across different users.
func (h *Hub) Broadcast(evt presence.Event, excludeConnID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID, sub := range h.subs {
		if connID == excludeConnID {
			continue
		}
		select {
		case sub.Events <- evt:
		default:
			slog.Warn("presence subscriber queue full, dropping event",
				"conn", connID, "user", sub.UserID, "event", evt.Type)
		}
	}
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
