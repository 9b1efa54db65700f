// Package stream fans inbound messages out to websocket subscribers.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/tgrelay/internal/domain"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

// Subscriber is one connected websocket client.
type Subscriber struct {
	id     uint64
	events chan domain.WebhookPayload
}

// Events returns the subscriber's event channel. It is closed when the
// subscriber is unregistered.
func (s *Subscriber) Events() <-chan domain.WebhookPayload {
	return s.events
}

// Hub tracks subscribers and broadcasts events to them. Slow subscribers
// drop events rather than blocking the broadcaster.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscriber
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[uint64]*Subscriber),
		logger: logger,
	}
}

// Register adds a subscriber.
func (h *Hub) Register() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscriber{id: h.nextID, events: make(chan domain.WebhookPayload, subscriberBuffer)}
	h.subs[sub.id] = sub
	h.logger.Info("Event stream subscriber registered", "subscriber_id", sub.id, "subscribers", len(h.subs))
	return sub
}

// Unregister removes a subscriber and closes its channel. Unregistering
// twice is a no-op.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.subs[sub.id]; ok && current == sub {
		delete(h.subs, sub.id)
		close(sub.events)
		h.logger.Info("Event stream subscriber unregistered", "subscriber_id", sub.id, "subscribers", len(h.subs))
	}
}

// Broadcast delivers an event to every subscriber without blocking.
func (h *Hub) Broadcast(evt domain.WebhookPayload) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.subs {
		select {
		case sub.events <- evt:
		default:
			h.logger.Warn("Event stream subscriber is slow, dropping event", "subscriber_id", id, "message_id", evt.MessageID)
		}
	}
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Serve pumps events to an accepted websocket until the client goes away or
// ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, ws *websocket.Conn) {
	sub := h.Register()
	defer h.Unregister(sub)

	// Read loop only detects client close; inbound frames are ignored.
	ctx = ws.CloseRead(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, ws, evt)
			cancel()
			if err != nil {
				if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
					h.logger.Debug("Event stream closed by client", "subscriber_id", sub.id)
				} else {
					h.logger.Warn("Event stream write error", "error", err, "subscriber_id", sub.id)
				}
				return
			}
		}
	}
}
