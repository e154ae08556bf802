package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types pushed to viewers
const (
	EventNewMessage      = "new_message"
	EventMessageSent     = "message_sent"
	EventMessageDeleted  = "message_deleted"
	EventMessageReaction = "message_reaction"
	EventChatUpdate      = "chat_update"
	EventTyping          = "typing"
)

// Message is the envelope every viewer receives.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type subscriber struct {
	id string
	ch chan []byte
}

// Hub fans events out to independent per-viewer queues. A queue that is
// full drops its oldest event to make room. Nothing is replayed to
// viewers that subscribe later.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	buffer int
	closed bool
	logger *zap.Logger
}

func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[string]*subscriber),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new queue. The channel is closed by Unsubscribe or
// Close.
func (h *Hub) Subscribe() (string, <-chan []byte) {
	sub := &subscriber{id: uuid.NewString(), ch: make(chan []byte, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub.id, sub.ch
	}
	h.subs[sub.id] = sub
	h.logger.Debug("viewer subscribed", zap.String("subscriber", sub.id), zap.Int("viewers", len(h.subs)))
	return sub.id, sub.ch
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
	h.logger.Debug("viewer unsubscribed", zap.String("subscriber", id), zap.Int("viewers", len(h.subs)))
}

// Broadcast serializes the event once and enqueues it for every viewer
// without blocking.
func (h *Hub) Broadcast(event string, data interface{}) {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		select {
		case sub.ch <- payload:
			continue
		default:
		}
		// Queue full: drop the oldest and retry once.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- payload:
		default:
		}
		h.logger.Warn("viewer queue full, dropped oldest event",
			zap.String("subscriber", sub.id), zap.String("event", event))
	}
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unregisters every viewer. Later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
	h.closed = true
}
