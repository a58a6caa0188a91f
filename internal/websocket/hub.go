package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Message is a real-time notification pushed to connected clients.
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, data any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Data:   data,
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	gauge   prometheus.Gauge
}

type HubOption func(*Hub)

// WithClientGauge tracks the number of connected clients in g.
func WithClientGauge(g prometheus.Gauge) HubOption {
	return func(h *Hub) { h.gauge = g }
}

func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.setGauge(n)
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.setGauge(n)
}

func (h *Hub) setGauge(n int) {
	if h.gauge != nil {
		h.gauge.Set(float64(n))
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	h.send(msg, func(*Client) bool { return true })
}

// SendTo sends a message to every connection of memberID.
func (h *Hub) SendTo(memberID string, msg Message) {
	h.send(msg, func(c *Client) bool { return c.memberID == memberID })
}

func (h *Hub) send(msg Message, match func(*Client) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop rather than block the sender.
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
