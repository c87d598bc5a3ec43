// Package stream provides the server side of the push channel: a registry of
// connected WebSocket clients and a broadcast fan-out.
package stream

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/shopping-assistant/internal/metrics"
	"github.com/ashureev/shopping-assistant/internal/protocol"
)

const defaultQueueSize = 256

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	// closeFn overrides conn.Close in tests.
	closeFn func(websocket.StatusCode, string) error
}

func (c *client) close(code websocket.StatusCode, reason string) {
	if c.closeFn != nil {
		_ = c.closeFn(code, reason)
		return
	}
	if c.conn != nil {
		_ = c.conn.Close(code, reason)
	}
}

// Hub tracks connected clients and broadcasts frames to all of them.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*client
	queueSize int
	logger    *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return NewHubWithQueueSize(logger, defaultQueueSize)
}

// NewHubWithQueueSize creates an empty hub whose clients buffer up to size
// frames before dropping.
func NewHubWithQueueSize(logger *slog.Logger, size int) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Hub{
		clients:   make(map[string]*client),
		queueSize: size,
		logger:    logger,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	existing, replaced := h.clients[c.id]
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	if replaced && existing != c {
		existing.close(websocket.StatusNormalClosure, "client replaced")
	}
	metrics.ClientConnected()
	h.logger.Info("Stream client registered", "client_id", c.id, "clients", count)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[c.id]; ok && current == c {
		delete(h.clients, c.id)
		metrics.ClientDisconnected()
		h.logger.Info("Stream client unregistered", "client_id", c.id, "clients", len(h.clients))
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish encodes frame and queues it for every client. Clients whose queue
// is full miss the frame.
func (h *Hub) Publish(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Failed to encode frame", "error", err)
		return
	}
	eventType, err := protocol.PeekType(data)
	if err != nil {
		h.logger.Error("Refusing to publish frame without type", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if h.enqueue(c, data) {
			metrics.FrameSent(eventType)
		}
	}
}

func (h *Hub) enqueue(c *client, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		metrics.FrameDropped()
		h.logger.Warn("Stream client queue full, frame dropped", "client_id", c.id)
		return false
	}
}

// CloseAll removes every client and then closes their connections. Close
// handshakes run outside the lock so Publish never waits on them.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	closing := make([]*client, 0, len(h.clients))
	for id, c := range h.clients {
		closing = append(closing, c)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, c := range closing {
		c.close(websocket.StatusGoingAway, "server shutting down")
		metrics.ClientDisconnected()
	}
}
