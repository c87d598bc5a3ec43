package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/ashureev/shopping-assistant/internal/protocol"
)

const writeTimeout = 5 * time.Second

// pong answers a client ping.
type pong struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Handler upgrades requests to the push channel.
type Handler struct {
	hub           *Hub
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a push-channel handler backed by hub.
func NewHandler(hub *Hub, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	c := &client{
		id:   ulid.Make().String(),
		conn: ws,
		send: make(chan []byte, h.hub.queueSize),
	}
	h.hub.register(c)
	defer h.hub.unregister(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		h.writeLoop(ctx, c)
	}()
	h.readLoop(ctx, c)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, c *client) {
	for {
		_, message, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "client_id", c.id)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "client_id", c.id)
			}
			return
		}

		eventType, err := protocol.PeekType(message)
		if err != nil {
			slog.Debug("Ignoring malformed client frame", "client_id", c.id, "error", err)
			continue
		}

		switch eventType {
		case protocol.EventPing:
			data, err := json.Marshal(pong{
				Type:      protocol.EventPong,
				Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			})
			if err == nil {
				h.hub.enqueue(c, data)
			}
		default:
			slog.Debug("Client frame", "client_id", c.id, "type", eventType)
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					slog.Debug("WebSocket write error", "error", err, "client_id", c.id)
				}
				return
			}
		}
	}
}
