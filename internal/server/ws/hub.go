// Package ws implements live status push over WebSocket: the concrete
// transport for the "small pub/sub for UI notifications" called for in
// spec §9's design notes.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/coder/websocket"
)

// Event is one status-changed notification fanned out to subscribers.
type Event struct {
	SessionID string    `json:"sessionId"`
	Kind      string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

const sendTimeout = 5 * time.Second

// Hub fans out Notify calls to every currently-connected WebSocket client.
// It implements coordinator.Notifier.
type Hub struct {
	mu     stdsync.Mutex
	conns  map[*websocket.Conn]struct{}
	logger *slog.Logger
}

// New constructs an empty Hub. logger may be nil.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{conns: make(map[*websocket.Conn]struct{}), logger: logger}
}

// Notify fans Event out to every connected subscriber. Never blocks the
// caller (the coordinator) for longer than sendTimeout per connection, and
// silently drops slow or dead connections from the set.
func (h *Hub) Notify(sessionID, event string) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))

	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	payload, err := json.Marshal(Event{SessionID: sessionID, Kind: event, Timestamp: time.Now()})
	if err != nil {
		h.logger.Warn("ws: marshal event failed", "error", err)
		return
	}

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)

		if err := c.Write(ctx, websocket.MessageText, payload); err != nil {
			h.logger.Debug("ws: dropping connection after write failure", "error", err)
			h.remove(c)
		}

		cancel()
	}
}

// ServeHTTP upgrades the connection and keeps it registered until the peer
// disconnects or the request context ends.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", "error", err)
		return
	}

	h.add(conn)
	defer h.remove(conn)
	defer conn.CloseNow() //nolint:errcheck // connection already being torn down

	// Block until the client closes or the request context ends; the hub
	// only ever writes to this connection, it never reads application data.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func (h *Hub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c] = struct{}{}
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, c)
}
