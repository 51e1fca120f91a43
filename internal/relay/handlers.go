// Package relay exposes the HTTP surface: the WebSocket upgrade endpoint,
// a health check, and the conversation history export.
package relay

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Handler bundles the HTTP endpoints with their dependencies. Everything is
// constructed once at startup and injected; there is no package-level state.
type Handler struct {
	hub      *Hub
	store    *MessageStore
	upgrader websocket.Upgrader
}

// NewHandler wires the endpoints to the hub and conversation log, building
// the origin allow-list from configuration.
func NewHandler(hub *Hub, store *MessageStore, cfg Config) *Handler {
	policy := newOriginPolicy(cfg.AllowedOrigins)
	return &Handler{
		hub:   hub,
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.checkOrigin,
		},
	}
}

// WebSocket upgrades the request and registers the new connection with the
// hub in the pending state. The hub launches the pump goroutines.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr)

	select {
	case h.hub.register <- client:
	case <-h.hub.ctx.Done():
		_ = conn.Close()
	}
}

// Health responds with a plain text message indicating the relay is running.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Parla relay is running!")
}

// History returns every message accepted so far, in receipt order, rendered
// as broadcast frames. The log is export-only: it is never replayed over
// WebSocket to late joiners.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed.", http.StatusMethodNotAllowed)
		return
	}

	frames := lo.Map(h.store.Snapshot(), func(msg ChatMessage, _ int) BroadcastFrame {
		return msg.Frame()
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(frames); err != nil {
		log.Printf("Error writing history response: %v", err)
	}
}
