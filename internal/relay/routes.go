// Package relay wires the HTTP handlers into a ServeMux.
package relay

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all relay routes:
// health check, WebSocket endpoint, and history export.
func SetupRoutes(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.Health)
	mux.HandleFunc("/ws", h.WebSocket)
	mux.HandleFunc("/history", h.History)
	return mux
}
