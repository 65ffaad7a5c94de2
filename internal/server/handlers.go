// Package server exposes HTTP handlers, including WebSocket upgrades and
// health checks.
package server

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the body served by HealthHandler.
type HealthResponse struct {
	Status string `json:"status"`
	HubStats
}

// WebSocketHandler handles WebSocket upgrade requests and manages client connections.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, creates a new Client instance, and registers it with the hub,
// which starts the client's read/write pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "remoteAddr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr)
	if !s.hub.Register(client) {
		s.logger.Info("Rejecting connection during shutdown", "remoteAddr", r.RemoteAddr)
		client.closeConnection()
	}
}

// HealthHandler reports that the server is running along with current hub occupancy.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := HealthResponse{Status: "ok", HubStats: s.hub.Stats()}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("Error writing health response", "error", err)
	}
}
