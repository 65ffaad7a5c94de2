// Package server ties configuration, the hub, and the WebSocket upgrader
// together behind the Server type.
package server

import (
	"log/slog"

	"github.com/gorilla/websocket"
)

// Server holds everything the HTTP handlers need: the validated config,
// the hub, and an upgrader bound to the configured origin policy.
type Server struct {
	cfg      Config
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New builds a Server from cfg. The hub is created but not started; call
// StartHub before serving requests.
func New(cfg *Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}
	if logger == nil {
		logger = slog.Default()
	}

	sanitized := sanitizeConfig(*cfg)
	origins := newOriginPolicy(sanitized.AllowedOrigins, logger)

	return &Server{
		cfg: sanitized,
		hub: NewHub(sanitized, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		logger: logger,
	}, nil
}

// Config returns the effective configuration after defaults were applied.
func (s *Server) Config() Config {
	return s.cfg
}

// Hub returns the server's hub for shutdown coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}

// StartHub starts the hub's event loop in a separate goroutine.
// This should be called before starting the HTTP server.
func (s *Server) StartHub() {
	go s.hub.Run()
	s.logger.Info("Hub started and ready to manage WebSocket connections")
}
