// Package server constructs and starts the relaychat HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and begins listening for connections.
// It returns an error if the server fails to start.
func StartServer(server *http.Server) error {
	slog.Info("Server listening", "addr", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until ctx ends. Hijacked
// WebSocket connections are closed by the hub, not here.
func ShutdownServer(ctx context.Context, server *http.Server) error {
	slog.Info("Shutting down HTTP server...")

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}

	slog.Info("HTTP server shutdown completed")
	return nil
}

// Shutdown stops httpServer and then the hub, so no upgrade can register a
// client with a hub that is already gone.
func (s *Server) Shutdown(ctx context.Context, httpServer *http.Server) error {
	httpErr := ShutdownServer(ctx, httpServer)
	return errors.Join(httpErr, s.hub.Shutdown(ctx))
}
