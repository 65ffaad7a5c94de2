package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/Tyrowin/relaychat/internal/server"
)

func main() {
	cfg, err := server.LoadConfig(os.Getenv("CHAT_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := server.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	logger.Info("Starting relaychat server...", "port", cfg.Port, "allowedOrigins", cfg.AllowedOrigins)

	srv, err := server.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	srv.StartHub()

	httpServer := server.CreateServer(cfg.Port, srv.SetupRoutes())

	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"relaychat": func(ctx context.Context) error {
				return srv.Shutdown(ctx, httpServer)
			},
		},
	)

	exitCode := <-wait
	logger.Info("Server exited", "code", exitCode)
	os.Exit(exitCode)
}
