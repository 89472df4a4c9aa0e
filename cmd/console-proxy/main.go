package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asedra/lonage-ai-platform/internal/config"
	"github.com/asedra/lonage-ai-platform/internal/httpapi"
	"github.com/asedra/lonage-ai-platform/internal/logging"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Failed to load config: %v", err)
	}
	logging.Configure(cfg.LogLevel)

	deps, err := httpapi.NewDependencies(cfg)
	if err != nil {
		logging.Fatalf("Failed to initialize dependencies: %v", err)
	}

	// Chat replies from self-hosted models can take minutes, so writes are
	// not bounded here.
	addr := ":" + cfg.Proxy.HTTPPort
	server := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewRouter(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logging.Infof("console proxy listening on %s, forwarding to %s", addr, cfg.Proxy.BackendURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Infof("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logging.Errorf("Server forced to shutdown: %v", err)
	}

	// Flush the access log and close Redis
	if err := deps.Close(ctx); err != nil {
		logging.Errorf("Failed to close dependencies: %v", err)
	}

	logging.Infof("Server exited")
}
