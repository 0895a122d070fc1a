package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/pollchat/internal/auth"
	"github.com/mmynk/pollchat/internal/config"
	"github.com/mmynk/pollchat/internal/docserver"
	"github.com/mmynk/pollchat/internal/storage/sqlite"
	"github.com/mmynk/pollchat/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	cfg, err := config.Load(getEnv("CHAT_CONFIG", ""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup structured logging
	logging.Configure(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.Server.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.Server.DBPath)

	var jwtManager *auth.JWTManager
	if cfg.Server.TokenSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.Server.TokenSecret, cfg.Server.TokenTTL)
		slog.Info("Bearer token auth enabled")
	}

	// Wrap with h2c for HTTP/2 without TLS
	handler := h2c.NewHandler(docserver.New(store).Handler(jwtManager), &http2.Server{})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	slog.Info("Document store starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Document store stopped")
}
