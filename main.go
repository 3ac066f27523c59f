package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"docroom/internal/api"
	"docroom/internal/config"
	"docroom/internal/session"
	"docroom/internal/storage"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("storage init failed", "backend", cfg.Storage, "error", err)
		os.Exit(1)
	}

	manager := session.NewManager(session.ManagerConfig{
		Store:             store,
		Logger:            logger,
		MaxConnections:    cfg.MaxConnections,
		HeartbeatInterval: cfg.HeartbeatInterval,
		IdleTimeout:       cfg.IdleTimeout,
		HistoryLimit:      cfg.HistoryLimit,
	})

	server := api.NewServer(api.ServerConfig{
		Manager:        manager,
		Store:          store,
		Logger:         logger,
		MaxConnections: cfg.MaxConnections,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "storage", cfg.Storage)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}

	manager.CloseAll()

	if err := store.Close(); err != nil {
		logger.Warn("storage close", "error", err)
	}
}

// openStore builds the configured storage backend.
func openStore(cfg config.Config) (storage.Store, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return storage.NewMemoryStore(), nil
	case config.StorageBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.BoltPath), 0o750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}

		return storage.NewBoltStore(cfg.BoltPath)
	case config.StorageRedis:
		return storage.NewRedisStore(cfg.RedisURL)
	case config.StoragePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
