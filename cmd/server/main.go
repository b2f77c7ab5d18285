package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-study/internal/curriculum"
	"github.com/p-n-ai/pai-study/internal/httpapi"
	"github.com/p-n-ai/pai-study/internal/notify"
	"github.com/p-n-ai/pai-study/internal/platform/cache"
	"github.com/p-n-ai/pai-study/internal/platform/config"
	"github.com/p-n-ai/pai-study/internal/platform/database"
	"github.com/p-n-ai/pai-study/internal/state"
	"github.com/p-n-ai/pai-study/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	backend, checks, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	loader, err := curriculum.NewLoader(cfg.CurriculumPath)
	if err != nil {
		slog.Warn("using built-in curriculum", "path", cfg.CurriculumPath, "error", err)
		loader, _ = curriculum.NewLoader("")
	}

	store := state.New(backend)
	for _, d := range store.Diagnostics() {
		slog.Warn("stored slot reset to default", "key", d.StorageKey, "error", d.Err)
	}

	deps := httpapi.Deps{
		Store:   store,
		Catalog: loader.Catalog(),
		Content: loader,
		Checks:  checks,
	}
	var hub *notify.Hub
	if cfg.Server.WebSocket {
		hub = notify.NewHub(store)
		deps.Events = hub
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      httpapi.New(deps).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	if hub != nil {
		hub.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openBackend connects the configured storage driver and returns the
// readiness checks for it.
func openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, map[string]httpapi.HealthChecker, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting database: %w", err)
		}
		backend, err := storage.NewPostgresBackend(db.Pool, cfg.Storage.Namespace)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return backend, map[string]httpapi.HealthChecker{"database": db}, db.Close, nil

	case config.DriverRedis:
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting cache: %w", err)
		}
		backend, err := storage.NewRedisBackend(c.Client, cache.KeyPrefix(cfg.Storage.Namespace))
		if err != nil {
			c.Close()
			return nil, nil, nil, err
		}
		return backend, map[string]httpapi.HealthChecker{"cache": c}, func() { c.Close() }, nil

	default:
		slog.Warn("using in-memory storage; progress is lost on restart")
		return storage.NewMemoryBackend(), nil, func() {}, nil
	}
}

// newLogger builds the process logger from LEARN_LOG_LEVEL and
// LEARN_LOG_FORMAT.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
