package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/huddle/backend/internal/config"
	"github.com/zhouzirui/huddle/backend/internal/handler"
	"github.com/zhouzirui/huddle/backend/internal/logger"
	sessionModel "github.com/zhouzirui/huddle/backend/internal/model/session"
	presenceService "github.com/zhouzirui/huddle/backend/internal/service/presence"
	sessionService "github.com/zhouzirui/huddle/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	store, err := newStore(ctx, cfg.Redis)
	if err != nil {
		slog.Error("failed to initialize session store", "error", err)
		os.Exit(1)
	}

	sessionSvc := sessionService.NewService(store, cfg.Session.HeartbeatInterval)
	hub := presenceService.NewHub()
	registry := presenceService.NewRegistry(hub)

	go sessionSvc.RunReaper(ctx)
	go registry.RunPruner(ctx, cfg.Presence.PruneInterval, cfg.Presence.PruneAfter)

	router := handler.NewRouter(sessionSvc, registry, hub)

	startServer(ctx, cfg.Server, router)
}

// newStore selects the Redis-backed store when configured, the in-memory
// store otherwise.
func newStore(ctx context.Context, cfg config.RedisConfig) (sessionModel.Store, error) {
	if !cfg.Enabled() {
		slog.Info("REDIS_ADDR not set, using in-memory session store")
		return sessionModel.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	slog.Info("connected to redis", "addr", cfg.Addr)
	return sessionModel.NewRedisStore(client), nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("huddle backend listening", "addr", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
