// Command engined runs the removal engine behind its HTTP boundary.
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

	"github.com/redis/go-redis/v9"

	"github.com/optoutdao/engine/pkg/api"
	"github.com/optoutdao/engine/pkg/config"
	"github.com/optoutdao/engine/pkg/engine"
	"github.com/optoutdao/engine/pkg/observability"
	"github.com/optoutdao/engine/pkg/store"
)

func main() {
	cfg := config.Load()

	level := slog.LevelInfo
	if cfg.LogLevel == "DEBUG" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params, err := config.LoadParams(cfg.ParamsFile)
	if err != nil {
		logger.Error("failed to load engine params", "error", err)
		os.Exit(1)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obsCfg.Enabled = cfg.Telemetry
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		logger.Error("failed to init observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	journal, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open journal archive", "error", err)
		os.Exit(1)
	}
	defer func() { _ = journal.Close() }()

	eng, err := engine.New(cfg.Owner, params,
		engine.WithLogger(logger),
		engine.WithRecorder(obs),
		engine.WithArchiver(journal),
	)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	var idem api.IdempotencyStorer
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		idem = api.NewRedisIdempotencyStore(client, 24*time.Hour)
		logger.Info("idempotency store: redis", "addr", cfg.RedisAddr)
	} else {
		idem = api.NewIdempotencyStore(24 * time.Hour)
		logger.Info("idempotency store: memory")
	}

	rl := api.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitRPS*2)
	handler := api.NewServer(eng).Handler(rl, idem)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("engine listening", "port", cfg.Port, "owner", cfg.Owner)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
