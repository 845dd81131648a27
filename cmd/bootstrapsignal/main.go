package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/auth"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/clock"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/config"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/httpapi"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/logging"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/ratelimit"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/rendezvous"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/room"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/signaling"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/tracing"
)

// shutdownDrainDeadline bounds how long outbound queues are given to
// drain before hub.Shutdown force-closes the remaining sessions (§5).
const shutdownDrainDeadline = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv)
	if err != nil {
		// ConfigurationFailure is the one fatal category (§7): the
		// process cannot start with invalid environment.
		zap.L().Sugar().Fatalf("configuration error: %v", err)
	}

	if err := logging.Initialize(cfg.Development); err != nil {
		panic(err)
	}

	ctx := context.Background()

	if cfg.OTELExporterEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, "bootstrap-signaling", cfg.OTELExporterEndpoint)
		if err != nil {
			logging.Error(ctx, "failed to initialize tracing", zap.Error(err))
		} else {
			defer func() { _ = tp.Shutdown(ctx) }()
		}
	}

	sysClock := clock.System{}
	hub := room.NewHub()
	registry := rendezvous.New(sysClock)
	verifier := auth.NewVerifier(cfg.SignalTokenSHA256)

	limiter, err := ratelimit.New(cfg.RateLimitMessagesPerMinute, cfg.RateLimitConnectionsPerIP)
	if err != nil {
		logging.Fatal(ctx, "failed to construct rate limiter", zap.Error(err))
	}

	sig := signaling.NewHandler(hub, registry, verifier, limiter, sysClock)
	router := httpapi.NewRouter(cfg, hub, registry, verifier, sig)

	prunerCtx, stopPruner := context.WithCancel(ctx)
	go rendezvous.RunPruner(prunerCtx, registry)

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: router,
	}

	logging.Info(ctx, "bootstrap-signaling.started", cfg.LogFields()...)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info(ctx, "shutting down")
	stopPruner()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownDrainDeadline)
	defer cancel()

	// hub.Shutdown closes the live websocket sessions directly: srv.Shutdown
	// only waits on connections the stdlib server still tracks, and gorilla
	// has already hijacked every upgraded /signal connection out from under it.
	hub.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "forced shutdown", zap.Error(err))
	}

	logging.Info(ctx, "shutdown complete")
}
