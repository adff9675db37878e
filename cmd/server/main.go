package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sachinkaru123/inventory-bridge/internal/bridge"
	"github.com/sachinkaru123/inventory-bridge/internal/events"
	"github.com/sachinkaru123/inventory-bridge/internal/platform/config"
	"github.com/sachinkaru123/inventory-bridge/internal/platform/logging"
	"github.com/sachinkaru123/inventory-bridge/internal/platform/retry"
	"github.com/sachinkaru123/inventory-bridge/internal/redis"
	"github.com/sachinkaru123/inventory-bridge/internal/server"
	"github.com/sachinkaru123/inventory-bridge/internal/version"
)

var redisConnectPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 500 * time.Millisecond,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Redis connect failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	// Connect errors at boot are all transient from our point of view:
	// either Redis comes up within the backoff window or we exit.
	client, err := retry.Do(ctx, redisConnectPolicy,
		func(error) retry.Action { return retry.Retry },
		func() (*redis.Client, error) { return redis.NewClient(ctx, cfg.RedisURL) },
	)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, listener *redis.Listener, b *bridge.Bridge) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		listener.Close()
		b.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	b := bridge.NewBridge(clock, cfg.MaxClients)

	classifier := events.NewClassifier(clock)
	listener := redis.NewListener(redisClient, classifier, b)
	listener.Start(context.Background())

	srv := server.NewServer(cfg, b, redisClient)

	done := runGracefulShutdown(srv, listener, b)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
