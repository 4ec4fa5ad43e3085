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

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/teamtab/internal/auth"
	"github.com/mmynk/teamtab/internal/cache"
	"github.com/mmynk/teamtab/internal/config"
	"github.com/mmynk/teamtab/internal/metrics"
	"github.com/mmynk/teamtab/internal/notify"
	"github.com/mmynk/teamtab/internal/notify/kafka"
	"github.com/mmynk/teamtab/internal/storage"
	"github.com/mmynk/teamtab/internal/storage/memory"
	"github.com/mmynk/teamtab/internal/storage/postgres"
	"github.com/mmynk/teamtab/internal/storage/sqlite"
	"github.com/mmynk/teamtab/pkg/logging"
)

const (
	shutdownTimeout = 10 * time.Second
	tokenDuration   = 24 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	m := metrics.New()
	hub := notify.NewHub()
	events := notify.Multi{hub}

	if cfg.KafkaEnabled() {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.InstanceID)
		defer publisher.Close()
		events = append(events, publisher)

		listener := kafka.NewListener(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup, cfg.InstanceID, hub)
		defer listener.Close()
		go func() {
			if err := listener.Run(ctx); err != nil {
				slog.Error("Kafka listener stopped", "error", err)
			}
		}()
		slog.Info("Kafka fan-out enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic, "instance_id", cfg.InstanceID)
	}

	var balanceCache cache.BalanceCache = cache.Nop{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		rc := cache.NewRedis(client, cfg.BalanceCacheTTL)
		if err := rc.Ping(ctx); err != nil {
			slog.Warn("Redis unreachable, balances will be computed on every read", "addr", cfg.RedisAddr, "error", err)
		}
		balanceCache = rc
		slog.Info("Balance cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.BalanceCacheTTL)
	}

	var jwtManager *auth.JWTManager
	if cfg.AuthEnabled() {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, tokenDuration)
	} else {
		slog.Warn("TEAMTAB_JWT_SECRET is not set, authentication is disabled")
	}

	handler := newHandler(serverDeps{
		store:   store,
		hub:     hub,
		events:  events,
		cache:   balanceCache,
		metrics: m,
		jwt:     jwtManager,
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect streaming)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", cfg.Addr, "store", cfg.Store)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "backend", "postgres")
		return store, nil
	case config.StoreMemory:
		slog.Warn("Using in-memory storage, data is lost on restart")
		return memory.New(), nil
	default:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "backend", "sqlite", "database", cfg.DBPath)
		return store, nil
	}
}
