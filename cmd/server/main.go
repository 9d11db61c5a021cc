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

	"github.com/blackmichael/novelle/internal/config"
	"github.com/blackmichael/novelle/internal/domain"
	"github.com/blackmichael/novelle/internal/events"
	"github.com/blackmichael/novelle/internal/httpserver"
	"github.com/blackmichael/novelle/internal/metrics"
	"github.com/blackmichael/novelle/internal/mongodb"
	"github.com/blackmichael/novelle/internal/sqlstore"
	"github.com/blackmichael/novelle/internal/stream"
	"github.com/blackmichael/novelle/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: "novelle",
		SampleRatio: 1,
	})
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()

	store, err := mongodb.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return fmt.Errorf("connect to mongo: %w", err)
	}
	defer store.Close(context.Background())
	if err := store.EnsureIndexes(connectCtx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info("connected to database", "database", cfg.MongoDatabase)

	seq, closeSeq, err := openSequencer(connectCtx, cfg, store)
	if err != nil {
		return err
	}
	defer closeSeq()
	logger.Info("sequencer ready", "store", cfg.Store)

	m := metrics.New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	seq = m.Sequencer(seq)

	hub := stream.NewHub(cfg.ClientURL, logger)
	defer hub.Close()

	notifiers := []domain.InteractionNotifier{m, hub}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
		logger.Info("publishing interaction events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	var limiter httpserver.RateLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(connectCtx).Err(); err != nil {
			logger.Warn("redis unreachable, rate limiter will fail open", "addr", cfg.RedisAddr, "error", err)
		}
		limiter = httpserver.NewRedisLimiter(rdb, int64(cfg.RateLimitPerMinute), time.Minute)
	}

	feedService, err := domain.NewFeedService(domain.FeedStores{
		Quotes:       store,
		Posts:        store,
		Books:        store,
		Users:        store,
		Interactions: store,
	}, cfg.FeedStageTimeout, logger)
	if err != nil {
		return fmt.Errorf("create feed service: %w", err)
	}
	interactionService := domain.NewInteractionService(store, logger, notifiers...)
	contentService := domain.NewContentService(store, seq, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	server := httpserver.NewServer(cfg, httpserver.Deps{
		Feed:         feedService,
		Interactions: interactionService,
		Content:      contentService,
		Auth:         httpserver.NewAuthenticator(cfg.JWTSecret),
		Stream:       hub,
		Metrics:      m.Handler(),
		Limiter:      limiter,
		Observer:     m,
	}, logger)
	server.WrapHandler(func(h http.Handler) http.Handler {
		return otelhttp.NewHandler(h, "http.server")
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("server started", "port", cfg.Port)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		logger.Error("http server exited with error", "error", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}

// openSequencer returns the configured sequencer and whatever must be closed
// with it.
func openSequencer(ctx context.Context, cfg *config.Config, store *mongodb.Store) (domain.Sequencer, func() error, error) {
	if cfg.Store == config.StoreSQL {
		seq, err := sqlstore.Open(ctx, cfg.SequenceDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sequence store: %w", err)
		}
		return seq, seq.Close, nil
	}
	return store.Sequencer(), func() error { return nil }, nil
}
