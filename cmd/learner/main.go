package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/furrsati/OMM-BOT-sub002/internal/feed"
	"github.com/furrsati/OMM-BOT-sub002/internal/learning"
	"github.com/furrsati/OMM-BOT-sub002/internal/meta"
	"github.com/furrsati/OMM-BOT-sub002/internal/observability"
	"github.com/furrsati/OMM-BOT-sub002/internal/patterns"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage"
	chstore "github.com/furrsati/OMM-BOT-sub002/internal/storage/clickhouse"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage/memory"
	"github.com/furrsati/OMM-BOT-sub002/internal/storage/migrations"
	pgstore "github.com/furrsati/OMM-BOT-sub002/internal/storage/postgres"
	"github.com/furrsati/OMM-BOT-sub002/internal/tuning"
	"github.com/furrsati/OMM-BOT-sub002/internal/weights"
)

func main() {
	_ = godotenv.Load()

	feedEndpoint := flag.String("feed-endpoint", envOr("FEED_ENDPOINT", ""), "Execution engine trade stream WebSocket URL")
	postgresDSN := flag.String("postgres-dsn", envOr("POSTGRES_DSN", ""), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", envOr("CLICKHOUSE_DSN", ""), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	metricsAddr := flag.String("metrics-addr", envOr("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address (empty to disable)")
	logLevel := flag.String("log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.Parse()

	logger := newLogger(*logLevel)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info().Str("addr", *metricsAddr).Msg("Starting metrics server")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Metrics server error")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Initiating graceful shutdown")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("Forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err := run(ctx, logger, *feedEndpoint, *postgresDSN, *clickhouseDSN, *useMemory)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("Learner exited with error")
	}

	logger.Info().Msg("Shutdown complete")
}

// run wires storage, the learning components and the trade feed, then
// blocks until the context is cancelled.
func run(ctx context.Context, logger zerolog.Logger, feedEndpoint, postgresDSN, clickhouseDSN string, useMemory bool) error {
	if feedEndpoint == "" {
		return fmt.Errorf("--feed-endpoint is required")
	}
	if !useMemory && postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if !useMemory && clickhouseDSN == "" {
		return fmt.Errorf("--clickhouse-dsn is required (use --use-memory for in-memory storage)")
	}

	var (
		tradeStore      storage.TradeStore          = memory.NewTradeStore()
		snapshotStore   storage.SnapshotStore       = memory.NewSnapshotStore()
		adjustmentStore storage.AdjustmentStore     = memory.NewAdjustmentStore()
		cycleStore      storage.CycleStore          = memory.NewCycleStore()
		metaStore       storage.MetaStore           = memory.NewMetaStore()
		patternStore    storage.PatternStore        = memory.NewPatternStore()
		frozenStore     storage.FrozenStore         = memory.NewFrozenStore()
		metricStore     storage.LearningMetricStore = memory.NewLearningMetricStore()
	)

	if !useMemory {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}

		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		defer conn.Close()

		tradeStore = pgstore.NewTradeStore(pool)
		snapshotStore = pgstore.NewSnapshotStore(pool)
		adjustmentStore = pgstore.NewAdjustmentStore(pool)
		cycleStore = pgstore.NewCycleStore(pool)
		metaStore = pgstore.NewMetaStore(pool)
		patternStore = pgstore.NewPatternStore(pool)
		frozenStore = pgstore.NewFrozenStore(pool)
		metricStore = chstore.NewLearningMetricStore(conn)
	}

	matcher := patterns.NewMatcher(tradeStore, patternStore, logger)
	optimizer := weights.NewOptimizer(tradeStore, snapshotStore, adjustmentStore, frozenStore, metaStore, logger)
	tuner := tuning.NewTuner(tradeStore, snapshotStore, adjustmentStore, frozenStore, metaStore, logger)
	learner := meta.NewLearner(tradeStore, snapshotStore, adjustmentStore, metaStore, logger)

	scheduler := learning.NewScheduler(
		tradeStore, cycleStore, snapshotStore, metricStore,
		matcher, optimizer, tuner, learner, logger,
	)

	if err := scheduler.StartTimer(ctx); err != nil {
		return fmt.Errorf("start milestone timer: %w", err)
	}
	defer scheduler.StopTimer()

	client, err := feed.NewClient(ctx, feed.DefaultConfig(feedEndpoint), scheduler.OnTradeCompleted, logger)
	if err != nil {
		return fmt.Errorf("connect to trade feed: %w", err)
	}
	defer client.Close()

	logger.Info().Str("feed", feedEndpoint).Msg("Learner running")

	<-ctx.Done()
	return ctx.Err()
}

// newLogger builds the root logger for the process.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

// envOr reads an environment variable with a fallback default.
func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
