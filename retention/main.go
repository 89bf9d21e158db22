package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DeafMist/unicorn-radar/internal/config"
	"github.com/DeafMist/unicorn-radar/internal/elasticsearch"
	"github.com/DeafMist/unicorn-radar/internal/logger"
	"github.com/DeafMist/unicorn-radar/internal/metrics"
)

const maxConnectAttempts = 10

var errNotConnected = errors.New("elasticsearch unreachable after retries")

type pruner interface {
	DeleteStale(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	_ = godotenv.Load()

	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	if err := waitForCluster(ctx, log, esClient, 2*time.Second); err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown signal received during startup")
			return
		}
		log.Error("connect elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("connected to elasticsearch", slog.String("index", cfg.ElasticsearchIndex))

	reg := metrics.New("retention")
	reg.Serve(ctx, cfg.MetricsAddr, log)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info("retention job running",
		slog.Duration("interval", cfg.Interval),
		slog.Duration("max_age", cfg.MaxAge),
	)

	runOnce(ctx, log, esClient, reg, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(ctx, log, esClient, reg, cfg)
		}
	}
}

// waitForCluster pings until the cluster answers, doubling the delay up to
// 30s between attempts.
func waitForCluster(ctx context.Context, log *slog.Logger, c pinger, delay time.Duration) error {
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := c.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}

		log.Warn("elasticsearch ping failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxConnectAttempts),
			slog.Duration("retry_in", delay),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, 30*time.Second)
	}
	return errNotConnected
}

// runOnce removes companies no load has refreshed within MaxAge. Failures are
// logged and retried on the next tick.
func runOnce(ctx context.Context, log *slog.Logger, p pruner, reg *metrics.Registry, cfg *config.Retention) int64 {
	subCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	deleted, err := p.DeleteStale(subCtx, cfg.MaxAge, cfg.BatchSize)
	reg.PrunedDocs.Add(float64(deleted))
	if err != nil {
		log.Warn("retention run failed", slog.Any("err", err), slog.Int64("deleted", deleted))
		return deleted
	}

	if deleted > 0 {
		log.Info("retention run completed", slog.Int64("deleted", deleted))
	} else {
		log.Debug("retention run completed, no stale companies found")
	}
	return deleted
}
