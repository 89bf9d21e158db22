package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/DeafMist/unicorn-radar/internal/config"
	"github.com/DeafMist/unicorn-radar/internal/dataset"
	"github.com/DeafMist/unicorn-radar/internal/logger"
	"github.com/DeafMist/unicorn-radar/internal/metrics"
	"github.com/DeafMist/unicorn-radar/internal/models"
)

const loadIDHeader = "load_id"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type publisher struct {
	log         *slog.Logger
	writer      messageWriter
	metrics     *metrics.Registry
	batchSize   int
	parallelism int
}

func main() {
	_ = godotenv.Load()

	log := logger.New("loader")
	cfg, err := config.LoadLoader()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reg := metrics.New("loader")
	reg.Serve(ctx, cfg.MetricsAddr, log)

	ds, err := dataset.LoadFile(ctx, cfg.DatasetPath, log)
	if err != nil {
		reg.DatasetLoads.WithLabelValues("error").Inc()
		log.Error("load dataset", slog.Any("err", err), slog.String("path", cfg.DatasetPath))
		os.Exit(1)
	}
	reg.DatasetLoads.WithLabelValues("ok").Inc()
	reg.DatasetRows.Set(float64(ds.Len()))

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  5,
		BatchTimeout: 50 * time.Millisecond,
	}
	defer writer.Close()

	p := &publisher{
		log:         log,
		writer:      writer,
		metrics:     reg,
		batchSize:   cfg.BatchSize,
		parallelism: cfg.Parallelism,
	}

	loadID := uuid.NewString()
	start := time.Now()
	published, err := p.publish(ctx, loadID, ds.Companies)
	if err != nil {
		log.Error("publish dataset",
			slog.Any("err", err),
			slog.String("load_id", loadID),
			slog.Int("published", published),
		)
		os.Exit(1)
	}

	log.Info("dataset published",
		slog.String("load_id", loadID),
		slog.String("topic", cfg.KafkaTopic),
		slog.Int("published", published),
		slog.Int("skipped", ds.Skipped),
		slog.Duration("took", time.Since(start)),
	)
}

// publish sends companies in batches with bounded parallelism and returns
// how many rows were acknowledged. The first failing batch cancels the rest.
func (p *publisher) publish(ctx context.Context, loadID string, companies []models.Company) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)

	var published atomic.Int64
	for _, batch := range chunk(companies, p.batchSize) {
		g.Go(func() error {
			msgs, err := buildMessages(loadID, batch)
			if err != nil {
				return err
			}
			if err := p.writer.WriteMessages(gctx, msgs...); err != nil {
				p.metrics.Published.WithLabelValues("error").Add(float64(len(msgs)))
				return fmt.Errorf("write batch of %d: %w", len(msgs), err)
			}
			p.metrics.Published.WithLabelValues("ok").Add(float64(len(msgs)))
			published.Add(int64(len(msgs)))
			p.log.Debug("batch published", slog.Int("size", len(msgs)))
			return nil
		})
	}

	err := g.Wait()
	return int(published.Load()), err
}

func buildMessages(loadID string, companies []models.Company) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(companies))
	for _, c := range companies {
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal company %q: %w", c.Name, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(c.ID),
			Value:   data,
			Headers: []kafka.Header{{Key: loadIDHeader, Value: []byte(loadID)}},
		})
	}
	return msgs, nil
}

func chunk(companies []models.Company, size int) [][]models.Company {
	if size <= 0 {
		size = len(companies)
	}
	var out [][]models.Company
	for start := 0; start < len(companies); start += size {
		end := min(start+size, len(companies))
		out = append(out, companies[start:end])
	}
	return out
}
