package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/unicorn-radar/internal/config"
	"github.com/DeafMist/unicorn-radar/internal/dedupe"
	"github.com/DeafMist/unicorn-radar/internal/elasticsearch"
	"github.com/DeafMist/unicorn-radar/internal/logger"
	"github.com/DeafMist/unicorn-radar/internal/metrics"
	"github.com/DeafMist/unicorn-radar/internal/models"
	"github.com/DeafMist/unicorn-radar/internal/normalize"
)

// Results reported on the indexed counter.
const (
	resultIndexed   = "indexed"
	resultUnchanged = "unchanged"
	resultFailed    = "failed"
)

// loadIDHeader is stamped by the loader on every message of one run.
const loadIDHeader = "load_id"

var errInvalidCompany = errors.New("invalid company")

type companyIndexer interface {
	IndexCompany(ctx context.Context, doc models.CompanyDocument) error
}

type companyRow struct {
	Name      string  `validate:"required,max=256"`
	Country   string  `validate:"required,max=128"`
	Industry  string  `validate:"max=128"`
	Valuation float64 `validate:"gte=0"`
}

type processor struct {
	log      *slog.Logger
	index    companyIndexer
	cache    *dedupe.Cache
	metrics  *metrics.Registry
	validate *validator.Validate
	now      func() time.Time
}

func main() {
	_ = godotenv.Load()

	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = esClient.EnsureIndex(initCtx)
	cancel()
	if err != nil {
		log.Error("ensure index", slog.Any("err", err), slog.String("index", cfg.ElasticsearchIndex))
		os.Exit(1)
	}

	reg := metrics.New("worker")
	reg.Serve(ctx, cfg.MetricsAddr, log)

	p := newProcessor(log, esClient, dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL), reg)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.DLQTopic(),
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.DLQTopic()),
		slog.String("index", cfg.ElasticsearchIndex),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := p.process(ctx, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			if !sendToDLQ(ctx, log, dlqWriter, dlqMessage(msg, err, time.Now())) {
				if ctx.Err() != nil {
					return
				}
				// not committed: the row is retried after a restart
				log.Error("DLQ write exhausted retries",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

func newProcessor(log *slog.Logger, index companyIndexer, cache *dedupe.Cache, reg *metrics.Registry) *processor {
	return &processor{
		log:      log,
		index:    index,
		cache:    cache,
		metrics:  reg,
		validate: validator.New(),
		now:      time.Now,
	}
}

// process normalizes one published row and writes it to the index unless
// the same company was already written with identical attributes.
func (p *processor) process(ctx context.Context, msg kafka.Message) error {
	var company models.Company
	if err := json.Unmarshal(msg.Value, &company); err != nil {
		p.metrics.Indexed.WithLabelValues(resultFailed).Inc()
		return fmt.Errorf("decode company: %w", err)
	}

	company = normalize.Company(company)
	if err := p.validate.Struct(companyRow{
		Name:      company.Name,
		Country:   company.Country,
		Industry:  company.Industry,
		Valuation: company.Valuation,
	}); err != nil {
		p.metrics.Indexed.WithLabelValues(resultFailed).Inc()
		return fmt.Errorf("%w: %w", errInvalidCompany, err)
	}

	fp := normalize.Fingerprint(company)
	if p.cache.Unchanged(company.ID, fp) {
		p.metrics.Indexed.WithLabelValues(resultUnchanged).Inc()
		p.log.Debug("company unchanged", slog.String("id", company.ID))
		return nil
	}

	doc := models.CompanyDocument{
		Company:     company,
		Fingerprint: fp,
		LoadedAt:    p.now().UTC(),
	}
	if err := p.index.IndexCompany(ctx, doc); err != nil {
		p.metrics.Indexed.WithLabelValues(resultFailed).Inc()
		return err
	}

	p.cache.Remember(company.ID, fp)
	p.metrics.Indexed.WithLabelValues(resultIndexed).Inc()
	p.log.Debug("indexed company",
		slog.String("id", company.ID),
		slog.String("company", company.Name),
		slog.String("load_id", header(msg, loadIDHeader)),
	)
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func dlqMessage(msg kafka.Message, cause error, at time.Time) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "timestamp", Value: []byte(at.UTC().Format(time.RFC3339))},
	)
	return kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// sendToDLQ retries with exponential backoff and reports whether the
// message was parked.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message) bool {
	for attempt := range 5 {
		err := w.WriteMessages(ctx, msg)
		if err == nil {
			log.Info("message sent to DLQ", slog.Int("attempt", attempt+1))
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}
	return false
}
