package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string `envconfig:"ELASTICSEARCH_ADDR" default:"http://elasticsearch:9200"`
	ElasticsearchIndex string `envconfig:"ELASTICSEARCH_INDEX" default:"companies"`
}

// Kafka names the brokers and the topic carrying raw company rows.
type Kafka struct {
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"kafka:9092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"companies_raw"`
}

// DLQTopic is where the worker parks rows it could not index.
func (k Kafka) DLQTopic() string {
	return k.KafkaTopic + "_dlq"
}

// Telemetry configures the standalone metrics listener of background binaries.
type Telemetry struct {
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9100"`
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	DatasetPath    string        `envconfig:"DATASET_PATH" default:"data/unicorn.csv"`
	BindAddr       string        `envconfig:"API_BIND_ADDR" default:"0.0.0.0:8080"`
	DefaultPage    int           `envconfig:"API_PAGE_SIZE" default:"20"`
	MaxPage        int           `envconfig:"API_MAX_PAGE_SIZE" default:"500"`
	ReloadInterval time.Duration `envconfig:"API_RELOAD_INTERVAL" default:"1m"`
	SearchEnabled  bool          `envconfig:"API_SEARCH_ENABLED" default:"false"`
}

// Loader configures the dataset -> Kafka publisher.
type Loader struct {
	Kafka
	Telemetry
	DatasetPath string `envconfig:"DATASET_PATH" default:"data/unicorn.csv"`
	BatchSize   int    `envconfig:"LOADER_BATCH_SIZE" default:"100"`
	Parallelism int    `envconfig:"LOADER_PARALLELISM" default:"4"`
}

// Worker holds configuration for the Kafka -> Elasticsearch worker.
//
// DedupeTTL must stay below Retention.MaxAge: an unchanged company is not
// rewritten while its fingerprint is cached, so its loaded_at stops moving and
// retention would prune it once loaded_at is older than MaxAge.
type Worker struct {
	Common
	Kafka
	Telemetry
	KafkaConsumer  string        `envconfig:"KAFKA_CONSUMER_GROUP" default:"companies-worker"`
	DedupeCapacity int           `envconfig:"WORKER_DEDUPE_CAPACITY" default:"20000"`
	DedupeTTL      time.Duration `envconfig:"WORKER_DEDUPE_TTL" default:"24h"`
	BatchSize      int           `envconfig:"WORKER_BATCH_SIZE" default:"10"`
}

// Retention configures the stale-document cleanup loop. MaxAge must exceed
// the worker's DedupeTTL, see Worker.
type Retention struct {
	Common
	Telemetry
	Interval  time.Duration `envconfig:"RETENTION_CRON" default:"24h"`
	MaxAge    time.Duration `envconfig:"RETENTION_MAX_AGE" default:"168h"`
	BatchSize int           `envconfig:"RETENTION_BATCH_SIZE" default:"500"`
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{}
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if strings.TrimSpace(c.DatasetPath) == "" {
		return nil, fmt.Errorf("DATASET_PATH must be set")
	}
	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	if c.ReloadInterval < 0 {
		return nil, fmt.Errorf("API_RELOAD_INTERVAL cannot be negative")
	}

	return c, nil
}

// LoadLoader builds a Loader config from environment variables.
func LoadLoader() (*Loader, error) {
	c := &Loader{}
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := c.Kafka.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.DatasetPath) == "" {
		return nil, fmt.Errorf("DATASET_PATH must be set")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("LOADER_BATCH_SIZE must be positive")
	}
	if c.Parallelism <= 0 {
		return nil, fmt.Errorf("LOADER_PARALLELISM must be positive")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{}
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := c.Kafka.validate(); err != nil {
		return nil, err
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.DedupeTTL <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_TTL must be positive")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{}
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func (k *Kafka) validate() error {
	k.KafkaBrokers = trimAll(k.KafkaBrokers)
	if len(k.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if strings.TrimSpace(k.KafkaTopic) == "" {
		return fmt.Errorf("KAFKA_TOPIC must be set")
	}
	return nil
}

func trimAll(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
