package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/unicorn-radar/internal/logger"
	"github.com/DeafMist/unicorn-radar/internal/metrics"
	"github.com/DeafMist/unicorn-radar/internal/models"
)

type recordingWriter struct {
	mu      sync.Mutex
	batches [][]kafka.Message
	err     error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, msgs)
	return nil
}

func companies(n int) []models.Company {
	out := make([]models.Company, n)
	for i := range out {
		out[i] = models.Company{
			ID:        fmt.Sprintf("id-%d", i),
			Name:      fmt.Sprintf("Company %d", i),
			Country:   "Sweden",
			Valuation: float64(i + 1),
		}
	}
	return out
}

func TestChunk(t *testing.T) {
	require.Len(t, chunk(companies(10), 3), 4)
	require.Len(t, chunk(companies(10), 3)[3], 1)
	require.Len(t, chunk(companies(4), 0), 1)
	require.Empty(t, chunk(nil, 5))
}

func TestBuildMessages(t *testing.T) {
	msgs, err := buildMessages("run-7", companies(2))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "id-1", string(msgs[1].Key))
	require.Equal(t, loadIDHeader, msgs[1].Headers[0].Key)
	require.Equal(t, "run-7", string(msgs[1].Headers[0].Value))

	var c models.Company
	require.NoError(t, json.Unmarshal(msgs[1].Value, &c))
	require.Equal(t, "Company 1", c.Name)
	require.Equal(t, 2.0, c.Valuation)
}

func TestPublishBatches(t *testing.T) {
	w := &recordingWriter{}
	reg := metrics.New("loader-test")
	p := &publisher{log: logger.Discard(), writer: w, metrics: reg, batchSize: 4, parallelism: 2}

	n, err := p.publish(context.Background(), "run-1", companies(10))
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.Len(t, w.batches, 3)
	require.Equal(t, 10.0, testutil.ToFloat64(reg.Published.WithLabelValues("ok")))
}

func TestPublishStopsOnWriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("no leader")}
	reg := metrics.New("loader-test")
	p := &publisher{log: logger.Discard(), writer: w, metrics: reg, batchSize: 5, parallelism: 1}

	n, err := p.publish(context.Background(), "run-1", companies(10))
	require.ErrorContains(t, err, "no leader")
	require.Zero(t, n)
	require.Positive(t, testutil.ToFloat64(reg.Published.WithLabelValues("error")))
}
