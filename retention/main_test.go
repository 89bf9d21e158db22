package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/unicorn-radar/internal/config"
	"github.com/DeafMist/unicorn-radar/internal/logger"
	"github.com/DeafMist/unicorn-radar/internal/metrics"
)

type stubPruner struct {
	deleted   int64
	err       error
	maxAge    time.Duration
	batchSize int
}

func (s *stubPruner) DeleteStale(_ context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	s.maxAge = maxAge
	s.batchSize = batchSize
	return s.deleted, s.err
}

type stubPinger struct {
	failures int
	calls    int
}

func (s *stubPinger) Ping(context.Context) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestRunOnceCountsPrunedDocuments(t *testing.T) {
	reg := metrics.New("retention-test")
	cfg := &config.Retention{MaxAge: 48 * time.Hour, BatchSize: 250}
	p := &stubPruner{deleted: 7}

	require.Equal(t, int64(7), runOnce(context.Background(), logger.Discard(), p, reg, cfg))
	require.Equal(t, 48*time.Hour, p.maxAge)
	require.Equal(t, 250, p.batchSize)
	require.Equal(t, 7.0, testutil.ToFloat64(reg.PrunedDocs))
}

func TestRunOnceKeepsPartialProgressOnError(t *testing.T) {
	reg := metrics.New("retention-test")
	cfg := &config.Retention{MaxAge: time.Hour, BatchSize: 10}
	p := &stubPruner{deleted: 10, err: errors.New("timeout")}

	require.Equal(t, int64(10), runOnce(context.Background(), logger.Discard(), p, reg, cfg))
	require.Equal(t, 10.0, testutil.ToFloat64(reg.PrunedDocs))
}

func TestWaitForClusterRetries(t *testing.T) {
	p := &stubPinger{failures: 2}
	require.NoError(t, waitForCluster(context.Background(), logger.Discard(), p, time.Millisecond))
	require.Equal(t, 3, p.calls)
}

func TestWaitForClusterGivesUp(t *testing.T) {
	p := &stubPinger{failures: maxConnectAttempts}
	err := waitForCluster(context.Background(), logger.Discard(), p, time.Millisecond)
	require.ErrorIs(t, err, errNotConnected)
	require.Equal(t, maxConnectAttempts, p.calls)
}

func TestWaitForClusterStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &stubPinger{failures: 100}
	err := waitForCluster(ctx, logger.Discard(), p, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, p.calls)
}
