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

	"github.com/joho/godotenv"

	"github.com/DeafMist/unicorn-radar/internal/config"
	"github.com/DeafMist/unicorn-radar/internal/dataset"
	"github.com/DeafMist/unicorn-radar/internal/elasticsearch"
	"github.com/DeafMist/unicorn-radar/internal/logger"
	"github.com/DeafMist/unicorn-radar/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reg := metrics.New("api")

	snap, err := dataset.NewSnapshot(ctx, cfg.DatasetPath, log)
	if err != nil {
		reg.DatasetLoads.WithLabelValues("error").Inc()
		log.Error("load dataset", slog.Any("err", err), slog.String("path", cfg.DatasetPath))
		os.Exit(1)
	}
	reg.DatasetLoads.WithLabelValues("ok").Inc()
	reg.DatasetRows.Set(float64(snap.Current().Len()))

	var search companySearcher
	if cfg.SearchEnabled {
		esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			log.Error("init elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
		search = esClient
	}

	go snap.Watch(ctx, cfg.ReloadInterval, func(ds *dataset.Dataset) {
		reg.DatasetLoads.WithLabelValues("ok").Inc()
		reg.DatasetRows.Set(float64(ds.Len()))
		log.Info("dataset reloaded", slog.Int("companies", ds.Len()), slog.Int("skipped", ds.Skipped))
	}, func(error) {
		reg.DatasetLoads.WithLabelValues("error").Inc()
	})

	srv := newServer(log, cfg, snap, search, reg)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.Int("companies", snap.Current().Len()),
			slog.Bool("search", cfg.SearchEnabled),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
