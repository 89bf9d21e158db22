package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "unicorn_radar"

// Registry bundles the collectors a binary reports on its own registry.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	DatasetRows  prometheus.Gauge
	DatasetLoads *prometheus.CounterVec
	Published    *prometheus.CounterVec
	Indexed      *prometheus.CounterVec
	PrunedDocs   prometheus.Counter
}

// New registers the collectors under service.
func New(service string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	constLabels := prometheus.Labels{"service": service}
	r := &Registry{
		reg: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "HTTP requests by route and status code.",
			ConstLabels: constLabels,
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency by route.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"route", "method"}),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "dataset_companies",
			Help:        "Companies in the currently served dataset.",
			ConstLabels: constLabels,
		}),
		DatasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "dataset_loads_total",
			Help:        "Dataset load attempts by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "companies_published_total",
			Help:        "Company rows published to Kafka by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		Indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "companies_indexed_total",
			Help:        "Company rows handled by the worker by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		PrunedDocs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "documents_pruned_total",
			Help:        "Stale company documents removed from the index.",
			ConstLabels: constLabels,
		}),
	}

	reg.MustRegister(
		r.HTTPRequests,
		r.HTTPDuration,
		r.DatasetRows,
		r.DatasetLoads,
		r.Published,
		r.Indexed,
		r.PrunedDocs,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Middleware records request count and latency per chi route pattern.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		r.HTTPRequests.WithLabelValues(route, req.Method, strconv.Itoa(status)).Inc()
		r.HTTPDuration.WithLabelValues(route, req.Method).Observe(time.Since(start).Seconds())
	})
}

// Serve exposes the registry on addr until ctx is done. An empty addr
// disables the listener.
func (r *Registry) Serve(ctx context.Context, addr string, log *slog.Logger) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics listener stopped", slog.Any("err", err), slog.String("addr", addr))
		}
	}()
}
