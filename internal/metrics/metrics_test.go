package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/unicorn-radar/internal/metrics"
)

func TestMiddlewareCountsRoutePattern(t *testing.T) {
	reg := metrics.New("test")

	r := chi.NewRouter()
	r.Use(reg.Middleware)
	r.Get("/api/charts/{kind}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for range 3 {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/charts/country", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	got := testutil.ToFloat64(reg.HTTPRequests.WithLabelValues("/api/charts/{kind}", http.MethodGet, "418"))
	require.Equal(t, 3.0, got)
}

func TestHandlerExposesCollectors(t *testing.T) {
	reg := metrics.New("test")
	reg.DatasetRows.Set(42)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `unicorn_radar_dataset_companies{service="test"} 42`), body)
}
