package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/DeafMist/unicorn-radar/internal/analytics"
	"github.com/DeafMist/unicorn-radar/internal/charts"
	"github.com/DeafMist/unicorn-radar/internal/config"
	"github.com/DeafMist/unicorn-radar/internal/dataset"
	"github.com/DeafMist/unicorn-radar/internal/elasticsearch"
	"github.com/DeafMist/unicorn-radar/internal/export"
	"github.com/DeafMist/unicorn-radar/internal/metrics"
	"github.com/DeafMist/unicorn-radar/internal/models"
)

type companySearcher interface {
	SearchCompanies(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
	Health(ctx context.Context) error
}

type server struct {
	log      *slog.Logger
	cfg      *config.API
	snap     *dataset.Snapshot
	search   companySearcher
	metrics  *metrics.Registry
	validate *validator.Validate
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Companies int       `json:"companies"`
	LoadedAt  time.Time `json:"loaded_at"`
	Search    string    `json:"search"`
}

type tableRequest struct {
	From int    `validate:"gte=0,lte=1000000"`
	Size int    `validate:"gte=1"`
	Sort string `validate:"max=64"`
}

type aggregateResponse struct {
	Dimension analytics.Dimension `json:"dimension"`
	Metric    analytics.Metric    `json:"metric"`
	Groups    []analytics.Group   `json:"groups"`
}

func newServer(log *slog.Logger, cfg *config.API, snap *dataset.Snapshot, search companySearcher, reg *metrics.Registry) *server {
	return &server{
		log:      log,
		cfg:      cfg,
		snap:     snap,
		search:   search,
		metrics:  reg,
		validate: validator.New(),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/options", s.handleOptions)
		r.Get("/summary", s.handleSummary)
		r.Get("/aggregate", s.handleAggregate)
		r.Get("/charts/country", s.handleCountryChart)
		r.Get("/charts/industry", s.handleIndustryChart)
		r.Get("/charts/count", s.handleCountChart)
		r.Get("/companies", s.handleCompanies)
		r.Get("/companies/export", s.handleExport)
		r.Get("/companies/search", s.handleSearch)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ds := s.snap.Current()
	resp := healthResponse{Status: "ok", Companies: ds.Len(), Search: "disabled"}
	if ds != nil {
		resp.LoadedAt = ds.LoadedAt
	}

	if s.search != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.search.Health(ctx); err != nil {
			s.writeError(w, r, http.StatusServiceUnavailable, err)
			return
		}
		resp.Search = "ok"
	}

	render.JSON(w, r, resp)
}

func (s *server) handleOptions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, analytics.BuildOptions(s.snap.Current().Companies))
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	companies, ok := s.selected(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, analytics.Summarize(companies))
}

func (s *server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	companies, ok := s.selected(w, r)
	if !ok {
		return
	}

	dim, err := analytics.ParseDimension(r.URL.Query().Get("by"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	metric, err := analytics.ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	groups, err := analytics.GroupBy(companies, dim, metric)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	render.JSON(w, r, aggregateResponse{Dimension: dim, Metric: metric, Groups: groups})
}

func (s *server) handleCountryChart(w http.ResponseWriter, r *http.Request) {
	s.renderChart(w, r, analytics.ByCountry, analytics.Sum, charts.CountryValuation)
}

func (s *server) handleIndustryChart(w http.ResponseWriter, r *http.Request) {
	s.renderChart(w, r, analytics.ByIndustry, analytics.Sum, charts.IndustryValuation)
}

func (s *server) handleCountChart(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	if by == "" {
		by = string(analytics.ByCountry)
	}
	dim, err := analytics.ParseDimension(by)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	s.renderChart(w, r, dim, analytics.Count, func(groups []analytics.Group) charts.Figure {
		return charts.CompanyCount(groups, dim)
	})
}

func (s *server) renderChart(w http.ResponseWriter, r *http.Request, dim analytics.Dimension, metric analytics.Metric, build func([]analytics.Group) charts.Figure) {
	companies, ok := s.selected(w, r)
	if !ok {
		return
	}

	groups, err := analytics.GroupBy(companies, dim, metric)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	render.JSON(w, r, build(groups))
}

func (s *server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	companies, ok := s.selected(w, r)
	if !ok {
		return
	}
	q, ok := s.tableQuery(w, r)
	if !ok {
		return
	}

	render.JSON(w, r, analytics.Table(companies, q))
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	companies, ok := s.selected(w, r)
	if !ok {
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	spec, err := analytics.ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="unicorns.%s"`, format))
	if err := export.Write(w, format, analytics.SortCompanies(companies, spec)); err != nil {
		// headers are already out; all we can do is log
		s.log.Error("export failed", slog.Any("err", err), slog.String("format", string(format)))
	}
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, errors.New("search backend disabled"))
		return
	}

	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	q, ok := s.tableQuery(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := s.search.SearchCompanies(ctx, elasticsearch.SearchParams{
		Query:     strings.TrimSpace(r.URL.Query().Get("q")),
		Countries: sel.Countries,
		Industry:  sel.Industry,
		Company:   sel.Company,
		From:      q.From,
		Size:      q.Size,
		Sort:      strings.TrimSpace(r.URL.Query().Get("sort")),
	})
	if err != nil {
		s.writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("search backend: %w", err))
		return
	}

	render.JSON(w, r, result)
}

// selected applies the request's selection to the current dataset.
func (s *server) selected(w http.ResponseWriter, r *http.Request) ([]models.Company, bool) {
	sel, ok := s.selection(w, r)
	if !ok {
		return nil, false
	}
	return analytics.Filter(s.snap.Current().Companies, sel), true
}

func (s *server) selection(w http.ResponseWriter, r *http.Request) (analytics.Selection, bool) {
	q := r.URL.Query()
	sel := analytics.Selection{
		Countries: q["country"],
		Industry:  q.Get("industry"),
		Company:   q.Get("company"),
	}
	if err := s.validate.Struct(sel); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid selection: %w", err))
		return analytics.Selection{}, false
	}
	return sel.Normalize(), true
}

func (s *server) tableQuery(w http.ResponseWriter, r *http.Request) (analytics.TableQuery, bool) {
	q := r.URL.Query()
	req := tableRequest{
		From: parseInt(q.Get("from"), 0),
		Size: min(parseInt(q.Get("size"), s.cfg.DefaultPage), s.cfg.MaxPage),
		Sort: strings.TrimSpace(q.Get("sort")),
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid table query: %w", err))
		return analytics.TableQuery{}, false
	}

	spec, err := analytics.ParseSort(req.Sort)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return analytics.TableQuery{}, false
	}

	return analytics.TableQuery{Sort: spec, From: req.From, Size: req.Size}, true
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("err", err),
		)
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error(), RequestID: middleware.GetReqID(r.Context())})
}

// parseInt returns fallback for an absent value and -1 for one that is not an
// integer, so validation rejects it.
func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return value
}

