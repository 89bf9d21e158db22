package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/unicorn-radar/internal/models"
)

func TestBuildSearchBodyDefaults(t *testing.T) {
	body := buildSearchBody(SearchParams{})

	require.Equal(t, 0, body["from"])
	require.Equal(t, 20, body["size"])
	query := body["query"].(map[string]any)["bool"].(map[string]any)
	require.Contains(t, query, "must")
	require.NotContains(t, query, "filter")
	require.Equal(t, []map[string]any{{"valuation_in_billions": map[string]any{"order": "desc"}}}, body["sort"])
}

func TestBuildSearchBodyFilters(t *testing.T) {
	body := buildSearchBody(SearchParams{
		Query:     "stripe",
		Countries: []string{"United States", "Ireland"},
		Industry:  "Fintech",
		Company:   "Stripe",
		From:      -5,
		Size:      10_000,
		Sort:      "company:asc",
	})

	require.Equal(t, 0, body["from"])
	require.Equal(t, 500, body["size"])

	query := body["query"].(map[string]any)["bool"].(map[string]any)
	filters := query["filter"].([]map[string]any)
	require.Len(t, filters, 3)
	require.Equal(t, []string{"United States", "Ireland"}, filters[0]["terms"].(map[string]any)["country"])
	require.Equal(t, "Fintech", filters[1]["term"].(map[string]any)["industry"])
	require.Equal(t, "Stripe", filters[2]["term"].(map[string]any)["company.raw"])
	require.Equal(t, []map[string]any{{"company.raw": map[string]any{"order": "asc"}}}, body["sort"])
}

func TestBuildSearchBodyRelevanceForFreeText(t *testing.T) {
	body := buildSearchBody(SearchParams{Query: "rocket"})
	require.NotContains(t, body, "sort")
}

func TestBuildSearchBodyUnknownSortFallsBack(t *testing.T) {
	body := buildSearchBody(SearchParams{Sort: "ceo:sideways"})
	require.Equal(t, []map[string]any{{"valuation_in_billions": map[string]any{"order": "desc"}}}, body["sort"])
}

type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":1},"hits":[{"_source":{
			"id":"abc","company":"Stripe","country":"United States","industry":"Fintech",
			"city":"San Francisco","valuation_in_billions":95,"date_joined":"2014-01-23T00:00:00Z",
			"founded_year":2010,"fingerprint":"f","loaded_at":"2024-01-01T00:00:00Z"}}]}}`))
	case strings.HasSuffix(r.URL.Path, "/_delete_by_query"):
		_, _ = w.Write([]byte(`{"deleted":3}`))
	case strings.Contains(r.URL.Path, "/_doc/"):
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func newTestClient(t *testing.T) (*Client, *fakeES) {
	t.Helper()
	fake := &fakeES{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "companies", nil)
	require.NoError(t, err)
	return c, fake
}

func TestSearchCompanies(t *testing.T) {
	c, fake := newTestClient(t)

	res, err := c.SearchCompanies(context.Background(), SearchParams{Industry: "Fintech"})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	require.Len(t, res.Items, 1)
	require.Equal(t, "Stripe", res.Items[0].Name)
	require.Equal(t, 2010, res.Items[0].FoundedYear.Year)

	require.Contains(t, fake.requests, "POST /companies/_search")
}

func TestIndexCompany(t *testing.T) {
	c, fake := newTestClient(t)

	doc := models.CompanyDocument{
		Company:     models.Company{ID: "abc", Name: "Stripe", FoundedYear: models.ParseFoundedYear("2010s")},
		Fingerprint: "f",
		LoadedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.IndexCompany(context.Background(), doc))

	require.Contains(t, fake.requests, "PUT /companies/_doc/abc")
	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(fake.bodies[len(fake.bodies)-1]), &sent))
	require.Equal(t, "Stripe", sent["company"])
	require.Equal(t, "2010s", sent["founded_year"])
	require.Equal(t, "f", sent["fingerprint"])
}

func TestDeleteStaleStopsOnShortBatch(t *testing.T) {
	c, fake := newTestClient(t)

	deleted, err := c.DeleteStale(context.Background(), time.Hour, 10)
	require.NoError(t, err)
	require.Equal(t, int64(3), deleted)

	calls := 0
	for _, r := range fake.requests {
		if strings.HasSuffix(r, "/_delete_by_query") {
			calls++
		}
	}
	require.Equal(t, 1, calls)
}
