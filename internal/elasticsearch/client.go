package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/unicorn-radar/internal/models"
)

// Client wraps go-elasticsearch with helpers tailored to this project.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// SearchParams narrow the company search endpoint query.
type SearchParams struct {
	Query     string
	Countries []string
	Industry  string
	Company   string
	From      int
	Size      int
	Sort      string
}

// SearchResult bundles hits and total count.
type SearchResult struct {
	Total int64            `json:"total"`
	Items []models.Company `json:"items"`
}

// Table columns map onto sortable index fields.
var sortFields = map[string]string{
	"company":               "company.raw",
	"country":               "country",
	"industry":              "industry",
	"city":                  "city",
	"valuation_in_billions": "valuation_in_billions",
	"date_joined":           "date_joined",
	"founded_year":          "founded_year",
}

var indexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"id": map[string]any{"type": "keyword"},
			"company": map[string]any{
				"type":   "text",
				"fields": map[string]any{"raw": map[string]any{"type": "keyword"}},
			},
			"country":               map[string]any{"type": "keyword"},
			"industry":              map[string]any{"type": "keyword"},
			"city":                  map[string]any{"type": "keyword"},
			"valuation_in_billions": map[string]any{"type": "double"},
			"date_joined":           map[string]any{"type": "date"},
			"founded_year":          map[string]any{"type": "keyword"},
			"fingerprint":           map[string]any{"type": "keyword"},
			"loaded_at":             map[string]any{"type": "date"},
		},
	},
}

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// EnsureIndex creates the company index with its mapping when missing.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	payload, err := json.Marshal(indexMapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// another worker may have won the race
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}

	c.log.Info("created index", slog.String("index", c.index))
	return nil
}

// IndexCompany writes a document into Elasticsearch.
func (c *Client) IndexCompany(ctx context.Context, doc models.CompanyDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

// SearchCompanies executes a bool query with optional filters.
func (c *Client) SearchCompanies(ctx context.Context, params SearchParams) (*SearchResult, error) {
	payload, err := json.Marshal(buildSearchBody(params))
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	return decodeSearch(res.Body)
}

func buildSearchBody(params SearchParams) map[string]any {
	if params.Size <= 0 {
		params.Size = 20
	}
	if params.Size > 500 {
		params.Size = 500
	}
	if params.From < 0 {
		params.From = 0
	}

	must := make([]map[string]any, 0, 1)
	filters := make([]map[string]any, 0, 3)

	if params.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":     params.Query,
				"fields":    []string{"company^3", "city", "industry", "country"},
				"fuzziness": "AUTO",
			},
		})
	}

	if len(params.Countries) > 0 {
		filters = append(filters, map[string]any{
			"terms": map[string]any{
				"country": params.Countries,
			},
		})
	}

	if params.Industry != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{
				"industry": params.Industry,
			},
		})
	}

	if params.Company != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{
				"company.raw": params.Company,
			},
		})
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if len(must) == 0 && len(filters) == 0 {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	}

	body := map[string]any{
		"from":             params.From,
		"size":             params.Size,
		"track_total_hits": true,
		"query": map[string]any{
			"bool": boolQuery,
		},
	}

	// Free-text queries rank by relevance unless a sort was requested.
	if params.Sort == "" && params.Query != "" {
		return body
	}

	sortField := params.Sort
	if sortField == "" {
		sortField = "valuation_in_billions:desc"
	}

	parts := strings.Split(sortField, ":")
	order := "desc"
	field, ok := sortFields[parts[0]]
	if !ok {
		field = "valuation_in_billions"
	}
	if len(parts) > 1 && (parts[1] == "asc" || parts[1] == "desc") {
		order = parts[1]
	}
	body["sort"] = []map[string]any{
		{field: map[string]any{"order": order}},
	}

	return body
}

func decodeSearch(r io.Reader) (*SearchResult, error) {
	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.CompanyDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(r).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]models.Company, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, hit.Source.Company)
	}

	return &SearchResult{
		Total: parsed.Hits.Total.Value,
		Items: items,
	}, nil
}

// DeleteStale removes documents whose last load is older than maxAge using
// batched delete-by-query. It loops until a batch returns fewer deleted
// documents than the requested batchSize.
func (c *Client) DeleteStale(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)
	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"max_docs": batchSize,
			"query": map[string]any{
				"range": map[string]any{
					"loaded_at": map[string]any{
						"lte": cutoff,
					},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			[]string{c.index},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
			c.es.DeleteByQuery.WithRefresh(true),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

// Health checks cluster health to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}
