package analytics

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/DeafMist/unicorn-radar/internal/models"
)

var (
	// ErrUnknownDimension is returned for a grouping column other than
	// country, industry or city.
	ErrUnknownDimension = errors.New("unknown dimension")
	// ErrUnknownMetric is returned for a metric other than sum or count.
	ErrUnknownMetric = errors.New("unknown metric")
)

// Dimension names a grouping column.
type Dimension string

const (
	ByCountry  Dimension = "country"
	ByIndustry Dimension = "industry"
	ByCity     Dimension = "city"
)

// Metric names the aggregate computed per group.
type Metric string

const (
	Sum   Metric = "sum"
	Count Metric = "count"
)

// ParseDimension accepts the column name, case-insensitively.
func ParseDimension(raw string) (Dimension, error) {
	switch d := Dimension(strings.ToLower(strings.TrimSpace(raw))); d {
	case ByCountry, ByIndustry, ByCity:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDimension, raw)
	}
}

// ParseMetric defaults to Sum for empty input.
func ParseMetric(raw string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return Sum, nil
	case Sum, Count:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, raw)
	}
}

func (d Dimension) value(c models.Company) string {
	switch d {
	case ByCountry:
		return c.Country
	case ByIndustry:
		return c.Industry
	case ByCity:
		return c.City
	}
	return ""
}

// Group is one aggregated row. Valuation and Count are always filled; Value
// holds whichever one the metric selected.
type Group struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Valuation float64 `json:"valuation_in_billions"`
	Count     int     `json:"count"`
}

// GroupBy aggregates companies by dim and sorts by value descending, ties by key.
func GroupBy(companies []models.Company, dim Dimension, metric Metric) ([]Group, error) {
	if _, err := ParseDimension(string(dim)); err != nil {
		return nil, err
	}
	if metric != Sum && metric != Count {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}

	index := make(map[string]int)
	groups := make([]Group, 0)
	for _, c := range companies {
		key := dim.value(c)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Valuation += c.Valuation
		groups[i].Count++
	}

	for i := range groups {
		if metric == Count {
			groups[i].Value = float64(groups[i].Count)
		} else {
			groups[i].Value = groups[i].Valuation
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Value == groups[j].Value {
			return groups[i].Key < groups[j].Key
		}
		return groups[i].Value > groups[j].Value
	})
	return groups, nil
}

// Summary is the headline numbers for a selection.
type Summary struct {
	Companies      int             `json:"companies"`
	TotalValuation float64         `json:"total_valuation_in_billions"`
	Countries      int             `json:"countries"`
	Industries     int             `json:"industries"`
	Top            *models.Company `json:"top,omitempty"`
}

// Summarize computes totals over companies.
func Summarize(companies []models.Company) Summary {
	s := Summary{Companies: len(companies)}
	countries := make(map[string]struct{})
	industries := make(map[string]struct{})

	for i := range companies {
		c := &companies[i]
		s.TotalValuation += c.Valuation
		countries[c.Country] = struct{}{}
		industries[c.Industry] = struct{}{}
		if s.Top == nil || c.Valuation > s.Top.Valuation {
			s.Top = c
		}
	}

	s.Countries = len(countries)
	s.Industries = len(industries)
	if s.Top != nil {
		top := *s.Top
		s.Top = &top
	}
	return s
}
