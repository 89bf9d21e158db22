// Package analytics filters and aggregates the company collection.
package analytics

import (
	"strings"

	"github.com/DeafMist/unicorn-radar/internal/models"
	"github.com/DeafMist/unicorn-radar/internal/normalize"
)

// Dropdown sentinels meaning "no restriction".
const (
	AllCountries  = "All countries"
	AllIndustries = "All industries"
)

// Selection is the dashboard's filter state. Zero value selects everything.
type Selection struct {
	Countries []string `json:"countries,omitempty" validate:"dive,max=128"`
	Industry  string   `json:"industry,omitempty" validate:"max=128"`
	Company   string   `json:"company,omitempty" validate:"max=256"`
}

// Normalize drops the sentinels, blanks and duplicates and folds the industry
// onto the spelling the loader stores. A country list that only held the
// sentinel, or nothing, becomes nil (all countries).
func (s Selection) Normalize() Selection {
	out := Selection{
		Industry: normalize.Industry(s.Industry),
		Company:  strings.TrimSpace(s.Company),
	}
	if out.Industry == AllIndustries {
		out.Industry = ""
	}

	seen := make(map[string]struct{}, len(s.Countries))
	for _, c := range s.Countries {
		c = strings.TrimSpace(c)
		if c == "" || c == AllCountries {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out.Countries = append(out.Countries, c)
	}
	return out
}

// IsEmpty reports whether the normalized selection restricts nothing.
func (s Selection) IsEmpty() bool {
	n := s.Normalize()
	return len(n.Countries) == 0 && n.Industry == "" && n.Company == ""
}

// Filter returns the companies matching sel. Predicates combine with AND.
func Filter(companies []models.Company, sel Selection) []models.Company {
	sel = sel.Normalize()
	if len(sel.Countries) == 0 && sel.Industry == "" && sel.Company == "" {
		return companies
	}

	var countries map[string]struct{}
	if len(sel.Countries) > 0 {
		countries = make(map[string]struct{}, len(sel.Countries))
		for _, c := range sel.Countries {
			countries[c] = struct{}{}
		}
	}

	out := make([]models.Company, 0, len(companies))
	for _, c := range companies {
		if sel.Industry != "" && c.Industry != sel.Industry {
			continue
		}
		if countries != nil {
			if _, ok := countries[c.Country]; !ok {
				continue
			}
		}
		if sel.Company != "" && c.Name != sel.Company {
			continue
		}
		out = append(out, c)
	}
	return out
}
