package analytics

import (
	"sort"

	"github.com/DeafMist/unicorn-radar/internal/models"
)

// Options lists the dropdown choices, each led by its sentinel.
type Options struct {
	Countries  []string `json:"countries"`
	Industries []string `json:"industries"`
}

// BuildOptions derives the dropdown choices from the full dataset.
func BuildOptions(companies []models.Company) Options {
	return Options{
		Countries:  CountryOptions(companies),
		Industries: IndustryOptions(companies),
	}
}

// CountryOptions returns the sentinel followed by countries in alphabetical order.
func CountryOptions(companies []models.Company) []string {
	countries := distinct(companies, ByCountry)
	sort.Strings(countries)
	return append([]string{AllCountries}, countries...)
}

// IndustryOptions returns the sentinel followed by industries ordered by name
// length, shortest first. Equal lengths keep dataset order.
func IndustryOptions(companies []models.Company) []string {
	industries := distinct(companies, ByIndustry)
	sort.SliceStable(industries, func(i, j int) bool {
		return len(industries[i]) < len(industries[j])
	})
	return append([]string{AllIndustries}, industries...)
}

func distinct(companies []models.Company, dim Dimension) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, c := range companies {
		v := dim.value(c)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
