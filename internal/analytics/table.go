package analytics

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/DeafMist/unicorn-radar/internal/models"
)

// ErrInvalidSort is returned by ParseSort for an unknown column or direction.
var ErrInvalidSort = errors.New("invalid sort")

// Table columns, named after the dataset headers.
const (
	ColCompany     = "company"
	ColCountry     = "country"
	ColIndustry    = "industry"
	ColCity        = "city"
	ColValuation   = "valuation_in_billions"
	ColDateJoined  = "date_joined"
	ColFoundedYear = "founded_year"
)

// Columns is the table column order.
var Columns = []string{ColCompany, ColCountry, ColIndustry, ColCity, ColValuation, ColDateJoined, ColFoundedYear}

// SortSpec orders table rows by one column.
type SortSpec struct {
	Column string
	Desc   bool
}

// DefaultSort puts the most valuable companies first.
var DefaultSort = SortSpec{Column: ColValuation, Desc: true}

func (s SortSpec) String() string {
	if s.Desc {
		return s.Column + ":desc"
	}
	return s.Column + ":asc"
}

// ParseSort reads "column" or "column:asc|desc". Empty input yields DefaultSort.
func ParseSort(raw string) (SortSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultSort, nil
	}

	parts := strings.SplitN(raw, ":", 2)
	spec := SortSpec{Column: strings.ToLower(strings.TrimSpace(parts[0]))}
	if !isColumn(spec.Column) {
		return SortSpec{}, fmt.Errorf("%w: unknown column %q", ErrInvalidSort, parts[0])
	}

	if len(parts) == 2 {
		switch strings.ToLower(strings.TrimSpace(parts[1])) {
		case "", "asc":
		case "desc":
			spec.Desc = true
		default:
			return SortSpec{}, fmt.Errorf("%w: unknown direction %q", ErrInvalidSort, parts[1])
		}
	}
	return spec, nil
}

func isColumn(name string) bool {
	for _, c := range Columns {
		if c == name {
			return true
		}
	}
	return false
}

// TableQuery selects one sorted page of rows.
type TableQuery struct {
	Sort SortSpec
	From int
	Size int
}

// TablePage is a page of rows plus the unpaged total.
type TablePage struct {
	Total int              `json:"total"`
	From  int              `json:"from"`
	Size  int              `json:"size"`
	Sort  string           `json:"sort"`
	Rows  []models.Company `json:"rows"`
}

// SortCompanies returns a sorted copy; the input is left untouched.
func SortCompanies(companies []models.Company, spec SortSpec) []models.Company {
	out := make([]models.Company, len(companies))
	copy(out, companies)

	less := comparator(spec.Column)
	sort.SliceStable(out, func(i, j int) bool {
		c := less(out[i], out[j])
		if c == 0 {
			return out[i].Name < out[j].Name
		}
		if spec.Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Table sorts and pages companies. A non-positive Size returns every row from From.
func Table(companies []models.Company, q TableQuery) TablePage {
	if q.Sort.Column == "" {
		q.Sort = DefaultSort
	}
	sorted := SortCompanies(companies, q.Sort)

	from := q.From
	if from < 0 {
		from = 0
	}
	if from > len(sorted) {
		from = len(sorted)
	}
	end := len(sorted)
	if q.Size > 0 && from+q.Size < end {
		end = from + q.Size
	}

	return TablePage{
		Total: len(sorted),
		From:  from,
		Size:  end - from,
		Sort:  q.Sort.String(),
		Rows:  sorted[from:end],
	}
}

func comparator(column string) func(a, b models.Company) int {
	switch column {
	case ColCountry:
		return func(a, b models.Company) int { return strings.Compare(a.Country, b.Country) }
	case ColIndustry:
		return func(a, b models.Company) int { return strings.Compare(a.Industry, b.Industry) }
	case ColCity:
		return func(a, b models.Company) int { return strings.Compare(a.City, b.City) }
	case ColValuation:
		return func(a, b models.Company) int { return compareFloat(a.Valuation, b.Valuation) }
	case ColDateJoined:
		return func(a, b models.Company) int { return a.DateJoined.Compare(b.DateJoined) }
	case ColFoundedYear:
		return compareFounded
	default:
		return func(a, b models.Company) int { return strings.Compare(a.Name, b.Name) }
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Malformed years sort before every valid year, then by raw text.
func compareFounded(a, b models.Company) int {
	fa, fb := a.FoundedYear, b.FoundedYear
	switch {
	case fa.Valid && fb.Valid:
		return fa.Year - fb.Year
	case fa.Valid:
		return 1
	case fb.Valid:
		return -1
	default:
		return strings.Compare(fa.Raw, fb.Raw)
	}
}
