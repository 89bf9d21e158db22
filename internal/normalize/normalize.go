package normalize

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/DeafMist/unicorn-radar/internal/models"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	nonWord    = regexp.MustCompile(`[^a-z0-9]+`)
)

// ErrInvalidValuation is returned when a valuation cell holds no number.
var ErrInvalidValuation = errors.New("invalid valuation")

// Known spelling variants in the public unicorn dataset.
var industryAliases = map[string]string{
	"artificial intelligence": "Artificial Intelligence",
	"finttech":                "Fintech",
	"fintech":                 "Fintech",
}

// Field decodes HTML entities, squeezes whitespace and trims.
func Field(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// Industry folds the dataset's known spelling variants onto one label.
func Industry(input string) string {
	clean := Field(input)
	if canonical, ok := industryAliases[strings.ToLower(clean)]; ok {
		return canonical
	}
	return clean
}

// Header turns a column header such as "Valuation ($B)" into "valuation_b".
func Header(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	return strings.Trim(nonWord.ReplaceAllString(lower, "_"), "_")
}

// Valuation parses "180", "$180", "$180B" or "1,200.5".
func Valuation(raw string) (float64, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "$")
	clean = strings.TrimSuffix(strings.TrimSuffix(clean, "B"), "b")
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidValuation)
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValuation, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("%w: out of range %q", ErrInvalidValuation, raw)
	}
	return v, nil
}

// Date returns the zero time when no known layout matches.
func Date(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"1/2/2006",
		"01/02/2006",
		"2-Jan-06",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts.UTC()
		}
	}

	return time.Time{}
}

// Company cleans every text field of c in place and returns it.
func Company(c models.Company) models.Company {
	c.Name = Field(c.Name)
	c.Country = Field(c.Country)
	c.Industry = Industry(c.Industry)
	c.City = Field(c.City)
	c.FoundedYear = models.ParseFoundedYear(Field(c.FoundedYear.Raw))
	if c.ID == "" {
		c.ID = BuildCompanyID(c.Name, c.Country, c.City)
	}
	return c
}

// BuildCompanyID hashes the identifying fields to form deterministic IDs.
func BuildCompanyID(name, country, city string) string {
	key := strings.ToLower(name) + "|" + strings.ToLower(country) + "|" + strings.ToLower(city)
	s := sha1.Sum([]byte(key))
	return hex.EncodeToString(s[:])
}

// Fingerprint changes whenever any reported attribute of c changes.
func Fingerprint(c models.Company) string {
	parts := []string{
		c.ID,
		c.Name,
		c.Country,
		c.Industry,
		c.City,
		strconv.FormatFloat(c.Valuation, 'f', -1, 64),
		c.DateJoined.UTC().Format(time.DateOnly),
		c.FoundedYear.String(),
	}
	s := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(s[:])
}
