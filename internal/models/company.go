package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Company is a single unicorn record as loaded from the dataset.
type Company struct {
	ID          string      `json:"id"`
	Name        string      `json:"company"`
	Country     string      `json:"country"`
	Industry    string      `json:"industry"`
	City        string      `json:"city"`
	Valuation   float64     `json:"valuation_in_billions"`
	DateJoined  time.Time   `json:"date_joined"`
	FoundedYear FoundedYear `json:"founded_year"`
}

// FoundedYear keeps the raw text next to the parsed year because the source
// column is occasionally not numeric.
type FoundedYear struct {
	Year  int
	Raw   string
	Valid bool
}

// ParseFoundedYear is best effort: text that is not an integer is kept as-is.
func ParseFoundedYear(raw string) FoundedYear {
	if year, err := strconv.Atoi(raw); err == nil {
		return FoundedYear{Year: year, Raw: raw, Valid: true}
	}
	return FoundedYear{Raw: raw}
}

func (f FoundedYear) String() string {
	if f.Valid {
		return strconv.Itoa(f.Year)
	}
	return f.Raw
}

// MarshalJSON emits a number for valid years and the raw text otherwise.
func (f FoundedYear) MarshalJSON() ([]byte, error) {
	if f.Valid {
		return json.Marshal(f.Year)
	}
	if f.Raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(f.Raw)
}

func (f *FoundedYear) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = FoundedYear{}
		return nil
	}
	var year int
	if err := json.Unmarshal(data, &year); err == nil {
		*f = FoundedYear{Year: year, Raw: strconv.Itoa(year), Valid: true}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = ParseFoundedYear(raw)
	return nil
}

// CompanyDocument is the shape stored in Elasticsearch. LoadedAt marks the
// dataset load that last wrote it so stale rows can be pruned.
type CompanyDocument struct {
	Company
	Fingerprint string    `json:"fingerprint"`
	LoadedAt    time.Time `json:"loaded_at"`
}
