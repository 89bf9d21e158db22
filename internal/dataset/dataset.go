package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/DeafMist/unicorn-radar/internal/models"
	"github.com/DeafMist/unicorn-radar/internal/normalize"
)

var (
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing required column")
	// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
)

// Dataset is the full company collection. It is never mutated after load.
type Dataset struct {
	Source    string
	LoadedAt  time.Time
	Companies []models.Company
	Skipped   int
	Warnings  []string
}

// Len returns the number of loaded companies.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Companies)
}

const (
	colCompany     = "company"
	colCountry     = "country"
	colIndustry    = "industry"
	colCity        = "city"
	colValuation   = "valuation_in_billions"
	colDateJoined  = "date_joined"
	colFoundedYear = "founded_year"
)

var required = []string{colCompany, colCountry, colIndustry, colValuation}

// Header spellings seen in the raw and the cleaned public datasets.
var headerAliases = map[string]string{
	"company_name":  colCompany,
	"name":          colCompany,
	"valuation_b":   colValuation,
	"valuation":     colValuation,
	"valuation_usd": colValuation,
	"joined":        colDateJoined,
	"year_founded":  colFoundedYear,
	"founded":       colFoundedYear,
}

// LoadFile reads a CSV or XLSX dataset from path.
func LoadFile(ctx context.Context, path string, log *slog.Logger) (*Dataset, error) {
	var (
		rows   [][]string
		err    error
		serial bool
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer f.Close()
		rows, err = readCSV(f)
	case ".xlsx":
		rows, err = readXLSX(path)
		serial = true
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	ds, err := build(ctx, rows, serial, log)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	ds.Source = path
	return ds, nil
}

// Parse reads CSV content from r.
func Parse(ctx context.Context, r io.Reader, log *slog.Logger) (*Dataset, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return build(ctx, rows, false, log)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("open xlsx: workbook has no sheets")
	}
	// raw values keep date cells as serial numbers instead of "mm-dd-yy" text
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// build turns rows into companies. serialDates accepts spreadsheet serial
// numbers in the date column.
func build(ctx context.Context, rows [][]string, serialDates bool, log *slog.Logger) (*Dataset, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}

	index := columnIndex(rows[0])
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	ds := &Dataset{
		LoadedAt:  time.Now().UTC(),
		Companies: make([]models.Company, 0, len(rows)-1),
	}

	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := i + 2
		if isBlank(row) {
			continue
		}

		cell := func(col string) string {
			idx, ok := index[col]
			if !ok || idx >= len(row) {
				return ""
			}
			return row[idx]
		}

		valuation, err := normalize.Valuation(cell(colValuation))
		if err != nil {
			ds.Skipped++
			log.Warn("skip row", slog.Int("line", line), slog.Any("err", err))
			continue
		}

		c := normalize.Company(models.Company{
			Name:        cell(colCompany),
			Country:     cell(colCountry),
			Industry:    cell(colIndustry),
			City:        cell(colCity),
			Valuation:   valuation,
			FoundedYear: models.FoundedYear{Raw: cell(colFoundedYear)},
		})
		if c.Name == "" {
			ds.Skipped++
			log.Warn("skip row", slog.Int("line", line), slog.String("reason", "empty company name"))
			continue
		}

		rawDate := strings.TrimSpace(cell(colDateJoined))
		c.DateJoined = normalize.Date(rawDate)
		if c.DateJoined.IsZero() && serialDates {
			c.DateJoined = serialDate(rawDate)
		}
		if rawDate != "" && c.DateJoined.IsZero() {
			ds.Warnings = append(ds.Warnings, fmt.Sprintf("line %d: unparsed date_joined %q", line, rawDate))
		}

		ds.Companies = append(ds.Companies, c)
	}

	log.Info("dataset loaded",
		slog.Int("companies", len(ds.Companies)),
		slog.Int("skipped", ds.Skipped),
		slog.Int("warnings", len(ds.Warnings)),
	)
	return ds, nil
}

// serialDate converts an Excel date serial. Anything else yields the zero time.
func serialDate(raw string) time.Time {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return time.Time{}
	}
	ts, err := excelize.ExcelDateToTime(v, false)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func columnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalize.Header(h)
		if alias, ok := headerAliases[key]; ok {
			key = alias
		}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	return index
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
