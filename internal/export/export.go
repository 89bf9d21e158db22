package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/DeafMist/unicorn-radar/internal/analytics"
	"github.com/DeafMist/unicorn-radar/internal/models"
)

// Format is an export file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

var ErrUnknownFormat = errors.New("unknown export format")

const sheetName = "Unicorns"

// ParseFormat defaults to CSV for empty input.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return CSV, nil
	case CSV, XLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Write encodes companies to w in format f, one row per company, with the
// dataset's column headers.
func Write(w io.Writer, f Format, companies []models.Company) error {
	switch f {
	case CSV:
		return writeCSV(w, companies)
	case XLSX:
		return writeXLSX(w, companies)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

func record(c models.Company) []string {
	joined := ""
	if !c.DateJoined.IsZero() {
		joined = c.DateJoined.Format(time.DateOnly)
	}
	return []string{
		c.Name,
		c.Country,
		c.Industry,
		c.City,
		strconv.FormatFloat(c.Valuation, 'f', -1, 64),
		joined,
		c.FoundedYear.String(),
	}
}

func writeCSV(w io.Writer, companies []models.Company) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(analytics.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range companies {
		if err := cw.Write(record(c)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, companies []models.Company) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(analytics.Columns))
	for i, col := range analytics.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, c := range companies {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{c.Name, c.Country, c.Industry, c.City, c.Valuation, dateCell(c.DateJoined), foundedCell(c.FoundedYear)}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func dateCell(t time.Time) any {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func foundedCell(f models.FoundedYear) any {
	if f.Valid {
		return f.Year
	}
	return f.Raw
}
