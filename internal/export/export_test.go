package export_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/DeafMist/unicorn-radar/internal/export"
	"github.com/DeafMist/unicorn-radar/internal/models"
)

var companies = []models.Company{
	{Name: "Stripe", Country: "United States", Industry: "Fintech", City: "San Francisco", Valuation: 95, DateJoined: time.Date(2014, 1, 23, 0, 0, 0, 0, time.UTC), FoundedYear: models.ParseFoundedYear("2010")},
	{Name: "Klarna", Country: "Sweden", Industry: "Fintech", City: "Stockholm", Valuation: 45.6, FoundedYear: models.ParseFoundedYear("2005s")},
}

func TestParseFormat(t *testing.T) {
	f, err := export.ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, export.CSV, f)

	f, err = export.ParseFormat("XLSX")
	require.NoError(t, err)
	require.Equal(t, export.XLSX, f)

	_, err = export.ParseFormat("pdf")
	require.ErrorIs(t, err, export.ErrUnknownFormat)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, export.CSV, companies))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "valuation_in_billions", rows[0][4])
	require.Equal(t, []string{"Stripe", "United States", "Fintech", "San Francisco", "95", "2014-01-23", "2010"}, rows[1])
	require.Equal(t, "", rows[2][5])
	require.Equal(t, "2005s", rows[2][6])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, export.XLSX, companies))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Unicorns")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "company", rows[0][0])
	require.Equal(t, "Stripe", rows[1][0])
	require.Equal(t, "45.6", rows[2][4])
	require.Equal(t, "2005s", rows[2][6])
}

func TestContentType(t *testing.T) {
	require.Contains(t, export.XLSX.ContentType(), "spreadsheetml")
	require.Contains(t, export.CSV.ContentType(), "text/csv")
}
