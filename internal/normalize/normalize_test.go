package normalize_test

import (
	"testing"
	"time"

	"github.com/DeafMist/unicorn-radar/internal/models"
	"github.com/DeafMist/unicorn-radar/internal/normalize"
	"github.com/stretchr/testify/require"
)

func TestField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "entities", input: "Procter &amp; Gamble", want: "Procter & Gamble"},
		{name: "collapse whitespace", input: "  San\n\nFrancisco\t ", want: "San Francisco"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalize.Field(tt.input); got != tt.want {
				t.Fatalf("Field(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIndustryAliases(t *testing.T) {
	require.Equal(t, "Artificial Intelligence", normalize.Industry("Artificial intelligence"))
	require.Equal(t, "Fintech", normalize.Industry(" Finttech "))
	require.Equal(t, "Health", normalize.Industry("Health"))
}

func TestHeader(t *testing.T) {
	require.Equal(t, "valuation_b", normalize.Header("Valuation ($B)"))
	require.Equal(t, "date_joined", normalize.Header(" Date Joined "))
	require.Equal(t, "valuation_in_billions", normalize.Header("valuation_in_billions"))
	require.Equal(t, "company", normalize.Header("\ufeffCompany"))
}

func TestValuation(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{raw: "180", want: 180},
		{raw: "$140B", want: 140},
		{raw: " 1,200.5 ", want: 1200.5},
		{raw: "", wantErr: true},
		{raw: "n/a", wantErr: true},
		{raw: "-3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := normalize.Valuation(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, normalize.ErrInvalidValuation)
				return
			}
			require.NoError(t, err)
			require.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestDate(t *testing.T) {
	want := time.Date(2017, 4, 7, 0, 0, 0, 0, time.UTC)
	require.Equal(t, want, normalize.Date("2017-04-07"))
	require.Equal(t, want, normalize.Date("4/7/2017"))
	require.Equal(t, want, normalize.Date("2017-04-07 00:00:00"))
	require.True(t, normalize.Date("someday").IsZero())
	require.True(t, normalize.Date("").IsZero())
}

func TestCompanyAssignsStableID(t *testing.T) {
	raw := models.Company{
		Name:        " ByteDance ",
		Country:     "China",
		Industry:    "Artificial intelligence",
		City:        "Beijing",
		FoundedYear: models.FoundedYear{Raw: " 2012 "},
	}

	got := normalize.Company(raw)
	require.Equal(t, "ByteDance", got.Name)
	require.Equal(t, "Artificial Intelligence", got.Industry)
	require.True(t, got.FoundedYear.Valid)
	require.Equal(t, 2012, got.FoundedYear.Year)
	require.Equal(t, normalize.BuildCompanyID("bytedance", "CHINA", "beijing"), got.ID)
	require.Equal(t, got.ID, normalize.Company(raw).ID)
}

func TestFingerprintTracksValuation(t *testing.T) {
	c := normalize.Company(models.Company{Name: "Stripe", Country: "United States", Valuation: 95})
	before := normalize.Fingerprint(c)
	require.Equal(t, before, normalize.Fingerprint(c))

	c.Valuation = 50
	require.NotEqual(t, before, normalize.Fingerprint(c))
}
