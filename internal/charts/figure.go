// Package charts turns aggregated groups into bar-chart figures that a
// browser charting widget can draw without further processing.
package charts

import (
	"math"

	"github.com/DeafMist/unicorn-radar/internal/analytics"
)

// Industry names are long; the x axis only shows this many characters.
const industryLabelLimit = 15

// Figure is a chart document: one or more traces plus layout.
type Figure struct {
	Data   []Bar  `json:"data"`
	Layout Layout `json:"layout"`
}

// Bar is a single bar trace. CustomData carries the untruncated keys so a
// click on a shortened label can still be mapped back to a filter value.
type Bar struct {
	Type          string    `json:"type"`
	Name          string    `json:"name"`
	X             []string  `json:"x"`
	Y             []float64 `json:"y"`
	CustomData    []string  `json:"customdata,omitempty"`
	HoverTemplate string    `json:"hovertemplate"`
}

// Layout holds the chart title, axis titles and hover behavior.
type Layout struct {
	Title     Title  `json:"title"`
	XAxis     Axis   `json:"xaxis"`
	YAxis     Axis   `json:"yaxis"`
	HoverMode string `json:"hovermode"`
}

// Axis is one chart axis.
type Axis struct {
	Title Title `json:"title"`
}

// Title is the text of a chart or axis title.
type Title struct {
	Text string `json:"text"`
}

// CountryValuation charts summed valuation per country.
func CountryValuation(groups []analytics.Group) Figure {
	return valuationFigure(groups, "Country", 0)
}

// IndustryValuation charts summed valuation per industry with shortened labels.
func IndustryValuation(groups []analytics.Group) Figure {
	return valuationFigure(groups, "Industry", industryLabelLimit)
}

// CompanyCount charts the number of companies per group of dim.
func CompanyCount(groups []analytics.Group, dim analytics.Dimension) Figure {
	label := axisLabel(dim)
	limit := 0
	if dim == analytics.ByIndustry {
		limit = industryLabelLimit
	}

	bar := newBar(groups, "Companies", limit, func(g analytics.Group) float64 { return float64(g.Count) })
	bar.HoverTemplate = "<b>" + label + ": </b>%{x}<br>" +
		"<b>Companies: </b>%{y}<br><extra></extra>"

	return Figure{
		Data: []Bar{bar},
		Layout: Layout{
			Title:     Title{Text: "Companies by " + lower(label)},
			XAxis:     Axis{Title: Title{Text: label}},
			YAxis:     Axis{Title: Title{Text: "Companies"}},
			HoverMode: "closest",
		},
	}
}

func valuationFigure(groups []analytics.Group, label string, limit int) Figure {
	bar := newBar(groups, "Valuation", limit, func(g analytics.Group) float64 { return g.Valuation })
	bar.HoverTemplate = "<b>" + label + ": </b>%{x}<br>" +
		"<b>Valuation: </b>%{y} billions<br><extra></extra>"

	return Figure{
		Data: []Bar{bar},
		Layout: Layout{
			Title:     Title{Text: "Valuation ($B) by " + lower(label)},
			XAxis:     Axis{Title: Title{Text: label}},
			YAxis:     Axis{Title: Title{Text: "Valuation ($B)"}},
			HoverMode: "closest",
		},
	}
}

func newBar(groups []analytics.Group, name string, limit int, value func(analytics.Group) float64) Bar {
	bar := Bar{
		Type: "bar",
		Name: name,
		X:    make([]string, 0, len(groups)),
		Y:    make([]float64, 0, len(groups)),
	}

	truncated := false
	for _, g := range groups {
		label := Truncate(g.Key, limit)
		truncated = truncated || label != g.Key
		bar.X = append(bar.X, label)
		bar.Y = append(bar.Y, round2(value(g)))
	}

	if truncated {
		bar.CustomData = make([]string, 0, len(groups))
		for _, g := range groups {
			bar.CustomData = append(bar.CustomData, g.Key)
		}
	}
	return bar
}

// Truncate keeps the first limit runes of s. A non-positive limit keeps s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func axisLabel(dim analytics.Dimension) string {
	switch dim {
	case analytics.ByIndustry:
		return "Industry"
	case analytics.ByCity:
		return "City"
	default:
		return "Country"
	}
}

func lower(label string) string {
	if label == "" {
		return label
	}
	r := []rune(label)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] += 'a' - 'A'
	}
	return string(r)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
