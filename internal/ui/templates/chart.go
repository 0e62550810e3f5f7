package templates

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"kpi-dashboard/internal/models"
	"kpi-dashboard/internal/services"
)

// Chart canvas in SVG user units.
const (
	chartWidth  = 640.0
	lineHeight  = 240.0
	chartPad    = 24.0
	barRow      = 26.0
	barHeight   = 20.0
	barLabelW   = 220.0
	barValueW   = 96.0
	maxLabelLen = 30
)

// ChartPoint is one labelled value placed on the canvas.
type ChartPoint struct {
	X, Y    float64
	Label   string
	Display string
}

// LineChart is the selected KPI over time.
type LineChart struct {
	Title  string
	Path   string
	ZeroY  float64
	Points []ChartPoint
	// Ticks label the first and last bucket on the x axis.
	Ticks []ChartPoint
}

// Bar is one ranked product.
type Bar struct {
	X, Y, Width float64
	Label       string
	Display     string
	Tooltip     string
	Negative    bool
}

func (b Bar) TextY() float64 { return b.Y + barHeight/2 + 4 }

func (b Bar) Sign() string {
	if b.Negative {
		return "negative"
	}
	return "positive"
}

// BarChart is the top products ranking, one horizontal bar per product.
type BarChart struct {
	Title  string
	Height float64
	ZeroX  float64
	Bars   []Bar
}

func (c BarChart) ViewBox() string {
	return "0 0 " + coord(chartWidth) + " " + coord(c.Height)
}

// valueScale spans the plotted values and always includes zero, so negative
// profit and positive sales share one baseline.
type valueScale struct{ lo, hi float64 }

func newValueScale(values []float64) valueScale {
	var s valueScale
	for _, v := range values {
		s.lo = min(s.lo, v)
		s.hi = max(s.hi, v)
	}
	if s.hi == s.lo {
		s.hi = s.lo + 1
	}
	return s
}

// at maps v onto [0, 1].
func (s valueScale) at(v float64) float64 {
	return (v - s.lo) / (s.hi - s.lo)
}

func kpiFloats(rows []models.AggregateRow, k models.KPI) []float64 {
	values := make([]float64, len(rows))
	for i, row := range rows {
		v, _ := row.Value(k)
		values[i] = v.InexactFloat64()
	}
	return values
}

// NewLineChart lays out snap.Series for the selected KPI.
func NewLineChart(snap *services.Snapshot) LineChart {
	values := kpiFloats(snap.Series, snap.KPI)
	scale := newValueScale(values)

	plotW := chartWidth - 2*chartPad
	plotH := lineHeight - 2*chartPad
	y := func(v float64) float64 { return chartPad + (1-scale.at(v))*plotH }

	chart := LineChart{Title: seriesTitle(snap), ZeroY: y(0)}

	var path strings.Builder
	for i, row := range snap.Series {
		x := chartPad + plotW/2
		if len(values) > 1 {
			x = chartPad + float64(i)*plotW/float64(len(values)-1)
		}
		p := ChartPoint{X: x, Y: y(values[i]), Label: row.Key, Display: rowValue(row, snap.KPI)}
		chart.Points = append(chart.Points, p)

		if i > 0 {
			path.WriteString(" L")
		} else {
			path.WriteString("M")
		}
		path.WriteString(coord(p.X) + "," + coord(p.Y))
	}
	chart.Path = path.String()

	if n := len(chart.Points); n > 0 {
		chart.Ticks = append(chart.Ticks, chart.Points[0])
		if n > 1 {
			chart.Ticks = append(chart.Ticks, chart.Points[n-1])
		}
	}
	return chart
}

// NewBarChart lays out snap.TopProducts for the selected KPI in rank order.
func NewBarChart(snap *services.Snapshot) BarChart {
	values := kpiFloats(snap.TopProducts, snap.KPI)
	scale := newValueScale(values)

	plotW := chartWidth - barLabelW - barValueW
	x := func(v float64) float64 { return barLabelW + scale.at(v)*plotW }

	chart := BarChart{
		Title:  productsTitle(snap),
		Height: 2*chartPad + float64(len(values))*barRow,
		ZeroX:  x(0),
	}
	for i, row := range snap.TopProducts {
		end := x(values[i])
		display := rowValue(row, snap.KPI)
		chart.Bars = append(chart.Bars, Bar{
			X:        min(chart.ZeroX, end),
			Y:        chartPad + float64(i)*barRow,
			Width:    math.Abs(end - chart.ZeroX),
			Label:    shorten(row.Key, maxLabelLen),
			Display:  display,
			Tooltip:  row.Key + ": " + display,
			Negative: values[i] < 0,
		})
	}
	return chart
}

func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

// shorten truncates s to n runes, marking the cut with an ellipsis.
func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
