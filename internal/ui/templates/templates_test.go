package templates

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"kpi-dashboard/internal/models"
	"kpi-dashboard/internal/services"
)

func TestFormatMoney(t *testing.T) {
	tests := map[string]string{
		"0":          "$0.00",
		"150":        "$150.00",
		"1234.5":     "$1,234.50",
		"-10":        "-$10.00",
		"9876543.21": "$9,876,543.21",
	}
	for in, want := range tests {
		require.Equal(t, want, FormatMoney(decimal.RequireFromString(in)), in)
	}
}

func TestFormatKPI(t *testing.T) {
	require.Equal(t, "6.67%", FormatKPI(models.KPIMarginRate, decimal.RequireFromString("0.066666")))
	require.Equal(t, "12,000", FormatKPI(models.KPIQuantity, decimal.NewFromInt(12000)))
	require.Equal(t, "+50.0%", FormatChange(decimal.NewFromInt(50)))
	require.Equal(t, "-2.5%", FormatChange(decimal.RequireFromString("-2.5")))
}

func testSnapshot() *services.Snapshot {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &services.Snapshot{
		Options: map[models.Column][]string{
			models.ColumnRegion: {"East", "West & Co"},
		},
		Bounds:      models.DateRange{From: day, To: day},
		Granularity: models.Weekly,
		KPI:         models.KPISales,
		Comparisons: []models.PeriodComparison{
			{KPI: models.KPISales, Current: decimal.NewFromInt(150), Previous: decimal.NewFromInt(100), PercentChange: decimal.NewFromInt(50)},
		},
		Series: []models.AggregateRow{
			{Key: "2024-01-07", KPISummary: models.KPISummary{Sales: decimal.NewFromInt(150)}},
		},
		TopProducts: []models.AggregateRow{
			{Key: "<Chair>", KPISummary: models.KPISummary{Sales: decimal.NewFromInt(150)}},
		},
		Warnings: []models.Warning{{Code: models.WarningInvertedRange, Message: "From Date must be earlier than To Date."}},
		Records:  []models.Record{{OrderDate: day, ProductName: "Chair", Sales: decimal.NewFromInt(150)}},
	}
}

func TestFragments(t *testing.T) {
	snap := testSnapshot()
	ctx := context.Background()

	var b strings.Builder
	require.NoError(t, KPICards(snap).Render(ctx, &b))
	require.Contains(t, b.String(), `id="kpi-cards"`)
	require.Contains(t, b.String(), "$150.00")
	require.Contains(t, b.String(), "+50.0%")

	b.Reset()
	require.NoError(t, TopProducts(snap).Render(ctx, &b))
	require.Contains(t, b.String(), "&lt;Chair&gt;")
	require.NotContains(t, b.String(), "<Chair>")

	b.Reset()
	require.NoError(t, SeriesTable(snap).Render(ctx, &b))
	require.Contains(t, b.String(), "Sales Over Time (Weekly)")
	require.Contains(t, b.String(), "2024-01-07")

	b.Reset()
	require.NoError(t, Filters(snap).Render(ctx, &b))
	require.Contains(t, b.String(), "West &amp; Co")

	b.Reset()
	require.NoError(t, Warnings(snap).Render(ctx, &b))
	require.Contains(t, b.String(), models.WarningInvertedRange)
}

func TestSeriesTable_NoData(t *testing.T) {
	snap := testSnapshot()
	snap.Records = nil

	var b strings.Builder
	require.NoError(t, SeriesTable(snap).Render(context.Background(), &b))
	require.Contains(t, b.String(), "No data available")
}

func TestRecordsTable_Limit(t *testing.T) {
	records := make([]models.Record, 5)
	var b strings.Builder
	require.NoError(t, RecordsTable(records, 3).Render(context.Background(), &b))

	html := b.String()
	require.Equal(t, 3+1, strings.Count(html, "<tr>"))
	require.Contains(t, html, "Showing 3 of 5 records")
}

func TestDashboardPage(t *testing.T) {
	var b strings.Builder
	require.NoError(t, Dashboard(PageData{TopN: 10}).Render(context.Background(), &b))

	html := b.String()
	require.True(t, strings.HasPrefix(html, "<!doctype html>"))
	require.Contains(t, html, "/sse/dashboard")
	require.Contains(t, html, `id="records-content"`)
	require.Contains(t, html, `id="series-chart"`)
	require.Contains(t, html, `id="products-chart"`)
	require.Contains(t, html, "&#34;top&#34;:10")
	require.Contains(t, html, "<title>SuperStore KPI Dashboard</title>")
	require.NotContains(t, html, "seriesData")
}

func TestDashboardPage_EscapesTitle(t *testing.T) {
	var b strings.Builder
	require.NoError(t, Dashboard(PageData{Title: `Q1 <Sales> & "Profit"`}).Render(context.Background(), &b))
	require.Contains(t, b.String(), "Q1 &lt;Sales&gt; &amp; &#34;Profit&#34;")
}

func TestCharts_RenderSVG(t *testing.T) {
	snap := testSnapshot()
	ctx := context.Background()

	var b strings.Builder
	require.NoError(t, SeriesChart(snap).Render(ctx, &b))
	require.Contains(t, b.String(), `id="series-chart"`)
	require.Contains(t, b.String(), `<path class="series" d="M`)
	require.Contains(t, b.String(), "2024-01-07: $150.00")

	b.Reset()
	require.NoError(t, ProductsChart(snap).Render(ctx, &b))
	require.Contains(t, b.String(), `id="products-chart"`)
	require.Equal(t, 1, strings.Count(b.String(), "<rect"))
	require.Contains(t, b.String(), "&lt;Chair&gt;: $150.00")

	b.Reset()
	snap.Records = nil
	snap.TopProducts = nil
	require.NoError(t, SeriesChart(snap).Render(ctx, &b))
	require.NotContains(t, b.String(), "<svg")
	b.Reset()
	require.NoError(t, ProductsChart(snap).Render(ctx, &b))
	require.NotContains(t, b.String(), "<svg")
}

func TestNewLineChart_Layout(t *testing.T) {
	snap := &services.Snapshot{
		KPI:         models.KPIProfit,
		Granularity: models.Monthly,
		Series: []models.AggregateRow{
			{Key: "2024-01-31", KPISummary: models.KPISummary{Profit: decimal.NewFromInt(10)}},
			{Key: "2024-02-29", KPISummary: models.KPISummary{Profit: decimal.NewFromInt(-10)}},
			{Key: "2024-03-31", KPISummary: models.KPISummary{Profit: decimal.NewFromInt(30)}},
		},
	}

	c := NewLineChart(snap)
	require.Equal(t, "Profit Over Time (Monthly)", c.Title)
	require.Len(t, c.Points, 3)
	require.InDelta(t, chartPad, c.Points[0].X, 1e-9)
	require.InDelta(t, chartWidth-chartPad, c.Points[2].X, 1e-9)
	// highest value at the top edge, lowest at the bottom edge
	require.InDelta(t, chartPad, c.Points[2].Y, 1e-9)
	require.InDelta(t, lineHeight-chartPad, c.Points[1].Y, 1e-9)
	require.Greater(t, c.ZeroY, c.Points[0].Y)
	require.Less(t, c.ZeroY, c.Points[1].Y)
	require.True(t, strings.HasPrefix(c.Path, "M24.0,"))
	require.Equal(t, 2, strings.Count(c.Path, " L"))
	require.Equal(t, []string{"2024-01-31", "2024-03-31"}, []string{c.Ticks[0].Label, c.Ticks[1].Label})
}

func TestNewLineChart_SinglePointCentered(t *testing.T) {
	snap := &services.Snapshot{
		KPI:    models.KPISales,
		Series: []models.AggregateRow{{Key: "2024-01-01", KPISummary: models.KPISummary{Sales: decimal.NewFromInt(5)}}},
	}

	c := NewLineChart(snap)
	require.InDelta(t, chartWidth/2, c.Points[0].X, 1e-9)
	require.Len(t, c.Ticks, 1)
}

func TestNewBarChart_NegativeValues(t *testing.T) {
	snap := &services.Snapshot{
		KPI: models.KPIProfit,
		TopProducts: []models.AggregateRow{
			{Key: "Copier", KPISummary: models.KPISummary{Profit: decimal.NewFromInt(30)}},
			{Key: "A very long product name that will not fit in the label column", KPISummary: models.KPISummary{Profit: decimal.NewFromInt(-10)}},
		},
	}

	c := NewBarChart(snap)
	require.Equal(t, "Top 2 Products by Profit", c.Title)
	require.Len(t, c.Bars, 2)
	require.InDelta(t, 2*chartPad+2*barRow, c.Height, 1e-9)

	plotW := chartWidth - barLabelW - barValueW
	require.InDelta(t, barLabelW+plotW/4, c.ZeroX, 1e-9)

	pos, neg := c.Bars[0], c.Bars[1]
	require.InDelta(t, c.ZeroX, pos.X, 1e-9)
	require.InDelta(t, plotW*3/4, pos.Width, 1e-9)
	require.Equal(t, "positive", pos.Sign())
	require.InDelta(t, barLabelW, neg.X, 1e-9)
	require.InDelta(t, plotW/4, neg.Width, 1e-9)
	require.Equal(t, "negative", neg.Sign())

	require.Equal(t, maxLabelLen, utf8.RuneCountInString(neg.Label))
	require.True(t, strings.HasSuffix(neg.Label, "…"))
	require.Contains(t, neg.Tooltip, "that will not fit")
}
