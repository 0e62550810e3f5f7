package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"kpi-dashboard/internal/errors"
	"kpi-dashboard/internal/models"
	"kpi-dashboard/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestDashboard(t *testing.T) *Dashboard {
	t.Helper()
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	records := []models.Record{
		{OrderDate: day(2024, 1, 25), Region: "West", State: "California", Category: "Furniture", SubCategory: "Chairs", ProductName: "Chair", Sales: d("40"), Quantity: 1, Profit: d("4")},
		{OrderDate: day(2024, 2, 1), Region: "West", State: "California", Category: "Furniture", SubCategory: "Chairs", ProductName: "Chair", Sales: d("100"), Quantity: 2, Profit: d("20")},
		{OrderDate: day(2024, 2, 5), Region: "East", State: "New York", Category: "Technology", SubCategory: "Phones", ProductName: "Phone", Sales: d("50"), Quantity: 1, Profit: d("-10")},
		{OrderDate: day(2024, 2, 10), Region: "West", State: "Oregon", Category: "Technology", SubCategory: "Phones", ProductName: "Phone", Sales: d("30"), Quantity: 3, Profit: d("6")},
	}
	return NewDashboard(store.New(records), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func defaultQuery() Query {
	return Query{Granularity: models.Daily, KPI: models.KPISales, TopN: 10}
}

func TestDashboard_Build_Defaults(t *testing.T) {
	dash := newTestDashboard(t)

	snap, err := dash.Build(context.Background(), defaultQuery())
	require.NoError(t, err)

	require.Equal(t, models.DateRange{From: day(2024, 1, 25), To: day(2024, 2, 10)}, snap.Range)
	require.Equal(t, snap.Range, snap.Bounds)
	require.Len(t, snap.Records, 4)
	require.True(t, decimal.NewFromInt(220).Equal(snap.Current.Sales))
	require.Equal(t, int64(7), snap.Current.Quantity)
	require.Len(t, snap.Series, 4)
	require.Empty(t, snap.Warnings)

	require.Equal(t, []string{"East", "West"}, snap.Options[models.ColumnRegion])
	require.Equal(t, "Chair", snap.TopProducts[0].Key)
}

func TestDashboard_Build_PreviousPeriod(t *testing.T) {
	dash := newTestDashboard(t)

	q := defaultQuery()
	q.Selection.Range = models.NewDateRange(day(2024, 2, 1), day(2024, 2, 10))

	snap, err := dash.Build(context.Background(), q)
	require.NoError(t, err)

	require.Equal(t, models.DateRange{From: day(2024, 1, 22), To: day(2024, 1, 31)}, snap.PreviousRange)
	require.True(t, decimal.NewFromInt(180).Equal(snap.Current.Sales))
	require.True(t, decimal.NewFromInt(40).Equal(snap.Previous.Sales))

	require.Len(t, snap.Comparisons, 4)
	sales := snap.Comparisons[0]
	require.Equal(t, models.KPISales, sales.KPI)
	require.True(t, decimal.NewFromInt(350).Equal(sales.PercentChange))
}

func TestDashboard_Build_CascadingSelection(t *testing.T) {
	dash := newTestDashboard(t)

	q := defaultQuery()
	q.Selection.Regions = models.Choice{"West"}
	q.Selection.Categories = models.Choice{"Technology"}

	snap, err := dash.Build(context.Background(), q)
	require.NoError(t, err)

	require.Equal(t, []string{"California", "Oregon"}, snap.Options[models.ColumnState])
	require.Len(t, snap.Records, 1)
	require.Equal(t, "Oregon", snap.Records[0].State)
	// Bounds follow the filtered set.
	require.Equal(t, models.DateRange{From: day(2024, 2, 10), To: day(2024, 2, 10)}, snap.Bounds)
}

func TestDashboard_Build_EmptySelectionWarnsNoData(t *testing.T) {
	dash := newTestDashboard(t)

	q := defaultQuery()
	q.Selection.States = models.None()

	snap, err := dash.Build(context.Background(), q)
	require.NoError(t, err)

	require.False(t, snap.HasData())
	require.True(t, snap.Current.Sales.IsZero())
	require.True(t, snap.Current.MarginRate.IsZero())
	require.Empty(t, snap.Series)
	require.Empty(t, snap.TopProducts)
	require.Len(t, snap.Warnings, 1)
	require.Equal(t, models.WarningNoData, snap.Warnings[0].Code)
	// Bounds fall back to the whole dataset.
	require.Equal(t, day(2024, 1, 25), snap.Bounds.From)
}

func TestDashboard_Build_InvertedRange(t *testing.T) {
	dash := newTestDashboard(t)

	q := defaultQuery()
	q.Selection.Range = models.NewDateRange(day(2024, 2, 10), day(2024, 2, 1))

	snap, err := dash.Build(context.Background(), q)
	require.NoError(t, err)

	codes := make([]string, len(snap.Warnings))
	for i, w := range snap.Warnings {
		codes[i] = w.Code
	}
	require.Equal(t, []string{models.WarningInvertedRange, models.WarningNoData}, codes)
	require.Empty(t, snap.Records)
}

func TestDashboard_Build_InvalidArguments(t *testing.T) {
	dash := newTestDashboard(t)

	tests := []struct {
		name   string
		mutate func(*Query)
	}{
		{"negative top n", func(q *Query) { q.TopN = -1 }},
		{"unknown kpi", func(q *Query) { q.KPI = "revenue" }},
		{"unknown granularity", func(q *Query) { q.Granularity = "hourly" }},
		{"empty granularity", func(q *Query) { q.Granularity = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := defaultQuery()
			tt.mutate(&q)
			_, err := dash.Build(context.Background(), q)
			require.True(t, errors.HasCode(err, errors.CodeInvalidArg), "got %v", err)
		})
	}
}

func TestDashboard_Build_NormalizesEnums(t *testing.T) {
	dash := newTestDashboard(t)

	snap, err := dash.Build(context.Background(), Query{Granularity: "Monthly", KPI: "Margin Rate", TopN: 1})
	require.NoError(t, err)
	require.Equal(t, models.Monthly, snap.Granularity)
	require.Equal(t, models.KPIMarginRate, snap.KPI)
	require.Len(t, snap.Series, 2)
	require.Len(t, snap.TopProducts, 1)
	require.Equal(t, "Chair", snap.TopProducts[0].Key)
}

func TestDashboard_Options(t *testing.T) {
	dash := newTestDashboard(t)

	opts, bounds := dash.Options(models.FilterSelection{Regions: models.Choice{"East"}})
	require.Equal(t, []string{"New York"}, opts[models.ColumnState])
	require.Equal(t, models.DateRange{From: day(2024, 2, 5), To: day(2024, 2, 5)}, bounds)
}

func TestDashboard_ConcurrentBuilds(t *testing.T) {
	dash := newTestDashboard(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := dash.Build(context.Background(), defaultQuery()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(10), dash.Stats()["builds"])
}

func BenchmarkDashboard_Build(b *testing.B) {
	records := make([]models.Record, 10000)
	regions := []string{"West", "East", "Central", "South"}
	for i := range records {
		records[i] = models.Record{
			OrderDate:   day(2023, 1, 1).AddDate(0, 0, i%365),
			Region:      regions[i%len(regions)],
			State:       "State" + string(rune('A'+i%20)),
			Category:    "Category" + string(rune('A'+i%3)),
			SubCategory: "Sub" + string(rune('A'+i%12)),
			ProductName: "Product" + string(rune('A'+i%50)),
			Sales:       decimal.NewFromInt(int64(i % 500)),
			Quantity:    int64(i % 7),
			Profit:      decimal.NewFromInt(int64(i%100 - 30)),
		}
	}
	dash := NewDashboard(store.New(records), slog.New(slog.NewTextHandler(io.Discard, nil)))

	b.ResetTimer()
	for b.Loop() {
		_, _ = dash.Build(context.Background(), Query{Granularity: models.Weekly, KPI: models.KPIProfit, TopN: 10})
	}
}
