package engine

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"kpi-dashboard/internal/errors"
	"kpi-dashboard/internal/models"
)

const bucketLayout = "2006-01-02"

// Summary holds every aggregate derived from one pass over a record set.
type Summary struct {
	Totals   models.KPISummary     `json:"totals"`
	Series   []models.AggregateRow `json:"series"`
	Products []models.AggregateRow `json:"products"`
}

type accumulator struct {
	sales    decimal.Decimal
	profit   decimal.Decimal
	quantity int64
	count    int
}

func (a *accumulator) add(r models.Record) {
	a.sales = a.sales.Add(r.Sales)
	a.profit = a.profit.Add(r.Profit)
	a.quantity += r.Quantity
	a.count++
}

func (a *accumulator) summary() models.KPISummary {
	return models.KPISummary{
		Sales:      a.sales,
		Quantity:   a.quantity,
		Profit:     a.profit,
		MarginRate: MarginRate(a.profit, a.sales),
		Records:    a.count,
	}
}

// grouping accumulates records per key while remembering first-seen key order.
type grouping[K comparable] struct {
	index map[K]int
	keys  []K
	accs  []accumulator
}

func newGrouping[K comparable]() *grouping[K] {
	return &grouping[K]{index: make(map[K]int)}
}

func (g *grouping[K]) add(key K, r models.Record) {
	i, ok := g.index[key]
	if !ok {
		i = len(g.keys)
		g.index[key] = i
		g.keys = append(g.keys, key)
		g.accs = append(g.accs, accumulator{})
	}
	g.accs[i].add(r)
}

// MarginRate is profit / sales, defined as zero when sales is zero.
func MarginRate(profit, sales decimal.Decimal) decimal.Decimal {
	if sales.IsZero() {
		return decimal.Zero
	}
	return profit.Div(sales)
}

// ScalarKPIs sums Sales, Quantity and Profit and derives MarginRate. An empty
// set yields all zeros.
func ScalarKPIs(records []models.Record) models.KPISummary {
	var acc accumulator
	for _, r := range records {
		acc.add(r)
	}
	return acc.summary()
}

// BucketKey truncates t to the end of its granularity bucket. Weeks end on Sunday.
func BucketKey(t time.Time, g models.Granularity) (time.Time, error) {
	d := models.Day(t)
	switch g {
	case models.Daily:
		return d, nil
	case models.Weekly:
		return d.AddDate(0, 0, (7-int(d.Weekday()))%7), nil
	case models.Monthly:
		return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, errors.InvalidArgumentf("unknown granularity %q", g)
	}
}

// TimeSeries groups records into granularity buckets. Empty buckets are not
// emitted and rows are ordered by ascending bucket.
func TimeSeries(records []models.Record, g models.Granularity) ([]models.AggregateRow, error) {
	if _, err := BucketKey(time.Time{}, g); err != nil {
		return nil, err
	}

	buckets := newGrouping[time.Time]()
	for _, r := range records {
		key, _ := BucketKey(r.OrderDate, g)
		buckets.add(key, r)
	}
	return seriesRows(buckets), nil
}

// EntityRollup produces one row per distinct non-empty value of groupKey, in
// first-seen order.
func EntityRollup(records []models.Record, groupKey models.Column) ([]models.AggregateRow, error) {
	if _, err := models.ParseColumn(string(groupKey)); err != nil {
		return nil, errors.InvalidArgument(err.Error())
	}

	entities := newGrouping[string]()
	for _, r := range records {
		if key := r.Value(groupKey); key != "" {
			entities.add(key, r)
		}
	}
	return entityRows(entities), nil
}

// Summarize computes totals, the time series and the per-product rollup in a
// single pass over records.
func Summarize(records []models.Record, g models.Granularity) (Summary, error) {
	if _, err := BucketKey(time.Time{}, g); err != nil {
		return Summary{}, err
	}

	var total accumulator
	buckets := newGrouping[time.Time]()
	products := newGrouping[string]()

	for _, r := range records {
		total.add(r)

		key, _ := BucketKey(r.OrderDate, g)
		buckets.add(key, r)

		if r.ProductName != "" {
			products.add(r.ProductName, r)
		}
	}

	return Summary{
		Totals:   total.summary(),
		Series:   seriesRows(buckets),
		Products: entityRows(products),
	}, nil
}

func seriesRows(g *grouping[time.Time]) []models.AggregateRow {
	rows := make([]models.AggregateRow, len(g.keys))
	for i, key := range g.keys {
		rows[i] = models.AggregateRow{
			Key:        key.Format(bucketLayout),
			Bucket:     key,
			KPISummary: g.accs[i].summary(),
		}
	}
	slices.SortFunc(rows, func(a, b models.AggregateRow) int {
		return a.Bucket.Compare(b.Bucket)
	})
	return rows
}

func entityRows(g *grouping[string]) []models.AggregateRow {
	rows := make([]models.AggregateRow, len(g.keys))
	for i, key := range g.keys {
		rows[i] = models.AggregateRow{
			Key:        key,
			KPISummary: g.accs[i].summary(),
		}
	}
	return rows
}
