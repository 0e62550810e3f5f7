package services

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"kpi-dashboard/internal/engine"
	"kpi-dashboard/internal/errors"
	"kpi-dashboard/internal/models"
	"kpi-dashboard/internal/observability"
	"kpi-dashboard/internal/store"
)

// Query is one dashboard interaction: the user's selections plus display settings.
type Query struct {
	Selection   models.FilterSelection
	Granularity models.Granularity
	KPI         models.KPI
	TopN        int
}

// Snapshot is everything the presentation layer needs after one recompute.
type Snapshot struct {
	Options       map[models.Column][]string `json:"options"`
	Bounds        models.DateRange           `json:"bounds"`
	Range         models.DateRange           `json:"range"`
	PreviousRange models.DateRange           `json:"previous_range"`
	Granularity   models.Granularity         `json:"granularity"`
	KPI           models.KPI                 `json:"kpi"`
	Current       models.KPISummary          `json:"current"`
	Previous      models.KPISummary          `json:"previous"`
	Comparisons   []models.PeriodComparison  `json:"comparisons"`
	Series        []models.AggregateRow      `json:"series"`
	TopProducts   []models.AggregateRow      `json:"top_products"`
	Warnings      []models.Warning           `json:"warnings"`
	// Records is the filtered set for the current period, in dataset order.
	Records []models.Record `json:"-"`
}

// HasData reports whether the current period matched any record.
func (s *Snapshot) HasData() bool {
	return len(s.Records) > 0
}

// Dashboard recomputes snapshots over one immutable store and is safe for concurrent use.
type Dashboard struct {
	store  *store.Store
	logger *slog.Logger
	builds atomic.Int64
}

// NewDashboard serves s, falling back to the default logger when logger is nil.
func NewDashboard(s *store.Store, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		store:  s,
		logger: logger,
	}
}

// Options returns the cascaded selector choices and the date bounds for sel
// without aggregating anything.
func (d *Dashboard) Options(sel models.FilterSelection) (map[models.Column][]string, models.DateRange) {
	cascade := engine.Cascade(d.store.Records(), sel)
	return cascade.Options, d.bounds(cascade.Records)
}

// Build runs one full recompute for q. Invalid enums or a negative top N are
// rejected before any filtering happens.
func (d *Dashboard) Build(ctx context.Context, q Query) (*Snapshot, error) {
	q, err := normalize(q)
	if err != nil {
		return nil, err
	}

	_, span := observability.StartSpan(ctx, "dashboard.build")
	defer span.Finish()
	span.SetTag("granularity", string(q.Granularity))
	span.SetTag("kpi", string(q.KPI))

	start := time.Now()
	all := d.store.Records()

	cascade := engine.Cascade(all, q.Selection)
	bounds := d.bounds(cascade.Records)
	rng := resolveRange(q.Selection.Range, bounds)
	previousRange := engine.PreviousPeriod(rng)

	current := engine.FilterByDate(cascade.Records, rng)
	previous := engine.FilterByDate(cascade.Records, previousRange)

	summary, err := engine.Summarize(current, q.Granularity)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	previousTotals := engine.ScalarKPIs(previous)

	top, err := engine.TopN(summary.Products, q.KPI, q.TopN)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	snap := &Snapshot{
		Options:       cascade.Options,
		Bounds:        bounds,
		Range:         rng,
		PreviousRange: previousRange,
		Granularity:   q.Granularity,
		KPI:           q.KPI,
		Current:       summary.Totals,
		Previous:      previousTotals,
		Comparisons:   engine.CompareAll(summary.Totals, previousTotals),
		Series:        summary.Series,
		TopProducts:   top,
		Warnings:      []models.Warning{},
		Records:       current,
	}

	if rng.Inverted() {
		snap.Warnings = append(snap.Warnings, models.Warning{
			Code:    models.WarningInvertedRange,
			Message: "From Date must be earlier than To Date.",
		})
	}
	if len(current) == 0 {
		snap.Warnings = append(snap.Warnings, models.Warning{
			Code:    models.WarningNoData,
			Message: "No data available for the selected filters and date range.",
		})
	}

	d.builds.Add(1)
	span.SetTag("records", strconv.Itoa(len(current)))
	observability.Logger(ctx, d.logger).Debug("dashboard built",
		"records", len(current),
		"previous_records", len(previous),
		"buckets", len(summary.Series),
		"warnings", len(snap.Warnings),
		"duration", time.Since(start),
	)

	return snap, nil
}

// bounds is the date span of the filtered set, falling back to the whole
// dataset when the filters leave nothing.
func (d *Dashboard) bounds(filtered []models.Record) models.DateRange {
	if rng, ok := engine.DateBounds(filtered); ok {
		return rng
	}
	rng, _ := engine.DateBounds(d.store.Records())
	return rng
}

func resolveRange(requested, bounds models.DateRange) models.DateRange {
	rng := requested
	if rng.From.IsZero() {
		rng.From = bounds.From
	}
	if rng.To.IsZero() {
		rng.To = bounds.To
	}
	return models.NewDateRange(rng.From, rng.To)
}

func normalize(q Query) (Query, error) {
	g, err := models.ParseGranularity(string(q.Granularity))
	if err != nil {
		return q, errors.InvalidArgument(err.Error())
	}
	k, err := models.ParseKPI(string(q.KPI))
	if err != nil {
		return q, errors.InvalidArgument(err.Error())
	}
	if q.TopN < 0 {
		return q, errors.InvalidArgumentf("top n must not be negative, got %d", q.TopN)
	}
	q.Granularity, q.KPI = g, k
	return q, nil
}

func (d *Dashboard) Stats() map[string]any {
	stats := d.store.Stats()
	stats["builds"] = d.builds.Load()
	return stats
}
