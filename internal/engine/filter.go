package engine

import (
	"github.com/samber/lo"

	"kpi-dashboard/internal/models"
	"kpi-dashboard/internal/store"
)

// CascadeResult is the outcome of narrowing a record set dimension by dimension.
type CascadeResult struct {
	Records []models.Record
	// Options holds, per dimension, the distinct values offered after every
	// earlier dimension in models.CascadeOrder has been applied.
	Options map[models.Column][]string
}

// Cascade applies the categorical part of sel in models.CascadeOrder. Each
// dimension's offered options are derived from the set narrowed so far, so
// narrowing Region can only shrink the States offered.
//
// An unconstrained Choice (nil) skips its predicate. A constrained but empty
// Choice yields an empty result.
func Cascade(records []models.Record, sel models.FilterSelection) CascadeResult {
	current := records
	options := make(map[models.Column][]string, len(models.CascadeOrder))

	for _, col := range models.CascadeOrder {
		options[col] = store.DistinctValues(current, col)

		choice := sel.Choice(col)
		if !choice.Constrained() {
			continue
		}
		current = filterByChoice(current, col, choice)
	}

	return CascadeResult{Records: current, Options: options}
}

// Apply narrows records by every categorical choice and then by the date
// range. A zero date range leaves dates unconstrained. Output preserves input
// order and never duplicates a record.
func Apply(records []models.Record, sel models.FilterSelection) []models.Record {
	filtered := Cascade(records, sel).Records
	if sel.Range.IsZero() {
		return filtered
	}
	return FilterByDate(filtered, sel.Range)
}

// FilterByDate keeps records whose OrderDate falls within rng, inclusive on
// both ends. An inverted range keeps nothing.
func FilterByDate(records []models.Record, rng models.DateRange) []models.Record {
	return lo.Filter(records, func(r models.Record, _ int) bool {
		return rng.Contains(r.OrderDate)
	})
}

// DateBounds returns the earliest and latest OrderDate; ok is false for an empty set.
func DateBounds(records []models.Record) (rng models.DateRange, ok bool) {
	if len(records) == 0 {
		return models.DateRange{}, false
	}

	earliest, latest := records[0].OrderDate, records[0].OrderDate
	for _, r := range records[1:] {
		if r.OrderDate.Before(earliest) {
			earliest = r.OrderDate
		}
		if r.OrderDate.After(latest) {
			latest = r.OrderDate
		}
	}
	return models.NewDateRange(earliest, latest), true
}

func filterByChoice(records []models.Record, col models.Column, choice models.Choice) []models.Record {
	if len(choice) == 0 {
		return []models.Record{}
	}

	allowed := lo.SliceToMap(choice, func(v string) (string, struct{}) {
		return v, struct{}{}
	})
	return lo.Filter(records, func(r models.Record, _ int) bool {
		_, ok := allowed[r.Value(col)]
		return ok
	})
}
