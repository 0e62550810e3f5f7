package store

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"kpi-dashboard/internal/models"
)

// Store holds the immutable dataset loaded at process start.
type Store struct {
	records   []models.Record
	source    string
	loadedAt  time.Time
	fromCache bool
}

// New wraps an in-memory record set. The slice is copied so later changes by
// the caller do not leak into the store.
func New(records []models.Record) *Store {
	return &Store{
		records:  slices.Clone(records),
		source:   "memory",
		loadedAt: time.Now(),
	}
}

// Records returns the full dataset. The returned slice is shared and must be treated as read-only.
func (s *Store) Records() []models.Record {
	return s.records
}

func (s *Store) Len() int {
	return len(s.records)
}

// DistinctValues returns the sorted, deduplicated non-empty values of a column.
func (s *Store) DistinctValues(c models.Column) []string {
	return DistinctValues(s.records, c)
}

// DistinctValues returns the sorted, deduplicated non-empty values of column c across records.
func DistinctValues(records []models.Record, c models.Column) []string {
	values := lo.Compact(lo.Uniq(lo.Map(records, func(r models.Record, _ int) string {
		return r.Value(c)
	})))
	slices.Sort(values)
	return values
}

func (s *Store) Stats() map[string]any {
	stats := map[string]any{
		"record_count": len(s.records),
		"source":       s.source,
		"loaded_at":    s.loadedAt,
		"from_cache":   s.fromCache,
	}
	for _, c := range []models.Column{models.ColumnRegion, models.ColumnState, models.ColumnCategory, models.ColumnSubCategory, models.ColumnProductName} {
		stats[string(c)+"_count"] = len(DistinctValues(s.records, c))
	}
	return stats
}
