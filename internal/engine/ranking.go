package engine

import (
	"slices"

	"kpi-dashboard/internal/errors"
	"kpi-dashboard/internal/models"
)

// TopN returns the n rows with the highest value of kpi, in descending order.
// Ties keep their input order. n == 0 yields an empty result; n < 0 is rejected.
func TopN(rows []models.AggregateRow, kpi models.KPI, n int) ([]models.AggregateRow, error) {
	if n < 0 {
		return nil, errors.InvalidArgumentf("top n must not be negative, got %d", n)
	}
	kpi, err := models.ParseKPI(string(kpi))
	if err != nil {
		return nil, errors.InvalidArgument(err.Error())
	}

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b models.AggregateRow) int {
		av, _ := a.Value(kpi)
		bv, _ := b.Value(kpi)
		return bv.Cmp(av)
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []models.AggregateRow{}
	}
	return sorted, nil
}
