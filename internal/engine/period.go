package engine

import (
	"kpi-dashboard/internal/models"
)

// PreviousPeriod returns the range of identical length that ends the day
// before rng.From. The two ranges never overlap.
//
// For an inverted rng the same arithmetic yields an inverted result, which
// matches no record.
func PreviousPeriod(rng models.DateRange) models.DateRange {
	from, to := models.Day(rng.From), models.Day(rng.To)
	span := int(to.Sub(from).Hours() / 24)

	previousTo := from.AddDate(0, 0, -1)
	previousFrom := previousTo.AddDate(0, 0, -span)
	return models.DateRange{From: previousFrom, To: previousTo}
}
