package engine

import (
	"github.com/shopspring/decimal"

	"kpi-dashboard/internal/errors"
	"kpi-dashboard/internal/models"
)

var hundred = decimal.NewFromInt(100)

// PercentChange is (current - previous) / |previous| in percent, or zero when
// previous is zero.
func PercentChange(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous.Abs()).Mul(hundred)
}

// Compare builds the period comparison for one KPI.
func Compare(kpi models.KPI, current, previous models.KPISummary) (models.PeriodComparison, error) {
	cur, ok := current.Value(kpi)
	if !ok {
		return models.PeriodComparison{}, errors.InvalidArgumentf("unknown kpi %q", kpi)
	}
	prev, _ := previous.Value(kpi)

	return models.PeriodComparison{
		KPI:           kpi,
		Current:       cur,
		Previous:      prev,
		PercentChange: PercentChange(cur, prev),
	}, nil
}

// CompareAll compares every KPI in models.KPIs order.
func CompareAll(current, previous models.KPISummary) []models.PeriodComparison {
	out := make([]models.PeriodComparison, 0, len(models.KPIs))
	for _, k := range models.KPIs {
		c, _ := Compare(k, current, previous)
		out = append(out, c)
	}
	return out
}
