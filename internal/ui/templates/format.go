package templates

import (
	"strings"

	"github.com/shopspring/decimal"

	"kpi-dashboard/internal/models"
)

var hundred = decimal.NewFromInt(100)

// FormatMoney renders d as $1,234.56, keeping the sign in front.
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + "$" + groupThousands(whole) + "." + frac
}

func FormatInt(n int64) string {
	if n < 0 {
		return "-" + groupThousands(decimal.NewFromInt(-n).String())
	}
	return groupThousands(decimal.NewFromInt(n).String())
}

// FormatRate renders a ratio such as 0.0667 as 6.67%.
func FormatRate(d decimal.Decimal) string {
	return d.Mul(hundred).StringFixed(2) + "%"
}

// FormatChange renders a percent change with an explicit sign.
func FormatChange(d decimal.Decimal) string {
	s := d.StringFixed(1) + "%"
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

// FormatKPI renders a KPI value the way its card displays it.
func FormatKPI(k models.KPI, d decimal.Decimal) string {
	switch k {
	case models.KPISales, models.KPIProfit:
		return FormatMoney(d)
	case models.KPIQuantity:
		return FormatInt(d.IntPart())
	case models.KPIMarginRate:
		return FormatRate(d)
	default:
		return d.String()
	}
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
