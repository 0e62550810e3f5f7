package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case Daily, Weekly, Monthly:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

type KPI string

const (
	KPISales      KPI = "sales"
	KPIQuantity   KPI = "quantity"
	KPIProfit     KPI = "profit"
	KPIMarginRate KPI = "margin_rate"
)

// KPIs lists every KPI in display order.
var KPIs = []KPI{KPISales, KPIQuantity, KPIProfit, KPIMarginRate}

func ParseKPI(s string) (KPI, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	k := KPI(normalized)
	switch k {
	case KPISales, KPIQuantity, KPIProfit, KPIMarginRate:
		return k, nil
	}
	return "", fmt.Errorf("unknown kpi %q", s)
}

func (k KPI) Label() string {
	switch k {
	case KPISales:
		return "Sales"
	case KPIQuantity:
		return "Quantity Sold"
	case KPIProfit:
		return "Profit"
	case KPIMarginRate:
		return "Margin Rate"
	default:
		return string(k)
	}
}

// KPISummary holds the scalar totals of a record set.
type KPISummary struct {
	Sales      decimal.Decimal `json:"sales"`
	Quantity   int64           `json:"quantity"`
	Profit     decimal.Decimal `json:"profit"`
	MarginRate decimal.Decimal `json:"margin_rate"`
	Records    int             `json:"records"`
}

// Value returns the summary's value for k; ok is false for an unknown KPI.
func (s KPISummary) Value(k KPI) (decimal.Decimal, bool) {
	switch k {
	case KPISales:
		return s.Sales, true
	case KPIQuantity:
		return decimal.NewFromInt(s.Quantity), true
	case KPIProfit:
		return s.Profit, true
	case KPIMarginRate:
		return s.MarginRate, true
	default:
		return decimal.Zero, false
	}
}

// AggregateRow is a time bucket or an entity with summed metrics.
type AggregateRow struct {
	Key    string    `json:"key"`
	Bucket time.Time `json:"bucket,omitzero"`
	KPISummary
}

// PeriodComparison compares one KPI between the current and previous period.
// PercentChange is expressed in percent and is zero when Previous is zero.
type PeriodComparison struct {
	KPI           KPI             `json:"kpi"`
	Current       decimal.Decimal `json:"current"`
	Previous      decimal.Decimal `json:"previous"`
	PercentChange decimal.Decimal `json:"percent_change"`
}

// Warning is a recoverable condition surfaced next to a result.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	WarningInvertedRange = "INVERTED_DATE_RANGE"
	WarningNoData        = "NO_DATA"
)
