package templates

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kpi-dashboard/internal/models"
	"kpi-dashboard/internal/services"
)

//go:generate templ generate

// Element ids patched by the SSE handlers.
const (
	IDFilters       = "filters"
	IDWarnings      = "warnings"
	IDKPICards      = "kpi-cards"
	IDSeriesChart   = "series-chart"
	IDProductsChart = "products-chart"
	IDSeries        = "series-content"
	IDProducts      = "products-content"
	IDRecords       = "records-content"
)

var filterLabels = map[models.Column]string{
	models.ColumnRegion:      "Region(s)",
	models.ColumnState:       "State(s)",
	models.ColumnCategory:    "Category(s)",
	models.ColumnSubCategory: "Sub-Category(s)",
}

// signal names bound to each cascading selector.
var filterSignals = map[models.Column]string{
	models.ColumnRegion:      "regions",
	models.ColumnState:       "states",
	models.ColumnCategory:    "categories",
	models.ColumnSubCategory: "subcategories",
}

// filterControl is one cascading selector with the options offered for the current selection.
type filterControl struct {
	Label   string
	Signal  string
	Options []string
}

func filterControls(snap *services.Snapshot) []filterControl {
	controls := make([]filterControl, 0, len(models.CascadeOrder))
	for _, col := range models.CascadeOrder {
		controls = append(controls, filterControl{
			Label:   filterLabels[col],
			Signal:  filterSignals[col],
			Options: snap.Options[col],
		})
	}
	return controls
}

func trend(change decimal.Decimal) string {
	switch {
	case change.IsPositive():
		return "up"
	case change.IsNegative():
		return "down"
	default:
		return "flat"
	}
}

func rowValue(row models.AggregateRow, k models.KPI) string {
	v, _ := row.Value(k)
	return FormatKPI(k, v)
}

func isoDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func seriesTitle(snap *services.Snapshot) string {
	return fmt.Sprintf("%s Over Time (%s)", snap.KPI.Label(), titleCase(string(snap.Granularity)))
}

func productsTitle(snap *services.Snapshot) string {
	return fmt.Sprintf("Top %d Products by %s", len(snap.TopProducts), snap.KPI.Label())
}

// visibleRecords caps the detail table at maxRows.
func visibleRecords(records []models.Record, maxRows int) []models.Record {
	if len(records) > maxRows {
		return records[:max(maxRows, 0)]
	}
	return records
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
