package templates

import (
	"encoding/json"

	"kpi-dashboard/internal/models"
)

const defaultTitle = "SuperStore KPI Dashboard"

var granularities = []models.Granularity{models.Daily, models.Weekly, models.Monthly}

// PageData seeds the dashboard's initial signals.
type PageData struct {
	Title string
	TopN  int
}

func (p PageData) title() string {
	if p.Title == "" {
		return defaultTitle
	}
	return p.Title
}

// initialSignals leaves every dimension unconstrained (null) until the user picks values.
func initialSignals(p PageData) string {
	signals := map[string]any{
		"regions":       nil,
		"states":        nil,
		"categories":    nil,
		"subcategories": nil,
		"from":          "",
		"to":            "",
		"granularity":   string(models.Daily),
		"kpi":           string(models.KPISales),
		"top":           p.TopN,
	}
	data, _ := json.Marshal(signals)
	return string(data)
}
