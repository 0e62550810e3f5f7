package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"kpi-dashboard/internal/config"
	"kpi-dashboard/internal/errors"
	"kpi-dashboard/internal/models"
	"kpi-dashboard/internal/observability"
	"kpi-dashboard/internal/services"
)

const noStore = "no-store"

type APIHandlers struct {
	dashboard *services.Dashboard
	defaults  config.DashboardConfig
	logger    *slog.Logger
}

func NewAPIHandlers(dashboard *services.Dashboard, defaults config.DashboardConfig, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		dashboard: dashboard,
		defaults:  defaults,
		logger:    logger,
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

// build parses the request and runs one recompute.
func (h *APIHandlers) build(w http.ResponseWriter, r *http.Request) (dashboardRequest, *services.Snapshot, bool) {
	req, q, err := requestQuery(r, h.defaults)
	if err != nil {
		h.fail(w, r, err)
		return req, nil, false
	}
	snap, err := h.dashboard.Build(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return req, nil, false
	}
	return req, snap, true
}

func write(w http.ResponseWriter, data any) {
	errors.WriteSuccessWithHeaders(w, data, map[string]string{
		"Cache-Control": noStore,
	})
}

type optionsResponse struct {
	Options map[models.Column][]string `json:"options"`
	Bounds  models.DateRange           `json:"bounds"`
}

func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	_, q, err := requestQuery(r, h.defaults)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	options, bounds := h.dashboard.Options(q.Selection)
	write(w, optionsResponse{Options: options, Bounds: bounds})
}

type dashboardResponse struct {
	*services.Snapshot
	RecordCount int `json:"record_count"`
}

func (h *APIHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := h.build(w, r)
	if !ok {
		return
	}
	write(w, dashboardResponse{Snapshot: snap, RecordCount: len(snap.Records)})
}

type recordsResponse struct {
	Total   int             `json:"total"`
	Offset  int             `json:"offset"`
	Limit   int             `json:"limit"`
	Records []models.Record `json:"records"`
}

func (h *APIHandlers) HandleRecords(w http.ResponseWriter, r *http.Request) {
	req, snap, ok := h.build(w, r)
	if !ok {
		return
	}
	records := page(snap.Records, req.Offset, req.Limit, h.defaults.MaxTableRows)
	write(w, recordsResponse{
		Total:   len(snap.Records),
		Offset:  req.Offset,
		Limit:   len(records),
		Records: records,
	})
}

type timeSeriesResponse struct {
	Granularity models.Granularity    `json:"granularity"`
	KPI         models.KPI            `json:"kpi"`
	Range       models.DateRange      `json:"range"`
	Series      []models.AggregateRow `json:"series"`
}

func (h *APIHandlers) HandleTimeSeries(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := h.build(w, r)
	if !ok {
		return
	}
	write(w, timeSeriesResponse{
		Granularity: snap.Granularity,
		KPI:         snap.KPI,
		Range:       snap.Range,
		Series:      snap.Series,
	})
}

type topProductsResponse struct {
	KPI      models.KPI            `json:"kpi"`
	Products []models.AggregateRow `json:"products"`
}

func (h *APIHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := h.build(w, r)
	if !ok {
		return
	}
	write(w, topProductsResponse{KPI: snap.KPI, Products: snap.TopProducts})
}

type kpisResponse struct {
	Range         models.DateRange          `json:"range"`
	PreviousRange models.DateRange          `json:"previous_range"`
	Current       models.KPISummary         `json:"current"`
	Previous      models.KPISummary         `json:"previous"`
	Comparisons   []models.PeriodComparison `json:"comparisons"`
	Warnings      []models.Warning          `json:"warnings"`
}

func (h *APIHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	_, snap, ok := h.build(w, r)
	if !ok {
		return
	}
	write(w, kpisResponse{
		Range:         snap.Range,
		PreviousRange: snap.PreviousRange,
		Current:       snap.Current,
		Previous:      snap.Previous,
		Comparisons:   snap.Comparisons,
		Warnings:      snap.Warnings,
	})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.dashboard.Stats())
}
