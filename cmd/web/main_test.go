package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"kpi-dashboard/internal/config"
	"kpi-dashboard/internal/middleware"
	"kpi-dashboard/internal/models"
	"kpi-dashboard/internal/server"
	"kpi-dashboard/internal/services"
	"kpi-dashboard/internal/store"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := decimal.RequireFromString
	records := []models.Record{
		{OrderDate: time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), Region: "West", State: "California", Category: "Technology", SubCategory: "Phones", ProductName: "Phone", Sales: d("999.99"), Quantity: 1, Profit: d("120")},
		{OrderDate: time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC), Region: "East", State: "New York", Category: "Office Supplies", SubCategory: "Paper", ProductName: "Paper", Sales: d("59.98"), Quantity: 2, Profit: d("10")},
		{OrderDate: time.Date(2023, 3, 5, 0, 0, 0, 0, time.UTC), Region: "Central", State: "Texas", Category: "Furniture", SubCategory: "Chairs", ProductName: "Chair", Sales: d("79.99"), Quantity: 1, Profit: d("-5")},
	}
	cfg := config.DashboardConfig{TopN: 10, MaxTableRows: 50}
	dashboard := services.NewDashboard(store.New(records), logger)

	srv := server.NewServer(dashboard, cfg, logger, &server.TemplateHandlers{Dashboard: dashboardPage(cfg)})
	return middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.SecurityHeaders(),
	)(srv)
}

func TestServer_Routes(t *testing.T) {
	handler := newTestServer(t)

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/health", http.StatusOK, "application/json"},
		{"/admin/stats", http.StatusOK, "application/json"},
		{"/api/options", http.StatusOK, "application/json"},
		{"/api/dashboard", http.StatusOK, "application/json"},
		{"/api/records", http.StatusOK, "application/json"},
		{"/api/timeseries?granularity=monthly", http.StatusOK, "application/json"},
		{"/api/top-products?kpi=profit", http.StatusOK, "application/json"},
		{"/api/kpis", http.StatusOK, "application/json"},
		{"/sse/dashboard", http.StatusOK, "text/event-stream"},
		{"/api/kpis?granularity=yearly", http.StatusBadRequest, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, tt.expectedStatus, w.Code)
			require.Contains(t, w.Header().Get("Content-Type"), tt.contentType)
			require.NotEmpty(t, w.Header().Get("X-Request-ID"))

			if tt.contentType == "application/json" {
				var result map[string]any
				require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
				require.Contains(t, result, "success")
			}
		})
	}
}

func TestServer_UnknownRoutes(t *testing.T) {
	handler := newTestServer(t)

	for _, path := range []string{"/nonexistent", "/api/country-revenue"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, w.Code, path)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/dashboard", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_ErrorCarriesRequestID(t *testing.T) {
	handler := newTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/api/dashboard?from=not-a-date", nil)
	r.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	var body struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, "INVALID_ARGUMENT", body.Error.Code)
	require.Equal(t, "req-42", body.Error.RequestID)
}

func TestDashboardPage(t *testing.T) {
	handler := newTestServer(t)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body := w.Body.String()
	require.True(t, strings.HasPrefix(body, "<!doctype html>"))
	require.Contains(t, body, "datastar")
	require.Contains(t, body, `data-init="@get('/sse/dashboard')"`)
	require.Equal(t, pageCache, w.Header().Get("Cache-Control"))
	require.Contains(t, w.Header().Get("Content-Security-Policy"), "cdn.jsdelivr.net")
}
