package handlers

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"kpi-dashboard/internal/models"
)

func sseRequest(t *testing.T, signals map[string]any) *http.Request {
	t.Helper()
	target := "/sse/dashboard"
	if signals != nil {
		raw, err := json.Marshal(signals)
		require.NoError(t, err)
		target += "?datastar=" + url.QueryEscape(string(raw))
	}
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func newTestSSE() *SSEHandlers {
	return NewSSEHandlers(createTestDashboard(), testDefaults(), testLogger())
}

func TestSSEHandlers_HandleDashboard(t *testing.T) {
	h := newTestSSE()

	w := httptest.NewRecorder()
	h.HandleDashboard(w, sseRequest(t, map[string]any{
		"regions":     nil,
		"granularity": "monthly",
		"kpi":         "sales",
		"top":         5,
	}))

	require.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	body := w.Body.String()
	require.Contains(t, body, "event:")
	require.Contains(t, body, "data:")

	for _, id := range []string{"filters", "warnings", "kpi-cards", "series-chart", "products-chart", "series-content", "products-content", "records-content"} {
		require.Contains(t, body, `id="`+id+`"`, id)
	}
	require.Contains(t, body, "<svg")
	require.Contains(t, body, `<path class="series"`)
	require.Contains(t, body, "<rect")
	require.Contains(t, body, "2024-01-31")
	require.Contains(t, body, "Showing 2 of 4 records")
}

func TestSSEHandlers_HandleDashboard_NoSignals(t *testing.T) {
	h := newTestSSE()

	w := httptest.NewRecorder()
	h.HandleDashboard(w, sseRequest(t, nil))

	body := w.Body.String()
	require.Contains(t, body, `id="kpi-cards"`)
	require.Contains(t, body, `"from":"2024-01-25"`)
	require.Contains(t, body, `"to":"2024-02-10"`)
}

func TestSSEHandlers_HandleDashboard_EmptySelection(t *testing.T) {
	h := newTestSSE()

	w := httptest.NewRecorder()
	h.HandleDashboard(w, sseRequest(t, map[string]any{"categories": []string{}}))

	body := w.Body.String()
	require.Contains(t, body, models.WarningNoData)
	require.Contains(t, body, "No data available")
}

func TestSSEHandlers_HandleDashboard_InvalidSignals(t *testing.T) {
	h := newTestSSE()

	tests := []struct {
		name    string
		signals map[string]any
	}{
		{"bad granularity", map[string]any{"granularity": "hourly"}},
		{"bad kpi", map[string]any{"kpi": "revenue"}},
		{"bad date", map[string]any{"from": "yesterday"}},
		{"negative top", map[string]any{"top": -3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandleDashboard(w, sseRequest(t, tt.signals))

			body := w.Body.String()
			require.Contains(t, body, `id="warnings"`)
			require.Contains(t, body, "INVALID_ARGUMENT")
			require.NotContains(t, body, `id="kpi-cards"`)
		})
	}
}

func TestSSEHandlers_MalformedSignals(t *testing.T) {
	h := newTestSSE()

	w := httptest.NewRecorder()
	h.HandleDashboard(w, httptest.NewRequest(http.MethodGet, "/sse/dashboard?datastar=%7Bnot-json", nil))
	require.Contains(t, w.Body.String(), "malformed signals")
}

func TestSSEHandlers_HandleDashboard_SendsOnlyRangeSignals(t *testing.T) {
	h := newTestSSE()

	w := httptest.NewRecorder()
	h.HandleDashboard(w, sseRequest(t, map[string]any{"kpi": "margin_rate"}))

	body := w.Body.String()
	require.Contains(t, body, `"from":"2024-01-25"`)
	require.NotContains(t, body, "seriesData")
	require.NotContains(t, body, "productsData")
}

// brokenStream accepts headers and flushes but fails every body write.
type brokenStream struct {
	*httptest.ResponseRecorder
}

func (brokenStream) Write([]byte) (int, error) {
	return 0, stderrors.New("connection reset")
}

func TestSSEHandlers_PatchErrorLogsWriteFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := NewSSEHandlers(createTestDashboard(), testDefaults(), logger)

	w := brokenStream{httptest.NewRecorder()}
	h.HandleDashboard(w, sseRequest(t, map[string]any{"granularity": "hourly"}))

	require.Contains(t, logs.String(), "patch warnings")
	require.Contains(t, logs.String(), "connection reset")
}
