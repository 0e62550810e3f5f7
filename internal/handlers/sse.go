package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"kpi-dashboard/internal/config"
	"kpi-dashboard/internal/errors"
	"kpi-dashboard/internal/models"
	"kpi-dashboard/internal/services"
	"kpi-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	dashboard *services.Dashboard
	defaults  config.DashboardConfig
	logger    *slog.Logger
}

func NewSSEHandlers(dashboard *services.Dashboard, defaults config.DashboardConfig, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		dashboard: dashboard,
		defaults:  defaults,
		logger:    logger,
	}
}

func renderString(r *http.Request, c templ.Component) (string, error) {
	var b strings.Builder
	if err := c.Render(r.Context(), &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// HandleDashboard reads the page signals, recomputes the dashboard and patches
// every section in one response.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	var req dashboardRequest
	if err := datastar.ReadSignals(r, &req); err != nil {
		h.logger.Warn("read signals", "error", err)
		h.patchError(w, r, errors.InvalidArgument("malformed signals"))
		return
	}

	q, err := req.query(h.defaults)
	if err != nil {
		h.patchError(w, r, err)
		return
	}
	snap, err := h.dashboard.Build(r.Context(), q)
	if err != nil {
		h.patchError(w, r, err)
		return
	}

	sse := datastar.NewSSE(w, r)

	fragments := []templ.Component{
		templates.Filters(snap),
		templates.Warnings(snap),
		templates.KPICards(snap),
		templates.SeriesChart(snap),
		templates.ProductsChart(snap),
		templates.SeriesTable(snap),
		templates.TopProducts(snap),
		templates.RecordsTable(snap.Records, h.defaults.MaxTableRows),
	}
	for _, c := range fragments {
		html, err := renderString(r, c)
		if err != nil {
			h.logger.Error("render fragment", "error", err)
			return
		}
		if err := sse.PatchElements(html); err != nil {
			h.logger.Debug("patch elements", "error", err)
			return
		}
	}

	// Echo the resolved range so empty date inputs show the defaulted bounds.
	signals, err := json.Marshal(map[string]string{
		"from": snap.Range.From.Format(dateLayout),
		"to":   snap.Range.To.Format(dateLayout),
	})
	if err != nil {
		h.logger.Error("marshal range signals", "error", err)
		return
	}
	if err := sse.PatchSignals(signals); err != nil {
		h.logger.Debug("patch signals", "error", err)
		return
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// patchError surfaces a failed recompute in the warnings area instead of
// breaking the stream.
func (h *SSEHandlers) patchError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := errors.From(err)
	h.logger.Warn("dashboard update failed", "error", err)

	sse := datastar.NewSSE(w, r)
	html, renderErr := renderString(r, templates.Warnings(&services.Snapshot{
		Warnings: []models.Warning{{Code: string(appErr.Code), Message: appErr.Message}},
	}))
	if renderErr != nil {
		h.logger.Error("render warnings", "error", renderErr)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		h.logger.Debug("patch warnings", "error", err)
	}
}
