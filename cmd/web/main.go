package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"kpi-dashboard/internal/config"
	"kpi-dashboard/internal/middleware"
	"kpi-dashboard/internal/observability"
	"kpi-dashboard/internal/server"
	"kpi-dashboard/internal/services"
	"kpi-dashboard/internal/store"
	"kpi-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	pageCache     = "public, max-age=300"
)

// dashboardPage serves the page shell; the data arrives over /sse/dashboard.
func dashboardPage(cfg config.DashboardConfig) http.HandlerFunc {
	page := templates.Dashboard(templates.PageData{TopN: cfg.TopN})
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", pageCache)
		if err := page.Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	// Money and rates go out as JSON numbers rather than strings.
	decimal.MarshalJSONWithoutQuotes = true

	logger.Info("starting application",
		"version", "1.0.0",
		"data_file", cfg.Data.File,
		"addr", cfg.Address(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Data.LoadTimeout)
	defer cancel()

	start := time.Now()
	ds, err := store.Load(ctx, store.Options{
		Path:         cfg.Data.File,
		Sheet:        cfg.Data.Sheet,
		CacheEnabled: cfg.Data.CacheEnabled,
		CacheDir:     cfg.Data.CacheDir,
	}, logger)
	if err != nil {
		logger.Error("failed to load dataset", "error", err, "file", cfg.Data.File)
		os.Exit(1)
	}
	logger.Info("dataset loaded", "records", ds.Len(), "duration", time.Since(start))

	dashboard := services.NewDashboard(ds, logger)

	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardPage(cfg.Dashboard),
	}

	srv := server.NewServer(dashboard, cfg.Dashboard, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	handler := middlewareChain(srv)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down dashboard service", "stats", dashboard.Stats())
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
