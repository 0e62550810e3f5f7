package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kpi-dashboard/internal/observability"
)

// Logger attaches a request-scoped logger to the context and logs one line per
// completed request. 5xx responses log at error, 4xx at warn.
func Logger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.With(
				"request_id", observability.GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r.WithContext(observability.WithLogger(r.Context(), reqLogger)))

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			reqLogger.Log(r.Context(), level, "request completed",
				"status", rec.status,
				"bytes", rec.bytes,
				"query", r.URL.RawQuery,
				"stream", strings.HasPrefix(r.URL.Path, "/sse/"),
				"remote_addr", r.RemoteAddr,
				"duration", time.Since(start),
			)
		})
	}
}

// Tracing opens a span per request and logs it at debug level once the handler returns.
func Tracing(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := observability.StartSpan(r.Context(), r.Method+" "+r.URL.Path)
			span.SetTag("http.user_agent", r.UserAgent())

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			span.SetTag("http.status_code", strconv.Itoa(rec.status))
			if rec.status >= http.StatusBadRequest {
				span.SetError(fmt.Errorf("HTTP %d", rec.status))
			}
			span.Finish()
			observability.Logger(ctx, logger).Debug("span finished", "span", span)
		})
	}
}
