package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"kpi-dashboard/internal/config"
	"kpi-dashboard/internal/observability"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID_GeneratesUUID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	require.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	h := RequestID()(okHandler())
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "given")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, "given", w.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 1, RateLimitBurst: 1})
	h := RateLimit(limiter, quietLogger())(okHandler())

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRecovery(t *testing.T) {
	h := Recovery(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mark("first"), mark("second"))(okHandler())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"first", "second"}, order)
}

func TestCORS(t *testing.T) {
	h := CORS(config.SecurityConfig{AllowedOrigins: []string{"http://localhost:8084"}})(okHandler())

	r := httptest.NewRequest(http.MethodOptions, "/api/dashboard", nil)
	r.Header.Set("Origin", "http://localhost:8084")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "http://localhost:8084", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit_ExemptsHealth(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 1, RateLimitBurst: 1})
	h := RateLimit(limiter, quietLogger())(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	require.Zero(t, limiter.Len())
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{EnableRateLimit: true, RateLimitRPS: 5, RateLimitBurst: 5})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	require.True(t, limiter.Allow("10.0.0.1"))
	require.True(t, limiter.Allow("10.0.0.2"))
	require.Equal(t, 2, limiter.Len())

	now = now.Add(2 * visitorTTL)
	require.True(t, limiter.Allow("10.0.0.3"))
	require.Equal(t, 1, limiter.Len())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(config.SecurityConfig{EnableRateLimit: false, RateLimitBurst: 0})
	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow("10.0.0.1"))
	}
	require.Zero(t, limiter.Len())
}

func TestLogger_AttachesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Chain(RequestID(), Logger(logger))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observability.Logger(r.Context(), quietLogger()).Info("inside handler")
		w.WriteHeader(http.StatusBadRequest)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/kpis?kpi=bogus", nil)
	r.Header.Set("X-Request-ID", "req-9")
	h.ServeHTTP(httptest.NewRecorder(), r)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"msg":"inside handler"`)
	require.Contains(t, lines[0], `"request_id":"req-9"`)
	require.Contains(t, lines[1], `"level":"WARN"`)
	require.Contains(t, lines[1], `"status":400`)
}

func TestTracing_FlagsErrors(t *testing.T) {
	var span *observability.Span
	h := Tracing(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span = observability.GetSpan(r.Context())
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	require.NotNil(t, span)
	require.Equal(t, "GET /api/dashboard", span.Operation)
	require.True(t, span.Failed())
	require.Equal(t, "503", span.Tags["http.status_code"])
}

func TestTrustedProxy_StripsForwardedFor(t *testing.T) {
	var seen string
	h := TrustedProxy(config.SecurityConfig{TrustedProxies: []string{"10.0.0.254"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = clientIP(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.1.5:4000"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.Equal(t, "192.168.1.5", seen)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.254:4000"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.254")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.Equal(t, "1.2.3.4", seen)
}

func TestStatusRecorder_Flushes(t *testing.T) {
	w := httptest.NewRecorder()
	rec := newStatusRecorder(w)
	_, _ = rec.Write([]byte("data: x\n\n"))
	rec.Flush()

	require.True(t, w.Flushed)
	require.Equal(t, 9, rec.bytes)
}
