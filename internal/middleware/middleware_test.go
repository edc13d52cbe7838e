package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimit_PerClientIP(t *testing.T) {
	limiter := NewRateLimiter(2, 1)
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr, path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, call("10.0.0.1:5000", "/api/chatbot"))
	require.Equal(t, http.StatusNoContent, call("10.0.0.1:5001", "/api/chatbot"))
	require.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5002", "/api/chatbot"))
	// other clients and health checks are not affected
	require.Equal(t, http.StatusNoContent, call("10.0.0.2:5000", "/api/chatbot"))
	require.Equal(t, http.StatusNoContent, call("10.0.0.1:5003", "/health/live"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	limiter.Allow("a")
	limiter.Allow("b")

	require.Equal(t, 0, limiter.Cleanup(time.Now().Add(-time.Minute)))
	require.Equal(t, 2, limiter.Cleanup(time.Now().Add(time.Minute)))
}

func TestHealthHandler(t *testing.T) {
	ok := CheckerFunc(func(context.Context) error { return nil })
	down := CheckerFunc(func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"backend": ok})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthHandler(map[string]HealthChecker{"backend": down})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var hs HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hs))
	require.Equal(t, "unhealthy", hs.Status)
	require.Equal(t, "connection refused", hs.Checks["backend"].Message)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestBackendHealthChecker_AppliesTimeout(t *testing.T) {
	c := &BackendHealthChecker{
		Timeout: 10 * time.Millisecond,
		Backend: pingFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	}
	require.ErrorIs(t, c.Check(context.Background()), context.DeadlineExceeded)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/upload", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "ERROR", line["level"])
	require.Equal(t, "/api/upload", line["path"])
	require.EqualValues(t, http.StatusBadGateway, line["status"])
	require.EqualValues(t, len("upstream down"), line["bytes"])
}

func TestMetrics(t *testing.T) {
	SetSessionGauge(func() int { return 3 })
	before := GetMetrics()["sends_total"].(uint64)
	IncrementSends()

	rec := httptest.NewRecorder()
	MetricsMiddleware(http.HandlerFunc(MetricsHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	var m map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&m))
	require.EqualValues(t, before+1, m["sends_total"])
	require.EqualValues(t, 3, m["sessions_open"])
}

func TestValidators(t *testing.T) {
	require.NoError(t, ValidateSessionID("6f1c2a8e-3b7d-4a51-9c1e-0d2f3a4b5c6d"))
	require.Error(t, ValidateSessionID(""))
	require.Error(t, ValidateSessionID("../etc"))
	require.Error(t, ValidateSessionID(strings.Repeat("a", 101)))

	require.NoError(t, ValidateUploadID("42"))
	require.Error(t, ValidateUploadID("42/../../admin"))

	require.Equal(t, "hello world", SanitizeString("  hel\x00lo\x07 world \r"))
	require.Len(t, []rune(ClampMessage(strings.Repeat("é", 6000))), 5000)
	require.Equal(t, "short", ClampMessage("short"))
}
