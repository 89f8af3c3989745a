package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/internal/metrics"
)

func TestCORSMiddleware(t *testing.T) {
	m := NewCORSMiddleware([]string{"https://dashboard.guardianchain.io/", "*.guardianchain.app"})
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://dashboard.guardianchain.io", true},
		{"https://preview.guardianchain.app", true},
		{"https://evil.example.com", false},
		{"https://guardianchain.app.evil.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/launch-status", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		got := rec.Header().Get("Access-Control-Allow-Origin") == tt.origin
		assert.Equal(t, tt.allowed, got, tt.origin)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	h := NewCORSMiddleware([]string{"*"}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/deploy-network", nil)
	req.Header.Set("Origin", "https://any.site")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, called)
	assert.Equal(t, "https://any.site", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, logging.NewDiscard("test"))
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/launch-status", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	req := httptest.NewRequest(http.MethodGet, "/launch-status", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "other clients keep their own bucket")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10, logging.NewDiscard("test"))
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.getLimiter("a")
	now = now.Add(rl.idleTTL + time.Second)
	rl.getLimiter("b")

	assert.Equal(t, 1, rl.Cleanup())
	assert.Len(t, rl.limiters, 1)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := NewRecoveryMiddleware(logging.NewDiscard("test")).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestMetricsAndLoggingMiddleware(t *testing.T) {
	m := metrics.New()
	router := mux.NewRouter()
	router.Use(LoggingMiddleware(logging.NewDiscard("test")))
	router.Use(MetricsMiddleware("gateway", m))
	router.HandleFunc("/deployments/{network}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deployments/polygon", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	count, err := testutil.GatherAndCount(m.Registry, "gtt_launch_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoggingMiddleware_PropagatesTraceID(t *testing.T) {
	var seen string
	h := LoggingMiddleware(logging.NewDiscard("test"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetTraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", seen)
	assert.Equal(t, "trace-123", rec.Header().Get("X-Trace-ID"))
}
