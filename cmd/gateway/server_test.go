package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/internal/middleware"
)

const testSecret = "gateway-test-secret"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.LaunchConfigPath = filepath.Join(cfg.DataDir, "missing.yaml")
	cfg.AdminJWTSecret = testSecret
	cfg.AdminUserIDs = []string{"ops-1"}
	cfg.RateLimitRPS = 1000
	cfg.RateLimitBurst = 1000
	return cfg
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	srv, err := newServer(context.Background(), testConfig(t), logging.NewDiscard("gateway-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, "ops-1", middleware.RoleAdmin, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return token
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGatewayPublicRoutes(t *testing.T) {
	h := newTestServer(t).handler

	for _, path := range []string{
		"/health",
		"/info",
		"/launch-status",
		"/bridges",
		"/api/tiers",
		"/api/leaderboard",
		"/api/capsules",
		"/api/onboarding/progress?xp=120",
		"/api/i18n",
	} {
		rr := do(h, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get("X-Trace-ID"), path)
	}

	rr := do(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "gtt_launch_http_requests_total"))
}

func TestGatewaySupabaseNotConfigured(t *testing.T) {
	h := newTestServer(t).handler

	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodGet, "/api/supabase/health", "", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodPost, "/api/supabase/security/harden", adminToken(t), "").Code)
}

func TestGatewayAdminRoutes(t *testing.T) {
	h := newTestServer(t).handler
	token := adminToken(t)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/deploy-network", "", `{"network":"polygon"}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodPost, "/deploy-network", token, `{"network":"polygon"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/admin/events", "", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/admin/events", token, "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/admin/system", token, "").Code)
}

func TestGatewayCORSPreflight(t *testing.T) {
	h := newTestServer(t).handler

	req := httptest.NewRequest(http.MethodOptions, "/deploy-network", nil)
	req.Header.Set("Origin", "https://app.guardianchain.io")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.guardianchain.io", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestIssueOperatorToken(t *testing.T) {
	cfg := testConfig(t)
	now := time.Now()

	token, err := issueOperatorToken(cfg, "ops-1", time.Hour, now)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = issueOperatorToken(cfg, "intruder", time.Hour, now)
	assert.Error(t, err)

	cfg.AdminJWTSecret = ""
	_, err = issueOperatorToken(cfg, "ops-1", time.Hour, now)
	assert.Error(t, err)
}
