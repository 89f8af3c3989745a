package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GuardianChain/launch_layer/internal/logging"
)

const testSecret = "test-secret"

func generateTestToken(t *testing.T, secret, userID, role string, expired bool) string {
	t.Helper()
	exp := time.Now().Add(time.Hour)
	if expired {
		exp = time.Now().Add(-time.Hour)
	}
	token, err := IssueToken(secret, userID, role, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

func okHandler(t *testing.T, wantUser string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantUser != "" && GetUserID(r) != wantUser {
			t.Errorf("GetUserID() = %q, want %q", GetUserID(r), wantUser)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_Handler(t *testing.T) {
	logger := logging.NewDiscard("test")
	m := NewAuthMiddleware(testSecret, RoleAdmin, logger, []string{"/health"})

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"skip path", "/health", "", http.StatusOK, ""},
		{"missing header", "/deploy-network", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad format", "/deploy-network", "Token abc", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage token", "/deploy-network", "Bearer abc", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"expired", "/deploy-network", "Bearer " + generateTestToken(t, testSecret, "u1", RoleAdmin, true), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong secret", "/deploy-network", "Bearer " + generateTestToken(t, "other", "u1", RoleAdmin, false), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"non admin", "/deploy-network", "Bearer " + generateTestToken(t, testSecret, "u1", "viewer", false), http.StatusForbidden, "FORBIDDEN"},
		{"admin", "/deploy-network", "Bearer " + generateTestToken(t, testSecret, "u1", RoleAdmin, false), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			want := ""
			if tt.wantStatus == http.StatusOK && tt.path != "/health" {
				want = "u1"
			}
			m.Handler(okHandler(t, want)).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				var body map[string]interface{}
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body["error"] != tt.wantCode {
					t.Errorf("error = %v, want %s", body["error"], tt.wantCode)
				}
			}
		})
	}
}

func TestAuthMiddleware_RejectsOtherAlgorithms(t *testing.T) {
	m := NewAuthMiddleware(testSecret, "", logging.NewDiscard("test"), nil)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{UserID: "u1"})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	m.Handler(okHandler(t, "")).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware_Unconfigured(t *testing.T) {
	m := NewAuthMiddleware("", RoleAdmin, logging.NewDiscard("test"), nil)

	rec := httptest.NewRecorder()
	m.Handler(okHandler(t, "")).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/deploy-network", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestAuthMiddleware_SubjectFallback(t *testing.T) {
	m := NewAuthMiddleware(testSecret, "", logging.NewDiscard("test"), nil)
	token, err := IssueToken(testSecret, "", "", jwt.RegisteredClaims{Subject: "ops@guardianchain"})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()
	m.Handler(okHandler(t, "ops@guardianchain")).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
