package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	svcerrors "github.com/GuardianChain/launch_layer/internal/errors"
	"github.com/GuardianChain/launch_layer/internal/logging"
)

// =============================================================================
// Response Tests
// =============================================================================

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusCreated, map[string]string{"status": "ok"})

	if rr.Code != http.StatusCreated {
		t.Errorf("Code = %d, want 201", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %s, want ok", body["status"])
	}
}

func TestWriteError_ServiceError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/deployments/base", nil)
	req = req.WithContext(logging.WithTraceID(context.Background(), "trace-9"))
	rr := httptest.NewRecorder()

	WriteError(rr, req, fmt.Errorf("lookup: %w", svcerrors.NotFound("deployment", "base")))

	if rr.Code != http.StatusNotFound {
		t.Errorf("Code = %d, want 404", rr.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "NOT_FOUND" {
		t.Errorf("Error = %s, want NOT_FOUND", body.Error)
	}
	if body.TraceID != "trace-9" {
		t.Errorf("TraceID = %s, want trace-9", body.TraceID)
	}
}

func TestWriteError_PlainErrorIs500WithRawMessage(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/deploy-network", nil)
	rr := httptest.NewRecorder()

	WriteError(rr, req, fmt.Errorf("insufficient funds for gas"))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Code = %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "insufficient funds for gas") {
		t.Errorf("body = %s, want raw message", rr.Body.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	type input struct {
		Network string `json:"network"`
	}

	tests := []struct {
		name   string
		body   string
		wantOK bool
	}{
		{"valid", `{"network":"polygon"}`, true},
		{"unknown field", `{"network":"polygon","extra":1}`, false},
		{"malformed", `{"network":`, false},
		{"too large", `{"network":"` + strings.Repeat("a", MaxRequestBodyBytes) + `"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			var in input
			ok := DecodeJSON(rr, req, &in)
			if ok != tt.wantOK {
				t.Errorf("DecodeJSON() = %v, want %v", ok, tt.wantOK)
			}
			if !ok && rr.Code != http.StatusBadRequest {
				t.Errorf("Code = %d, want 400", rr.Code)
			}
		})
	}
}

func TestReadAllWithLimit(t *testing.T) {
	data, truncated, err := ReadAllWithLimit(strings.NewReader("abcdef"), 4)
	if err != nil {
		t.Fatalf("ReadAllWithLimit() error = %v", err)
	}
	if !truncated {
		t.Error("truncated = false, want true")
	}
	if string(data) != "abcd" {
		t.Errorf("data = %q, want abcd", data)
	}

	if _, err := ReadAllStrict(strings.NewReader("abcdef"), 4); err == nil {
		t.Error("ReadAllStrict() expected error for oversized body")
	}
	if data, err := ReadAllStrict(strings.NewReader("abc"), 4); err != nil || string(data) != "abc" {
		t.Errorf("ReadAllStrict() = %q, %v", data, err)
	}
}
