package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	l := New("test", "verbose", "json")
	assert.Equal(t, "info", l.GetLevel().String())
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithRole(ctx, "admin")

	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
	assert.Equal(t, "admin", GetRole(ctx))

	// empty trace IDs are not stored
	assert.Equal(t, ctx, WithTraceID(ctx, ""))
}

func TestWithContext_AddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := New("gateway", "info", "json")
	l.SetOutput(&buf)

	ctx := WithTraceID(context.Background(), "abc")
	l.WithContext(ctx).Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "gateway", entry["service"])
	assert.Equal(t, "abc", entry["trace_id"])
	assert.Equal(t, "hello", entry["msg"])
}

func TestLogRequest_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	l := New("gateway", "debug", "json")
	l.SetOutput(&buf)

	l.LogRequest(context.Background(), "GET", "/launch-status", 503, 12*time.Millisecond)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.EqualValues(t, 503, entry["status"])
	assert.EqualValues(t, 12, entry["duration_ms"])
}

func TestNewTraceID_Unique(t *testing.T) {
	assert.NotEqual(t, NewTraceID(), NewTraceID())
}
