package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "https://x.supabase.co"})
	assert.Error(t, err)
	_, err = New(Config{URL: "not a url", APIKey: "k"})
	assert.Error(t, err)

	c, err := New(Config{URL: "https://x.supabase.co/", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "https://x.supabase.co", c.BaseURL())
}

func TestQueryBuilderExecute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/launch_events", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "id,action", q.Get("select"))
		assert.Equal(t, "eq.deploy_network", q.Get("action"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "svc-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer svc-key", r.Header.Get("Authorization"))
		assert.Equal(t, "trace-9", r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`[{"id":"1","action":"deploy_network"}]`))
	}))
	defer server.Close()

	c, err := New(Config{URL: server.URL, APIKey: "svc-key"})
	require.NoError(t, err)

	ctx := WithRequestID(context.Background(), "trace-9")
	resp, err := c.From("launch_events").Select("id,action").Eq("action", "deploy_network").
		Order("created_at", false).Limit(5).Execute(ctx)
	require.NoError(t, err)
	require.NoError(t, resp.Error())

	var rows []map[string]string
	require.NoError(t, resp.JSON(&rows))
	assert.Len(t, rows, 1)
}

func TestExecuteInsertAndRPC(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/rest/v1/launch_events":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))
			assert.JSONEq(t, `{"action":"x"}`, string(body))
			w.WriteHeader(http.StatusCreated)
		case "/rest/v1/rpc/enable_rls_on_public_tables":
			assert.JSONEq(t, `{}`, string(body))
			_, _ = w.Write([]byte(`{"affected": 4}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c, err := New(Config{URL: server.URL, APIKey: "k"})
	require.NoError(t, err)

	resp, err := c.From("launch_events").ExecuteInsert(context.Background(), map[string]string{"action": "x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = c.RPC(context.Background(), "enable_rls_on_public_tables", nil)
	require.NoError(t, err)
	var out map[string]int
	require.NoError(t, json.Unmarshal(resp.Body, &out))
	assert.Equal(t, 4, out["affected"])
}

func TestResponseError(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   string
	}{
		{200, `{}`, ""},
		{400, `{"message":"bad column"}`, "supabase error: status 400: bad column"},
		{401, `{"msg":"invalid key"}`, "supabase error: status 401: invalid key"},
		{404, `not json`, "supabase error: status 404"},
	}
	for _, tt := range tests {
		err := (&Response{StatusCode: tt.status, Body: []byte(tt.body)}).Error()
		if tt.want == "" {
			assert.NoError(t, err)
			continue
		}
		require.Error(t, err)
		assert.Equal(t, tt.want, err.Error())
	}
}

func TestNewResilientGet(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		assert.True(t, strings.HasSuffix(r.URL.Path, PathAuth))
		_, _ = w.Write([]byte(`{"version":"v2.150.0"}`))
	}))
	defer server.Close()

	retry := DefaultRetryConfig()
	retry.InitialBackoff = 0
	c, tr, err := NewResilient(ResilientConfig{
		Config:               Config{URL: server.URL, APIKey: "k"},
		RetryConfig:          retry,
		CircuitBreakerConfig: DefaultCircuitBreakerConfig(),
	})
	require.NoError(t, err)

	resp, err := c.Get(context.Background(), PathAuth)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.EqualValues(t, 1, tr.Metrics()["retried_requests"])
}
