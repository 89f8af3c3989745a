package supabaseops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuardianChain/launch_layer/internal/database"
	"github.com/GuardianChain/launch_layer/internal/metrics"
	supabase "github.com/GuardianChain/launch_layer/supabase/client"
)

func newClient(t *testing.T, handler http.HandlerFunc) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := supabase.New(supabase.Config{URL: srv.URL, APIKey: "service-key"})
	require.NoError(t, err)
	return c
}

func TestAggregate(t *testing.T) {
	ok := CheckResult{Healthy: true}
	bad := CheckResult{}
	assert.Equal(t, StatusHealthy, Aggregate([]CheckResult{ok, ok, ok}))
	assert.Equal(t, StatusDegraded, Aggregate([]CheckResult{ok, bad, ok}))
	assert.Equal(t, StatusUnhealthy, Aggregate([]CheckResult{bad, bad, bad}))
	assert.Equal(t, StatusUnhealthy, Aggregate(nil))
}

func TestAffected(t *testing.T) {
	cases := map[string]int64{
		`{"affected": 7}`:       7,
		`12`:                    12,
		`[{"t":"a"},{"t":"b"}]`: 2,
		`[{"affected": 4}]`:     4,
		`[]`:                    0,
		`null`:                  0,
		`not json`:              0,
		``:                      0,
	}
	for body, want := range cases {
		if got := Affected([]byte(body)); got != want {
			t.Errorf("Affected(%q) = %d, want %d", body, got, want)
		}
	}
}

func TestHealthAllHealthy(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path] = r.Header.Get("apikey")
		mu.Unlock()
		if r.URL.Path == supabase.PathAuth {
			_, _ = w.Write([]byte(`{"version":"v2.151.0","name":"GoTrue"}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	svc := New(Config{Client: client, Metrics: metrics.New()})

	report := svc.Health(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.True(t, report.Configured)
	require.Len(t, report.Checks, 3)
	assert.Equal(t, "rest", report.Checks[0].Name)
	assert.Equal(t, "v2.151.0", report.Checks[1].Version)
	assert.Equal(t, "service-key", seen[supabase.PathStorage])
}

func TestHealthDegradedAndUnhealthy(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/storage") {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"message":"storage down"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	svc := New(Config{Client: client})
	report := svc.Health(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, http.StatusBadGateway, report.Checks[2].StatusCode)
	assert.Contains(t, report.Checks[2].Error, "storage down")

	down := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	report = New(Config{Client: down}).Health(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
}

func TestHealthTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == supabase.PathREST {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}
		_, _ = w.Write([]byte(`{}`))
	})
	defer close(release)

	svc := New(Config{Client: client, CheckTimeout: 50 * time.Millisecond})
	report := svc.Health(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.False(t, report.Checks[0].Healthy)
	assert.NotEmpty(t, report.Checks[0].Error)
}

func TestHealthHandlerNotConfigured(t *testing.T) {
	svc := New(Config{})
	router := mux.NewRouter()
	svc.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/supabase/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.Configured)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/supabase/security/harden", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Details map[string]interface{} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body.Details["configured"])
}

func TestHardenContinuesAfterFailure(t *testing.T) {
	var mu sync.Mutex
	var called []string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		fn := strings.TrimPrefix(r.URL.Path, "/rest/v1/rpc/")
		mu.Lock()
		called = append(called, fn)
		mu.Unlock()
		switch fn {
		case "enable_rls_on_public_tables":
			_, _ = w.Write([]byte(`{"affected": 12}`))
		case "revoke_anon_write_grants":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"function not found"}`))
		default:
			_, _ = w.Write([]byte(`[{"fn":"a"},{"fn":"b"},{"fn":"c"}]`))
		}
	})
	recorder := database.NewMemoryRecorder(10)
	steps := []string{"enable_rls_on_public_tables", "revoke_anon_write_grants", "audit_security_definer_functions"}
	svc := New(Config{Client: client, Steps: steps, Recorder: recorder})

	router := mux.NewRouter()
	svc.RegisterRoutes(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/supabase/security/harden", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var report HardenReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.OK)
	require.Len(t, report.Steps, 3)
	assert.Equal(t, int64(12), report.Steps[0].Affected)
	assert.False(t, report.Steps[1].OK)
	assert.Contains(t, report.Steps[1].Error, "function not found")
	assert.True(t, report.Steps[2].OK)
	assert.Equal(t, int64(3), report.Steps[2].Affected)
	assert.Equal(t, steps, called)

	events, _ := recorder.Recent(context.Background(), 10)
	require.Len(t, events, 1)
	assert.Equal(t, database.StatusFailed, events[0].Status)
}

func TestHardenAllOK(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`0`))
	})
	svc := New(Config{Client: client, Steps: []string{"a", "b"}})
	report, err := svc.Harden(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Len(t, report.Steps, 2)
}
