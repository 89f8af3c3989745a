package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuardianChain/launch_layer/internal/database"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/internal/middleware"
)

const testSecret = "admin-test-secret"

func fakeProbes(diskErr error) Probes {
	return Probes{
		CPUPercent: func(context.Context) (float64, error) { return 12.5, nil },
		Memory: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 1000, Used: 250, UsedPercent: 25}, nil
		},
		Disk: func(_ context.Context, path string) (*disk.UsageStat, error) {
			if diskErr != nil {
				return nil, diskErr
			}
			return &disk.UsageStat{Path: path, Total: 100, Free: 40, UsedPercent: 60}, nil
		},
		Load: func(context.Context) (*load.AvgStat, error) {
			return &load.AvgStat{Load1: 0.5, Load5: 0.4, Load15: 0.3}, nil
		},
	}
}

func TestSystemReport(t *testing.T) {
	svc := New(Config{
		Probes:  fakeProbes(nil),
		DataDir: "/data",
		Uptime:  func() time.Duration { return 90 * time.Second },
	})

	report := svc.System(context.Background())
	require.NotNil(t, report.CPUPercent)
	assert.Equal(t, 12.5, *report.CPUPercent)
	assert.Equal(t, uint64(250), report.Memory.Used)
	assert.Equal(t, "/data", report.Disk.Path)
	assert.Equal(t, 0.5, report.Load.Load1)
	assert.Equal(t, int64(90), report.UptimeSeconds)
	assert.Positive(t, report.Goroutines)
	assert.Nil(t, report.Errors)
}

func TestSystemReportPartialFailure(t *testing.T) {
	svc := New(Config{Probes: fakeProbes(errors.New("no such mount"))})

	report := svc.System(context.Background())
	assert.Nil(t, report.Disk)
	assert.NotNil(t, report.Memory)
	assert.Equal(t, "no such mount", report.Errors["disk"])
}

func newRouter(t *testing.T, rec database.Recorder) (*mux.Router, string) {
	t.Helper()
	logger := logging.NewDiscard("admin-test")
	auth := middleware.NewAuthMiddleware(testSecret, middleware.RoleAdmin, logger, nil)
	svc := New(Config{
		Recorder: rec,
		Probes:   fakeProbes(nil),
		Logger:   logger,
		Auth:     auth.Handler,
	})
	router := mux.NewRouter()
	svc.RegisterRoutes(router)

	token, err := middleware.IssueToken(testSecret, "ops-1", middleware.RoleAdmin, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return router, token
}

func request(router *mux.Router, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRoutesRequireAdmin(t *testing.T) {
	router, _ := newRouter(t, nil)
	assert.Equal(t, http.StatusUnauthorized, request(router, "/api/admin/system", "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(router, "/api/admin/events", "").Code)
}

func TestHandleEvents(t *testing.T) {
	rec := database.NewMemoryRecorder(0)
	ctx := context.Background()
	for _, target := range []string{"polygon", "base", "arbitrum"} {
		require.NoError(t, rec.Record(ctx, database.NewEvent(database.ActionDeployNetwork, target, database.StatusSucceeded, nil)))
	}
	router, token := newRouter(t, rec)

	rr := request(router, "/api/admin/events?limit=2", token)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Events []database.Event `json:"events"`
		Count  int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	assert.Equal(t, http.StatusBadRequest, request(router, "/api/admin/events?limit=x", token).Code)
}

func TestHandleSystem(t *testing.T) {
	router, token := newRouter(t, nil)
	rr := request(router, "/api/admin/system", token)
	require.Equal(t, http.StatusOK, rr.Code)

	var report SystemReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, uint64(1000), report.Memory.Total)
	assert.NotEmpty(t, report.GoVersion)
}
