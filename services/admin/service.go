// Package admin exposes operator-only views of the gateway host and the
// launch event log.
package admin

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/GuardianChain/launch_layer/internal/database"
	"github.com/GuardianChain/launch_layer/internal/httputil"
	"github.com/GuardianChain/launch_layer/internal/logging"
)

// Probes reads host statistics. Fields are swappable for tests.
type Probes struct {
	CPUPercent func(ctx context.Context) (float64, error)
	Memory     func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	Disk       func(ctx context.Context, path string) (*disk.UsageStat, error)
	Load       func(ctx context.Context) (*load.AvgStat, error)
}

// HostProbes reads the real host through gopsutil.
func HostProbes() Probes {
	return Probes{
		CPUPercent: func(ctx context.Context) (float64, error) {
			pct, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
			if err != nil {
				return 0, err
			}
			if len(pct) == 0 {
				return 0, nil
			}
			return pct[0], nil
		},
		Memory: mem.VirtualMemoryWithContext,
		Disk:   disk.UsageWithContext,
		Load:   load.AvgWithContext,
	}
}

// Config configures the admin service.
type Config struct {
	Recorder database.Recorder
	Probes   Probes
	DataDir  string
	Uptime   func() time.Duration
	Logger   *logging.Logger
	Auth     mux.MiddlewareFunc
}

// Service serves admin endpoints.
type Service struct {
	recorder database.Recorder
	probes   Probes
	dataDir  string
	uptime   func() time.Duration
	logger   *logging.Logger
	auth     mux.MiddlewareFunc
}

// New creates the admin service.
func New(cfg Config) *Service {
	if cfg.Recorder == nil {
		cfg.Recorder = database.NewMemoryRecorder(0)
	}
	if cfg.Probes.CPUPercent == nil && cfg.Probes.Memory == nil && cfg.Probes.Disk == nil && cfg.Probes.Load == nil {
		cfg.Probes = HostProbes()
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if cfg.Uptime == nil {
		started := time.Now()
		cfg.Uptime = func() time.Duration { return time.Since(started) }
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscard("admin")
	}
	return &Service{
		recorder: cfg.Recorder,
		probes:   cfg.Probes,
		dataDir:  cfg.DataDir,
		uptime:   cfg.Uptime,
		logger:   cfg.Logger,
		auth:     cfg.Auth,
	}
}

// SystemReport is a snapshot of the gateway host.
type SystemReport struct {
	GoVersion     string            `json:"go_version"`
	Goroutines    int               `json:"goroutines"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	CPUPercent    *float64          `json:"cpu_percent,omitempty"`
	Memory        *MemoryReport     `json:"memory,omitempty"`
	Disk          *DiskReport       `json:"disk,omitempty"`
	Load          *load.AvgStat     `json:"load,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
	CollectedAt   time.Time         `json:"collected_at"`
}

// MemoryReport summarizes virtual memory.
type MemoryReport struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

// DiskReport summarizes the data directory's filesystem.
type DiskReport struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

// System collects the host report. Individual probe failures are listed in
// Errors and never fail the whole report.
func (s *Service) System(ctx context.Context) SystemReport {
	report := SystemReport{
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(s.uptime().Seconds()),
		Errors:        map[string]string{},
		CollectedAt:   time.Now().UTC(),
	}
	fail := func(field string, err error) {
		report.Errors[field] = err.Error()
		s.logger.WithContext(ctx).WithError(err).WithField("field", field).Warn("system probe failed")
	}

	if s.probes.CPUPercent != nil {
		if pct, err := s.probes.CPUPercent(ctx); err != nil {
			fail("cpu", err)
		} else {
			report.CPUPercent = &pct
		}
	}
	if s.probes.Memory != nil {
		if vm, err := s.probes.Memory(ctx); err != nil {
			fail("memory", err)
		} else {
			report.Memory = &MemoryReport{Total: vm.Total, Used: vm.Used, UsedPercent: vm.UsedPercent}
		}
	}
	if s.probes.Disk != nil {
		if du, err := s.probes.Disk(ctx, s.dataDir); err != nil {
			fail("disk", err)
		} else {
			report.Disk = &DiskReport{Path: du.Path, Total: du.Total, Free: du.Free, UsedPercent: du.UsedPercent}
		}
	}
	if s.probes.Load != nil {
		if avg, err := s.probes.Load(ctx); err != nil {
			fail("load", err)
		} else {
			report.Load = avg
		}
	}
	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	return report
}

// RegisterRoutes registers the admin routes behind the auth middleware.
func (s *Service) RegisterRoutes(router *mux.Router) {
	admin := router.PathPrefix("/api/admin").Subrouter()
	if s.auth != nil {
		admin.Use(s.auth)
	}
	admin.HandleFunc("/system", s.handleSystem).Methods(http.MethodGet)
	admin.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
}

// =============================================================================
// HTTP Handlers
// =============================================================================

func (s *Service) handleSystem(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.System(r.Context()))
}

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	events, err := s.recorder.Recent(r.Context(), limit)
	if err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("list events failed")
		httputil.InternalError(w, "failed to list events")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
