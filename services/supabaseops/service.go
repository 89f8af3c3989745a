// Package supabaseops reports Supabase health and applies the database
// security hardening steps through the Supabase REST API.
package supabaseops

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/GuardianChain/launch_layer/internal/database"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/internal/metrics"
	supabase "github.com/GuardianChain/launch_layer/supabase/client"
)

// Overall health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DefaultCheckTimeout bounds each health probe.
const DefaultCheckTimeout = 5 * time.Second

// Config configures the service. A nil Client means Supabase is not
// configured.
type Config struct {
	Client       *supabase.Client
	Transport    *supabase.ResilientTransport
	Steps        []string
	CheckTimeout time.Duration
	Recorder     database.Recorder
	Metrics      *metrics.Metrics
	Logger       *logging.Logger
	Auth         mux.MiddlewareFunc
	Now          func() time.Time
}

// Service implements the Supabase operations API.
type Service struct {
	client    *supabase.Client
	transport *supabase.ResilientTransport
	steps     []string
	timeout   time.Duration
	recorder  database.Recorder
	metrics   *metrics.Metrics
	logger    *logging.Logger
	auth      mux.MiddlewareFunc
	now       func() time.Time
}

// New creates the service.
func New(cfg Config) *Service {
	s := &Service{
		client:    cfg.Client,
		transport: cfg.Transport,
		steps:     cfg.Steps,
		timeout:   cfg.CheckTimeout,
		recorder:  cfg.Recorder,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		auth:      cfg.Auth,
		now:       cfg.Now,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultCheckTimeout
	}
	if s.logger == nil {
		s.logger = logging.NewDiscard("supabaseops")
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Configured reports whether a Supabase client is available.
func (s *Service) Configured() bool {
	return s.client != nil
}

// =============================================================================
// Health
// =============================================================================

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Name       string `json:"name"`
	Healthy    bool   `json:"healthy"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	Version    string `json:"version,omitempty"`
	Error      string `json:"error,omitempty"`
}

// HealthReport is the body of GET /api/supabase/health.
type HealthReport struct {
	Status       string        `json:"status"`
	Configured   bool          `json:"configured"`
	Checks       []CheckResult `json:"checks"`
	CircuitState string        `json:"circuit_state,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
}

type probe struct {
	name string
	path string
}

var probes = []probe{
	{"rest", supabase.PathREST},
	{"auth", supabase.PathAuth},
	{"storage", supabase.PathStorage},
}

// Aggregate maps probe results to an overall status.
func Aggregate(checks []CheckResult) string {
	healthy := 0
	for _, c := range checks {
		if c.Healthy {
			healthy++
		}
	}
	switch {
	case len(checks) > 0 && healthy == len(checks):
		return StatusHealthy
	case healthy > 0:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// Health probes REST, Auth and Storage concurrently.
func (s *Service) Health(ctx context.Context) HealthReport {
	report := HealthReport{Configured: s.Configured(), CheckedAt: s.now().UTC()}
	if !report.Configured {
		report.Status = StatusUnhealthy
		report.Checks = []CheckResult{}
		return report
	}

	results := make([]CheckResult, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		i, p := i, p
		g.Go(func() error {
			results[i] = s.check(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	report.Checks = results
	report.Status = Aggregate(results)
	if s.transport != nil {
		report.CircuitState = s.transport.CircuitState().String()
	}

	for _, r := range results {
		if s.metrics != nil {
			s.metrics.SetSupabaseHealth(r.Name, r.Healthy)
		}
	}
	if report.Status != StatusHealthy {
		s.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"status": report.Status,
		}).Warn("supabase health degraded")
	}
	return report
}

func (s *Service) check(ctx context.Context, p probe) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := CheckResult{Name: p.name}
	start := time.Now()
	resp, err := s.client.Get(ctx, p.path)
	res.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.StatusCode = resp.StatusCode
	if err := resp.Error(); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Healthy = true
	if p.name == "auth" {
		res.Version = gjson.GetBytes(resp.Body, "version").String()
	}
	return res
}

// =============================================================================
// Hardening
// =============================================================================

// StepResult is the outcome of one hardening RPC.
type StepResult struct {
	Step     string `json:"step"`
	OK       bool   `json:"ok"`
	Affected int64  `json:"affected"`
	Error    string `json:"error,omitempty"`
}

// HardenReport is the body of POST /api/supabase/security/harden.
type HardenReport struct {
	OK          bool         `json:"ok"`
	Steps       []StepResult `json:"steps"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}

// ErrNotConfigured is returned by Harden without a Supabase client.
var ErrNotConfigured = errors.New("supabase is not configured")

// Harden runs every hardening step in order. A failed step does not stop
// later steps; the report is OK only if all steps succeed.
func (s *Service) Harden(ctx context.Context) (*HardenReport, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	report := &HardenReport{OK: true, Steps: make([]StepResult, 0, len(s.steps)), StartedAt: s.now().UTC()}
	for _, step := range s.steps {
		res := StepResult{Step: step}
		resp, err := s.client.RPC(ctx, step, nil)
		if err == nil {
			err = resp.Error()
		}
		if err != nil {
			res.Error = err.Error()
			report.OK = false
		} else {
			res.OK = true
			res.Affected = Affected(resp.Body)
		}
		if s.metrics != nil {
			s.metrics.RecordHardeningStep(step, res.OK)
		}
		s.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"step":     step,
			"ok":       res.OK,
			"affected": res.Affected,
		}).Info("hardening step finished")
		report.Steps = append(report.Steps, res)
	}
	report.CompletedAt = s.now().UTC()

	if s.recorder != nil {
		status := database.StatusSucceeded
		if !report.OK {
			status = database.StatusFailed
		}
		failed := make([]string, 0)
		for _, st := range report.Steps {
			if !st.OK {
				failed = append(failed, st.Step)
			}
		}
		ev := database.NewEvent(database.ActionHardenSupabase, "supabase", status, map[string]interface{}{
			"steps":  len(report.Steps),
			"failed": strings.Join(failed, ","),
		})
		if err := s.recorder.Record(ctx, ev); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("record launch event failed")
		}
	}
	return report, nil
}

// Affected reads the affected row count from an RPC result: an "affected"
// field, a number, or the length of an array.
func Affected(body []byte) int64 {
	if !gjson.ValidBytes(body) {
		return 0
	}
	res := gjson.ParseBytes(body)
	switch {
	case res.Type == gjson.Number:
		return res.Int()
	case res.IsObject():
		return res.Get("affected").Int()
	case res.IsArray():
		items := res.Array()
		if len(items) == 1 && items[0].Get("affected").Exists() {
			return items[0].Get("affected").Int()
		}
		return int64(len(items))
	}
	return 0
}

// =============================================================================
// HTTP
// =============================================================================

// RegisterRoutes registers the Supabase routes on router.
func (s *Service) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/supabase/health", s.handleHealth).Methods(http.MethodGet)

	admin := router.NewRoute().Subrouter()
	if s.auth != nil {
		admin.Use(s.auth)
	}
	admin.HandleFunc("/api/supabase/security/harden", s.handleHarden).Methods(http.MethodPost)
}
