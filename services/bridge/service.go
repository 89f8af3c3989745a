// Package bridge configures cross-chain bridges for the token and runs
// simulated transfer tests against them. No funds move: provisioning and
// transfer phases are timed simulations whose results are written under
// deployments/bridges/.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GuardianChain/launch_layer/internal/chain"
	"github.com/GuardianChain/launch_layer/internal/deployment"
	"github.com/GuardianChain/launch_layer/internal/jsonstore"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/internal/metrics"
)

// Statuses.
const (
	StatusConfigured = "configured"
	StatusPassed     = "passed"
	StatusFailed     = "failed"
)

const testSuffix = "-test"

// ErrorLogFile is written into the bridges collection when an action fails.
const ErrorLogFile = "error-log.json"

var (
	ErrUnknownBridge = errors.New("unknown bridge")
	ErrInvalidRoute  = errors.New("invalid bridge route")
	ErrNotConfigured = errors.New("bridge not configured")
	ErrInvalidAmount = errors.New("invalid amount")
)

// IsValidation reports whether err is caused by bad input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnknownBridge) || errors.Is(err, ErrInvalidRoute) || errors.Is(err, ErrInvalidAmount)
}

// =============================================================================
// Types
// =============================================================================

// ProgressFunc is called when a provisioning step or transfer phase starts.
type ProgressFunc func(name string, index, total int)

// ConfigureRequest selects a bridge and route. Empty chains use the bridge
// defaults.
type ConfigureRequest struct {
	Bridge   string       `json:"bridge"`
	Source   string       `json:"source,omitempty"`
	Target   string       `json:"target,omitempty"`
	Progress ProgressFunc `json:"-"`
}

// TestRequest runs a simulated transfer of Amount tokens.
type TestRequest struct {
	Bridge   string       `json:"bridge"`
	Amount   string       `json:"amount"`
	Progress ProgressFunc `json:"-"`
}

// StepResult is a completed provisioning step or transfer phase.
type StepResult struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
}

// Config is a persisted bridge configuration.
type Config struct {
	Bridge          string       `json:"bridge"`
	Name            string       `json:"name"`
	Kind            string       `json:"kind"`
	Source          string       `json:"source"`
	Target          string       `json:"target"`
	TokenContract   string       `json:"token_contract,omitempty"`
	FeeBps          int64        `json:"fee_bps"`
	MinTransfer     string       `json:"min_transfer"`
	MaxTransfer     string       `json:"max_transfer"`
	FinalityMinutes int          `json:"finality_minutes"`
	Steps           []StepResult `json:"steps"`
	Status          string       `json:"status"`
	ConfiguredAt    time.Time    `json:"configured_at"`
}

// TestResult is the outcome of a simulated transfer.
type TestResult struct {
	ID          string       `json:"id"`
	Bridge      string       `json:"bridge"`
	Source      string       `json:"source"`
	Target      string       `json:"target"`
	Amount      string       `json:"amount"`
	Fee         string       `json:"fee"`
	Received    string       `json:"received"`
	Phases      []StepResult `json:"phases"`
	TotalMS     int64        `json:"total_ms"`
	Status      string       `json:"status"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}

type phase struct {
	name string
	base time.Duration
}

var (
	setupSteps = []phase{
		{"verify_token_contract", 300 * time.Millisecond},
		{"register_token_mapping", 500 * time.Millisecond},
		{"set_transfer_limits", 200 * time.Millisecond},
		{"enable_route", 200 * time.Millisecond},
	}
	transferPhases = []phase{
		{"initiate", 500 * time.Millisecond},
		{"confirm", 1000 * time.Millisecond},
		{"relay", 1500 * time.Millisecond},
		{"finalize", 800 * time.Millisecond},
	}
)

// PhaseNames returns the transfer phases in execution order.
func PhaseNames() []string {
	out := make([]string, len(transferPhases))
	for i, p := range transferPhases {
		out[i] = p.name
	}
	return out
}

// =============================================================================
// Service
// =============================================================================

// Options configures a Service. Everything except Store is optional.
type Options struct {
	Store    *jsonstore.Store
	Registry *deployment.Registry
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
	Decimals int

	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a random extra delay in [0, max).
	Jitter func(max time.Duration) time.Duration
	// MaxJitter bounds the random delay added to each phase.
	MaxJitter time.Duration
	// Scale multiplies every base latency; 0 means 1.
	Scale float64
	Now   func() time.Time
}

// Service configures and tests bridges.
type Service struct {
	store    *jsonstore.Store
	registry *deployment.Registry
	metrics  *metrics.Metrics
	logger   *logging.Logger
	decimals int

	sleep     func(ctx context.Context, d time.Duration) error
	jitter    func(max time.Duration) time.Duration
	maxJitter time.Duration
	scale     float64
	now       func() time.Time
}

// New creates a bridge service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("bridge: store is required")
	}
	s := &Service{
		store:     opts.Store,
		registry:  opts.Registry,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		decimals:  opts.Decimals,
		sleep:     opts.Sleep,
		jitter:    opts.Jitter,
		maxJitter: opts.MaxJitter,
		scale:     opts.Scale,
		now:       opts.Now,
	}
	if s.logger == nil {
		s.logger = logging.NewDiscard("bridge")
	}
	if s.decimals == 0 {
		s.decimals = chain.EtherDecimals
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.jitter == nil {
		s.jitter = newRandomJitter(time.Now().UnixNano())
	}
	if s.maxJitter == 0 {
		s.maxJitter = 500 * time.Millisecond
	}
	if s.scale <= 0 {
		s.scale = 1
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Configure validates the route, runs the provisioning steps and stores the
// bridge configuration.
func (s *Service) Configure(ctx context.Context, req ConfigureRequest) (*Config, error) {
	b, err := lookup(req.Bridge)
	if err != nil {
		return nil, err
	}
	source := normalizeChain(req.Source, b.DefaultSource)
	target := normalizeChain(req.Target, b.DefaultTarget)
	if source == target {
		return nil, fmt.Errorf("%w: source and target are both %s", ErrInvalidRoute, source)
	}
	for _, c := range []string{source, target} {
		if !b.SupportsChain(c) {
			return nil, fmt.Errorf("%w: %s does not support %s (supported: %s)", ErrInvalidRoute, b.Key, c, strings.Join(b.Chains, ", "))
		}
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"bridge": b.Key,
		"source": source,
		"target": target,
	})
	log.Info("configuring bridge")

	steps, err := s.runPhases(ctx, setupSteps, req.Progress)
	if err != nil {
		return nil, fmt.Errorf("configure %s: %w", b.Key, err)
	}

	cfg := &Config{
		Bridge:          b.Key,
		Name:            b.Name,
		Kind:            b.Kind,
		Source:          source,
		Target:          target,
		FeeBps:          b.FeeBps,
		MinTransfer:     b.MinTransfer,
		MaxTransfer:     b.MaxTransfer,
		FinalityMinutes: b.FinalityMinutes,
		Steps:           steps,
		Status:          StatusConfigured,
		ConfiguredAt:    s.now().UTC(),
	}
	if s.registry != nil {
		if rec, err := s.registry.Get(source); err == nil {
			cfg.TokenContract = rec.Address
		}
	}

	if err := s.store.Put(jsonstore.CollectionBridges, b.Key, cfg); err != nil {
		return nil, fmt.Errorf("save bridge config: %w", err)
	}
	log.WithField("token_contract", cfg.TokenContract).Info("bridge configured")
	return cfg, nil
}

// Test runs the four transfer phases against a configured bridge and stores
// the result, including failed runs.
func (s *Service) Test(ctx context.Context, req TestRequest) (*TestResult, error) {
	b, err := lookup(req.Bridge)
	if err != nil {
		return nil, err
	}
	cfg, err := s.Status(ctx, b.Key)
	if err != nil {
		return nil, err
	}

	amount, err := s.parseAmount(req.Amount, b)
	if err != nil {
		return nil, err
	}
	fee := new(big.Int).Mul(amount, big.NewInt(b.FeeBps))
	fee.Quo(fee, big.NewInt(10000))
	received := new(big.Int).Sub(amount, fee)

	res := &TestResult{
		ID:        uuid.NewString(),
		Bridge:    b.Key,
		Source:    cfg.Source,
		Target:    cfg.Target,
		Amount:    chain.FormatUnits(amount, s.decimals),
		Fee:       chain.FormatUnits(fee, s.decimals),
		Received:  chain.FormatUnits(received, s.decimals),
		StartedAt: s.now().UTC(),
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"bridge": b.Key,
		"amount": res.Amount,
	})
	log.Info("testing bridge transfer")

	phases, runErr := s.runPhases(ctx, transferPhases, req.Progress)
	res.Phases = phases
	for _, p := range phases {
		res.TotalMS += p.DurationMS
	}
	res.CompletedAt = s.now().UTC()
	res.Status = StatusPassed
	if runErr != nil {
		res.Status = StatusFailed
		res.Error = runErr.Error()
	}

	if s.metrics != nil {
		s.metrics.RecordBridgeTest(b.Key, res.Status, time.Duration(res.TotalMS)*time.Millisecond)
	}
	if err := s.store.Put(jsonstore.CollectionBridges, b.Key+testSuffix, res); err != nil {
		return nil, fmt.Errorf("save bridge test: %w", err)
	}
	if runErr != nil {
		log.WithError(runErr).Warn("bridge test aborted")
		return res, fmt.Errorf("test %s: %w", b.Key, runErr)
	}

	log.WithFields(map[string]interface{}{
		"fee":      res.Fee,
		"total_ms": res.TotalMS,
	}).Info("bridge test passed")
	return res, nil
}

// Status returns the stored configuration of bridge.
func (s *Service) Status(ctx context.Context, bridge string) (*Config, error) {
	b, err := lookup(bridge)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := s.store.Get(jsonstore.CollectionBridges, b.Key, &cfg); err != nil {
		if errors.Is(err, jsonstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, b.Key)
		}
		return nil, err
	}
	return &cfg, nil
}

// LastTest returns the stored result of the latest test of bridge.
func (s *Service) LastTest(ctx context.Context, bridge string) (*TestResult, error) {
	b, err := lookup(bridge)
	if err != nil {
		return nil, err
	}
	var res TestResult
	if err := s.store.Get(jsonstore.CollectionBridges, b.Key+testSuffix, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ErrorLog is the body of ErrorLogFile.
type ErrorLog struct {
	Error     string    `json:"error"`
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordFailure writes ErrorLogFile for a failed stage.
func (s *Service) RecordFailure(ctx context.Context, stage string, err error) error {
	entry := ErrorLog{Error: err.Error(), Stage: stage, Timestamp: s.now().UTC()}
	if werr := s.store.Put(jsonstore.CollectionBridges, strings.TrimSuffix(ErrorLogFile, ".json"), entry); werr != nil {
		return fmt.Errorf("write error log: %w", werr)
	}
	s.logger.WithContext(ctx).WithError(err).WithField("stage", stage).Error("bridge action failed")
	return nil
}

// List returns every stored bridge configuration in key order.
func (s *Service) List(ctx context.Context) ([]Config, error) {
	keys, err := s.store.List(jsonstore.CollectionBridges)
	if err != nil {
		return nil, err
	}
	out := make([]Config, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, testSuffix) {
			continue
		}
		if _, ok := Lookup(key); !ok {
			continue
		}
		var cfg Config
		if err := s.store.Get(jsonstore.CollectionBridges, key, &cfg); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Service) runPhases(ctx context.Context, phases []phase, progress ProgressFunc) ([]StepResult, error) {
	results := make([]StepResult, 0, len(phases))
	for i, p := range phases {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if progress != nil {
			progress(p.name, i+1, len(phases))
		}
		d := time.Duration(float64(p.base)*s.scale) + s.jitter(s.maxJitter)
		if err := s.sleep(ctx, d); err != nil {
			return results, fmt.Errorf("phase %s: %w", p.name, err)
		}
		results = append(results, StepResult{Name: p.name, DurationMS: d.Milliseconds()})
	}
	return results, nil
}

func (s *Service) parseAmount(raw string, b Bridge) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "1"
	}
	amount, err := chain.ParseUnits(raw, s.decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	min, _ := chain.ParseUnits(b.MinTransfer, s.decimals)
	max, _ := chain.ParseUnits(b.MaxTransfer, s.decimals)
	if min != nil && amount.Cmp(min) < 0 {
		return nil, fmt.Errorf("%w: %s is below the %s minimum of %s", ErrInvalidAmount, raw, b.Key, b.MinTransfer)
	}
	if max != nil && amount.Cmp(max) > 0 {
		return nil, fmt.Errorf("%w: %s exceeds the %s maximum of %s", ErrInvalidAmount, raw, b.Key, b.MaxTransfer)
	}
	return amount, nil
}

func lookup(key string) (Bridge, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	b, ok := Lookup(key)
	if !ok {
		return Bridge{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownBridge, key, strings.Join(Keys(), ", "))
	}
	return b, nil
}

func normalizeChain(v, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return fallback
	}
	return v
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func newRandomJitter(seed int64) func(max time.Duration) time.Duration {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(seed))
	return func(max time.Duration) time.Duration {
		if max <= 0 {
			return 0
		}
		mu.Lock()
		defer mu.Unlock()
		return time.Duration(rng.Int63n(int64(max)))
	}
}
