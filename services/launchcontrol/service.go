// Package launchcontrol serves the launch control API: token deployment per
// network, liquidity plans, exchange applications, bridge configuration and
// the aggregated launch status.
package launchcontrol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/GuardianChain/launch_layer/internal/cache"
	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/internal/database"
	"github.com/GuardianChain/launch_layer/internal/deployment"
	"github.com/GuardianChain/launch_layer/internal/jsonstore"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/internal/metrics"
	"github.com/GuardianChain/launch_layer/services/bridge"
	"github.com/GuardianChain/launch_layer/services/cexapply"
)

const (
	// StatusCacheKey holds the cached launch status.
	StatusCacheKey = "launch:status"
	// StatusCacheTTL bounds how stale GET /launch-status may be.
	StatusCacheTTL = 15 * time.Second
)

// Config holds the launch control collaborators. Deployer may be nil, in
// which case POST /deploy-network answers 503. Auth guards every POST route
// when set.
type Config struct {
	Launch       *config.LaunchConfig
	Store        *jsonstore.Store
	Deployer     deployment.Deployer
	Applications *cexapply.Builder
	Bridges      *bridge.Service
	Cache        cache.Cache
	Recorder     database.Recorder
	Metrics      *metrics.Metrics
	Logger       *logging.Logger
	Auth         mux.MiddlewareFunc
	Now          func() time.Time
}

// Service implements the launch control API.
type Service struct {
	launch   *config.LaunchConfig
	store    *jsonstore.Store
	registry *deployment.Registry
	deployer deployment.Deployer
	apps     *cexapply.Builder
	bridges  *bridge.Service
	cache    cache.Cache
	recorder database.Recorder
	metrics  *metrics.Metrics
	logger   *logging.Logger
	auth     mux.MiddlewareFunc
	now      func() time.Time

	mu        sync.Mutex
	deploying map[string]bool
}

// New creates the service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("launchcontrol: store is required")
	}
	if cfg.Applications == nil || cfg.Bridges == nil {
		return nil, fmt.Errorf("launchcontrol: applications and bridges are required")
	}
	if cfg.Launch == nil {
		cfg.Launch = config.DefaultLaunchConfig()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemory()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = database.NewMemoryRecorder(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscard("launchcontrol")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		launch:    cfg.Launch,
		store:     cfg.Store,
		registry:  deployment.NewRegistry(cfg.Store),
		deployer:  cfg.Deployer,
		apps:      cfg.Applications,
		bridges:   cfg.Bridges,
		cache:     cfg.Cache,
		recorder:  cfg.Recorder,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		auth:      cfg.Auth,
		now:       cfg.Now,
		deploying: make(map[string]bool),
	}, nil
}

// Registry returns the deployment registry.
func (s *Service) Registry() *deployment.Registry {
	return s.registry
}

// Statistics reports deployment counts for /info.
func (s *Service) Statistics() map[string]any {
	deployed := 0
	for _, n := range s.launch.Networks {
		if s.registry.Exists(n.Name) {
			deployed++
		}
	}
	return map[string]any{
		"networks":          len(s.launch.Networks),
		"networks_deployed": deployed,
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, StatusCacheKey); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("invalidate launch status cache failed")
	}
}

func (s *Service) record(ctx context.Context, action, target, status string, detail map[string]interface{}) {
	ev := database.NewEvent(action, target, status, detail)
	if err := s.recorder.Record(ctx, ev); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"action": action,
			"target": target,
		}).Warn("record launch event failed")
	}
}

// claim marks network as being deployed; it returns false if a deployment
// is already in flight.
func (s *Service) claim(network string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deploying[network] {
		return false
	}
	s.deploying[network] = true
	return true
}

func (s *Service) release(network string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deploying, network)
}
