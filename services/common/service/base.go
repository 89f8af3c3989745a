// Package service provides the shared lifecycle and standard routes for
// launch layer services.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/GuardianChain/launch_layer/internal/logging"
)

// BaseConfig contains shared configuration for all services.
type BaseConfig struct {
	ID      string
	Name    string
	Version string
	Logger  *logging.Logger
	Router  *mux.Router
}

// BaseService provides:
// - Safe stop channel management (sync.Once prevents double-close panic)
// - Background worker management
// - Statistics provider for /info endpoint
type BaseService struct {
	id      string
	name    string
	version string
	logger  *logging.Logger
	router  *mux.Router

	stopCh   chan struct{}
	stopOnce sync.Once

	statsFn  func() map[string]any
	healthFn func() string

	workers []func(context.Context)
	wg      sync.WaitGroup

	mu        sync.RWMutex
	startTime time.Time
}

// NewBase constructs a BaseService from shared config.
func NewBase(cfg BaseConfig) *BaseService {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewDiscard(cfg.ID)
	}
	router := cfg.Router
	if router == nil {
		router = mux.NewRouter()
	}
	name := cfg.Name
	if name == "" {
		name = cfg.ID
	}
	return &BaseService{
		id:      cfg.ID,
		name:    name,
		version: cfg.Version,
		logger:  logger,
		router:  router,
		stopCh:  make(chan struct{}),
	}
}

// ID returns the service identifier.
func (b *BaseService) ID() string { return b.id }

// Name returns the display name.
func (b *BaseService) Name() string { return b.name }

// Version returns the service version.
func (b *BaseService) Version() string { return b.version }

// Logger returns the service logger.
func (b *BaseService) Logger() *logging.Logger { return b.logger }

// Router returns the router routes are registered on.
func (b *BaseService) Router() *mux.Router { return b.router }

// WithStats sets a statistics provider function for the /info endpoint.
func (b *BaseService) WithStats(fn func() map[string]any) *BaseService {
	b.statsFn = fn
	return b
}

// WithHealth sets the health status provider for the /health endpoint.
func (b *BaseService) WithHealth(fn func() string) *BaseService {
	b.healthFn = fn
	return b
}

// AddWorker registers a background worker started by Start.
// Workers should return when ctx is done or StopChan is closed.
func (b *BaseService) AddWorker(fn func(context.Context)) *BaseService {
	b.workers = append(b.workers, fn)
	return b
}

// AddTickerWorker registers a worker that calls fn every interval until Stop.
func (b *BaseService) AddTickerWorker(interval time.Duration, fn func(context.Context) error) *BaseService {
	worker := func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					b.logger.WithContext(ctx).WithError(err).Warn("worker error")
				}
			}
		}
	}
	b.workers = append(b.workers, worker)
	return b
}

// StopChan exposes the stop channel for worker goroutines.
func (b *BaseService) StopChan() <-chan struct{} {
	return b.stopCh
}

// Start launches the registered workers.
func (b *BaseService) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.startTime.IsZero() {
		b.startTime = time.Now()
	}
	b.mu.Unlock()

	for _, w := range b.workers {
		worker := w
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			worker(ctx)
		}()
	}
	b.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"workers": len(b.workers),
	}).Info("service started")
	return nil
}

// Stop signals workers and waits for them to return. It is idempotent.
func (b *BaseService) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	b.wg.Wait()
	return nil
}

// WorkerCount returns the number of registered workers.
func (b *BaseService) WorkerCount() int {
	return len(b.workers)
}

// Uptime returns the time since Start.
func (b *BaseService) Uptime() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.startTime.IsZero() {
		return 0
	}
	return time.Since(b.startTime)
}

// HealthStatus returns the status reported by the health provider, or
// "healthy" when none is set.
func (b *BaseService) HealthStatus() string {
	if b.healthFn != nil {
		return b.healthFn()
	}
	return "healthy"
}
