// Package funding watches the deployer wallet and deploys the token once the
// wallet holds enough native currency to pay for the deployment.
package funding

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"

	"github.com/GuardianChain/launch_layer/internal/chain"
	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/internal/database"
	"github.com/GuardianChain/launch_layer/internal/deployment"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/internal/metrics"
)

const (
	DefaultThreshold = "0.1"
	DefaultInterval  = 30 * time.Second
)

var (
	// ErrAlreadyDeployed is returned by Start when the network already has a
	// deployment record.
	ErrAlreadyDeployed = errors.New("token already deployed")
	// ErrStopped is returned by Wait when the watcher was stopped before the
	// wallet was funded.
	ErrStopped = errors.New("funding watcher stopped")
	// ErrBalanceUnavailable wraps balance read failures. They are retried on
	// the next tick.
	ErrBalanceUnavailable = errors.New("balance unavailable")
)

// Config configures a watcher.
type Config struct {
	Network   config.NetworkConfig
	Wallet    common.Address
	Threshold string // native units, e.g. "0.1"
	Interval  time.Duration
}

// Deps are the collaborators of a watcher. Recorder and Metrics are optional.
type Deps struct {
	Client   *chain.Client
	Deployer deployment.Deployer
	Registry *deployment.Registry
	Recorder database.Recorder
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
}

// Watcher polls a wallet balance on a cron schedule.
type Watcher struct {
	cfg       Config
	deps      Deps
	threshold *big.Int

	cron   *cron.Cron
	job    cron.Job
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce    sync.Once
	finishOnce   sync.Once
	shutdownOnce sync.Once
	done         chan struct{}

	mu     sync.Mutex
	result *deployment.Record
	err    error
	checks int
}

// New validates cfg and creates a watcher.
func New(cfg Config, deps Deps) (*Watcher, error) {
	if cfg.Network.Name == "" {
		return nil, fmt.Errorf("funding: network is required")
	}
	if cfg.Wallet == (common.Address{}) {
		return nil, fmt.Errorf("funding: wallet address is required")
	}
	if deps.Client == nil || deps.Deployer == nil || deps.Registry == nil {
		return nil, fmt.Errorf("funding: client, deployer and registry are required")
	}
	if cfg.Threshold == "" {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	threshold, err := chain.ParseEther(cfg.Threshold)
	if err != nil {
		return nil, fmt.Errorf("funding: parse threshold: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewDiscard("funding")
	}

	return &Watcher{
		cfg:       cfg,
		deps:      deps,
		threshold: threshold,
		done:      make(chan struct{}),
	}, nil
}

// Threshold returns the funding threshold in wei.
func (w *Watcher) Threshold() *big.Int {
	return new(big.Int).Set(w.threshold)
}

// Checks returns the number of completed balance checks.
func (w *Watcher) Checks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.checks
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start runs one check immediately and then one per interval. Checks never
// overlap; a tick that fires while a check is in flight is skipped.
func (w *Watcher) Start(ctx context.Context) error {
	if w.deps.Registry.Exists(w.cfg.Network.Name) {
		return fmt.Errorf("%s: %w", w.cfg.Network.Name, ErrAlreadyDeployed)
	}

	started := false
	w.startOnce.Do(func() {
		started = true
		runCtx, cancel := context.WithCancel(ctx)
		w.cancel = cancel

		cronLog := cronLogger{logger: w.deps.Logger}
		w.cron = cron.New(cron.WithLogger(cronLog))
		w.job = cron.NewChain(cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(func() {
			w.run(runCtx)
		}))
		w.cron.Schedule(cron.Every(w.cfg.Interval), w.job)
		w.cron.Start()

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.job.Run()
		}()

		go func() {
			select {
			case <-runCtx.Done():
				w.finish(nil, ErrStopped)
			case <-w.done:
			}
		}()

		w.deps.Logger.WithContext(ctx).WithFields(map[string]interface{}{
			"network":   w.cfg.Network.Name,
			"wallet":    w.cfg.Wallet.Hex(),
			"threshold": w.cfg.Threshold,
			"interval":  w.cfg.Interval.String(),
		}).Info("funding watcher started")
	})
	if !started {
		return fmt.Errorf("funding: watcher already started")
	}
	return nil
}

// Stop ends polling. It is idempotent and waits for an in-flight check.
func (w *Watcher) Stop() {
	w.finish(nil, ErrStopped)
	w.shutdown()
}

// Wait blocks until the token is deployed, a deployment fails or the watcher
// is stopped. It must only be called after a successful Start.
func (w *Watcher) Wait() (*deployment.Record, error) {
	<-w.done
	w.shutdown()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result, w.err
}

func (w *Watcher) finish(rec *deployment.Record, err error) {
	w.finishOnce.Do(func() {
		w.mu.Lock()
		w.result, w.err = rec, err
		w.mu.Unlock()
		if w.cancel != nil {
			w.cancel()
		}
		close(w.done)
	})
}

func (w *Watcher) shutdown() {
	w.shutdownOnce.Do(func() {
		if w.cron != nil {
			<-w.cron.Stop().Done()
		}
		w.wg.Wait()
	})
}

func (w *Watcher) run(ctx context.Context) {
	select {
	case <-w.done:
		return
	default:
	}

	rec, err := w.check(ctx)
	switch {
	case err == nil && rec == nil:
	case errors.Is(err, ErrBalanceUnavailable):
		w.deps.Logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"network": w.cfg.Network.Name,
		}).Warn("balance check failed, retrying next tick")
	case ctx.Err() != nil:
		// Stopped mid-check.
	default:
		w.finish(rec, err)
	}
}

// =============================================================================
// Balance Check
// =============================================================================

// CheckOnce reads the balance and deploys when it reaches the threshold. It
// reports whether a deployment happened.
func (w *Watcher) CheckOnce(ctx context.Context) (bool, error) {
	rec, err := w.check(ctx)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

func (w *Watcher) check(ctx context.Context) (*deployment.Record, error) {
	network := w.cfg.Network.Name
	log := w.deps.Logger.WithContext(ctx)

	balance, err := w.deps.Client.BalanceOf(ctx, w.cfg.Wallet)
	w.mu.Lock()
	w.checks++
	w.mu.Unlock()
	if err != nil {
		w.recordCheck("error", nil)
		return nil, fmt.Errorf("%w: %v", ErrBalanceUnavailable, err)
	}

	if balance.Cmp(w.threshold) < 0 {
		w.recordCheck("waiting", balance)
		log.WithFields(map[string]interface{}{
			"network":   network,
			"balance":   chain.FormatEther(balance),
			"threshold": w.cfg.Threshold,
		}).Info("waiting for funding")
		return nil, nil
	}

	w.recordCheck("funded", balance)
	log.WithFields(map[string]interface{}{
		"network": network,
		"balance": chain.FormatEther(balance),
	}).Info("wallet funded, deploying token")

	rec, err := w.deps.Deployer.Deploy(ctx, w.cfg.Network)
	if err != nil {
		w.recordDeployment(ctx, nil, err)
		return nil, err
	}
	if err := w.deps.Registry.Save(rec); err != nil {
		w.recordDeployment(ctx, rec, err)
		return nil, fmt.Errorf("save deployment: %w", err)
	}
	w.recordDeployment(ctx, rec, nil)

	log.WithFields(map[string]interface{}{
		"network": network,
		"address": rec.Address,
		"tx_hash": rec.TxHash,
	}).Info("token deployed")
	return rec, nil
}

func (w *Watcher) recordCheck(outcome string, balance *big.Int) {
	if w.deps.Metrics == nil {
		return
	}
	var value float64
	if balance != nil {
		value, _ = strconv.ParseFloat(chain.FormatEther(balance), 64)
	}
	w.deps.Metrics.RecordFundingCheck(w.cfg.Network.Name, outcome, value)
}

func (w *Watcher) recordDeployment(ctx context.Context, rec *deployment.Record, err error) {
	status := database.StatusSucceeded
	detail := map[string]interface{}{"wallet": w.cfg.Wallet.Hex()}
	if err != nil {
		status = database.StatusFailed
		detail["error"] = err.Error()
	}
	if rec != nil {
		detail["address"] = rec.Address
		detail["tx_hash"] = rec.TxHash
	}
	if w.deps.Metrics != nil {
		w.deps.Metrics.RecordDeployment(w.cfg.Network.Name, status)
	}
	if w.deps.Recorder == nil {
		return
	}
	ev := database.NewEvent(database.ActionAutoDeploy, w.cfg.Network.Name, status, detail)
	if rerr := w.deps.Recorder.Record(ctx, ev); rerr != nil {
		w.deps.Logger.WithContext(ctx).WithError(rerr).Warn("record launch event failed")
	}
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(kvFields(keysAndValues)).Error("cron: " + msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
