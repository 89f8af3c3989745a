package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/GuardianChain/launch_layer/internal/cache"
	"github.com/GuardianChain/launch_layer/internal/config"
	"github.com/GuardianChain/launch_layer/internal/database"
	"github.com/GuardianChain/launch_layer/internal/deployment"
	"github.com/GuardianChain/launch_layer/internal/i18n"
	"github.com/GuardianChain/launch_layer/internal/jsonstore"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/internal/metrics"
	"github.com/GuardianChain/launch_layer/internal/middleware"
	"github.com/GuardianChain/launch_layer/services/admin"
	"github.com/GuardianChain/launch_layer/services/bridge"
	"github.com/GuardianChain/launch_layer/services/catalog"
	"github.com/GuardianChain/launch_layer/services/cexapply"
	"github.com/GuardianChain/launch_layer/services/common/service"
	"github.com/GuardianChain/launch_layer/services/launchcontrol"
	"github.com/GuardianChain/launch_layer/services/supabaseops"
	supabase "github.com/GuardianChain/launch_layer/supabase/client"
)

const (
	serviceID      = "gateway"
	serviceName    = "GuardianChain Launch Gateway"
	serviceVersion = "1.0.0"

	limiterCleanupInterval = 5 * time.Minute
)

// server is the assembled gateway.
type server struct {
	base    *service.BaseService
	handler http.Handler
	closers []func() error
}

// newServer wires every service onto one router. Optional backends
// (Postgres, Redis, Supabase, the deployer key) fall back to in-process
// implementations or disabled features when not configured.
func newServer(ctx context.Context, cfg config.Config, logger *logging.Logger) (*server, error) {
	s := &server{}

	launch, err := config.LoadLaunchConfigOrDefault(cfg.LaunchConfigPath)
	if err != nil {
		return nil, err
	}
	store := jsonstore.New(cfg.DataDir)
	registry := deployment.NewRegistry(store)
	m := metrics.New()

	var sb *supabase.Client
	var transport *supabase.ResilientTransport
	if cfg.SupabaseConfigured() {
		client, tr, err := supabase.NewResilient(supabase.ResilientConfig{
			Config:               supabase.Config{URL: cfg.SupabaseURL, APIKey: cfg.SupabaseServiceKey},
			RetryConfig:          supabase.DefaultRetryConfig(),
			CircuitBreakerConfig: supabase.DefaultCircuitBreakerConfig(),
		})
		if err != nil {
			return nil, fmt.Errorf("create supabase client: %w", err)
		}
		sb, transport = client, tr
	} else {
		logger.Warn("SUPABASE_URL or SUPABASE_SERVICE_KEY not set; supabase features disabled")
	}

	var recorder database.Recorder
	if cfg.DatabaseURL != "" {
		pg, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pg.Close)
		recorder = pg
	} else {
		recorder = database.NewMemoryRecorder(0)
	}
	if sb != nil {
		recorder = database.NewSupabaseMirror(recorder, sb, "", logger)
	}

	var c cache.Cache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, "gtt")
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, rc.Close)
		c = rc
	} else {
		c = cache.NewMemory()
	}

	var deployer deployment.Deployer
	if cfg.DeployerPrivateKey != "" {
		td, err := deployment.NewTokenDeployer(launch.Token, cfg.TokenArtifact, cfg.DeployerPrivateKey, deployment.SourceAPI)
		if err != nil {
			logger.WithError(err).Warn("token deployer unavailable; /deploy-network disabled")
		} else {
			deployer = td
		}
	} else {
		logger.Warn("DEPLOYER_PRIVATE_KEY not set; /deploy-network disabled")
	}

	apps, err := cexapply.NewBuilder(cexapply.Options{
		Launch:   launch,
		Store:    store,
		Registry: registry,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	bridges, err := bridge.New(bridge.Options{
		Store:    store,
		Registry: registry,
		Metrics:  m,
		Logger:   logger,
		Decimals: launch.Token.Decimals,
	})
	if err != nil {
		return nil, err
	}

	auth := middleware.NewAuthMiddleware(cfg.AdminJWTSecret, middleware.RoleAdmin, logger, nil).Handler
	router := mux.NewRouter()

	launchSvc, err := launchcontrol.New(launchcontrol.Config{
		Launch:       launch,
		Store:        store,
		Deployer:     deployer,
		Applications: apps,
		Bridges:      bridges,
		Cache:        c,
		Recorder:     recorder,
		Metrics:      m,
		Logger:       logger,
		Auth:         auth,
	})
	if err != nil {
		return nil, err
	}

	supabaseSvc := supabaseops.New(supabaseops.Config{
		Client:    sb,
		Transport: transport,
		Steps:     launch.HardeningSteps,
		Recorder:  recorder,
		Metrics:   m,
		Logger:    logger,
		Auth:      auth,
	})

	data, err := catalog.Embedded()
	if err != nil {
		return nil, err
	}
	catalogSvc := catalog.NewService(data, c, logger)

	lang, err := i18n.New()
	if err != nil {
		return nil, err
	}

	base := service.NewBase(service.BaseConfig{
		ID:      serviceID,
		Name:    serviceName,
		Version: serviceVersion,
		Logger:  logger,
		Router:  router,
	})
	base.WithStats(launchSvc.Statistics)

	adminSvc := admin.New(admin.Config{
		Recorder: recorder,
		DataDir:  cfg.DataDir,
		Uptime:   base.Uptime,
		Logger:   logger,
		Auth:     auth,
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	base.AddTickerWorker(limiterCleanupInterval, func(ctx context.Context) error {
		if n := limiter.Cleanup(); n > 0 {
			logger.WithContext(ctx).WithField("removed", n).Debug("rate limiters pruned")
		}
		return nil
	})

	base.RegisterStandardRoutes()
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	launchSvc.RegisterRoutes(router)
	supabaseSvc.RegisterRoutes(router)
	catalogSvc.RegisterRoutes(router)
	adminSvc.RegisterRoutes(router)
	lang.RegisterRoutes(router)

	s.base = base
	s.handler = chain(router, logger, m, lang, middleware.NewCORSMiddleware(cfg.CORSOrigins), limiter)
	return s, nil
}

// Close releases backend connections.
func (s *server) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
