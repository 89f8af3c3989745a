package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/GuardianChain/launch_layer/internal/i18n"
	"github.com/GuardianChain/launch_layer/internal/logging"
	"github.com/GuardianChain/launch_layer/internal/metrics"
	"github.com/GuardianChain/launch_layer/internal/middleware"
)

// =============================================================================
// Middleware
// =============================================================================

// chain installs route-aware middleware on the router and wraps it with the
// outer layers that must also see unmatched and preflight requests.
func chain(router *mux.Router, logger *logging.Logger, m *metrics.Metrics, lang *i18n.Manager, cors *middleware.CORSMiddleware, limiter *middleware.RateLimiter) http.Handler {
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.MetricsMiddleware(serviceID, m))
	router.Use(lang.Middleware)

	var h http.Handler = router
	h = limiter.Handler(h)
	h = cors.Handler(h)
	h = middleware.NewRecoveryMiddleware(logger).Handler(h)
	return h
}
