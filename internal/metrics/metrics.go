// Package metrics exposes Prometheus collectors for the launch layer.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gtt_launch"

// Metrics holds the collectors of one process, registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	deployments    *prometheus.CounterVec
	fundingChecks  *prometheus.CounterVec
	fundingBalance *prometheus.GaugeVec
	bridgeTests    *prometheus.CounterVec
	bridgeDuration *prometheus.HistogramVec
	applications   *prometheus.CounterVec
	supabaseHealth *prometheus.GaugeVec
	hardeningSteps *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"service", "method", "path"}),

		deployments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "deployments_total",
			Help:      "Token deployment attempts by network and outcome.",
		}, []string{"network", "status"}),
		fundingChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "funding",
			Name:      "checks_total",
			Help:      "Deployer balance checks by outcome.",
		}, []string{"network", "outcome"}),
		fundingBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "funding",
			Name:      "deployer_balance",
			Help:      "Last observed deployer balance in native currency.",
		}, []string{"network"}),
		bridgeTests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "tests_total",
			Help:      "Simulated bridge transfers by bridge and outcome.",
		}, []string{"bridge", "status"}),
		bridgeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "test_duration_seconds",
			Help:      "Duration of simulated bridge transfers.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"bridge"}),
		applications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cex",
			Name:      "applications_total",
			Help:      "Exchange listing applications by exchange and status.",
		}, []string{"exchange", "status"}),
		supabaseHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supabase",
			Name:      "component_up",
			Help:      "Supabase component health (1 healthy, 0 unhealthy).",
		}, []string{"component"}),
		hardeningSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supabase",
			Name:      "hardening_steps_total",
			Help:      "Security hardening steps by step and outcome.",
		}, []string{"step", "outcome"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.deployments,
		m.fundingChecks,
		m.fundingBalance,
		m.bridgeTests,
		m.bridgeDuration,
		m.applications,
		m.supabaseHealth,
		m.hardeningSteps,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// =============================================================================
// HTTP
// =============================================================================

// IncrementInFlight marks the start of a request.
func (m *Metrics) IncrementInFlight() {
	m.httpInFlight.Inc()
}

// DecrementInFlight marks the end of a request.
func (m *Metrics) DecrementInFlight() {
	m.httpInFlight.Dec()
}

// RecordHTTPRequest records a completed request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	method = strings.ToUpper(method)
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// =============================================================================
// Launch Operations
// =============================================================================

// RecordDeployment counts a token deployment attempt.
func (m *Metrics) RecordDeployment(network, status string) {
	m.deployments.WithLabelValues(network, status).Inc()
}

// RecordFundingCheck counts a deployer balance check and stores the balance.
func (m *Metrics) RecordFundingCheck(network, outcome string, balance float64) {
	m.fundingChecks.WithLabelValues(network, outcome).Inc()
	if outcome != "error" {
		m.fundingBalance.WithLabelValues(network).Set(balance)
	}
}

// RecordBridgeTest counts a simulated bridge transfer.
func (m *Metrics) RecordBridgeTest(bridge, status string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	m.bridgeTests.WithLabelValues(bridge, status).Inc()
	m.bridgeDuration.WithLabelValues(bridge).Observe(duration.Seconds())
}

// RecordApplication counts an exchange application state change.
func (m *Metrics) RecordApplication(exchange, status string) {
	m.applications.WithLabelValues(exchange, status).Inc()
}

// SetSupabaseHealth records whether a Supabase component answered.
func (m *Metrics) SetSupabaseHealth(component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	m.supabaseHealth.WithLabelValues(component).Set(v)
}

// RecordHardeningStep counts a security hardening step.
func (m *Metrics) RecordHardeningStep(step string, ok bool) {
	outcome := "failed"
	if ok {
		outcome = "applied"
	}
	m.hardeningSteps.WithLabelValues(step, outcome).Inc()
}
