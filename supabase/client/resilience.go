package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// =============================================================================
// Retry Configuration
// =============================================================================

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries        uint64
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter is the randomization factor, 0.0 to 1.0.
	Jitter float64
	// RetryableStatusCodes are HTTP status codes that should be retried.
	RetryableStatusCodes []int
}

// DefaultRetryConfig returns the retry policy used for Supabase calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryableStatusCodes: []int{
			http.StatusTooManyRequests,     // 429
			http.StatusInternalServerError, // 500
			http.StatusBadGateway,          // 502
			http.StatusServiceUnavailable,  // 503
			http.StatusGatewayTimeout,      // 504
		},
	}
}

func (c RetryConfig) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialBackoff
	b.MaxInterval = c.MaxBackoff
	b.Multiplier = c.BackoffMultiplier
	b.RandomizationFactor = c.Jitter
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, c.MaxRetries), ctx)
}

// =============================================================================
// Circuit Breaker
// =============================================================================

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// OnStateChange is called when the circuit state changes.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultCircuitBreakerConfig returns the breaker settings used for Supabase.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		HalfOpenRequests: 2,
		Timeout:          30 * time.Second,
	}
}

// ErrCircuitOpen is returned when the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// HTTPError is a response with a retryable status that survived all retries.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// =============================================================================
// Resilient Transport
// =============================================================================

// ResilientTransport is an http.RoundTripper adding retries with exponential
// backoff and a circuit breaker around a base transport.
type ResilientTransport struct {
	base    http.RoundTripper
	retry   RetryConfig
	breaker *gobreaker.CircuitBreaker

	totalRequests   int64
	successRequests int64
	failedRequests  int64
	retriedRequests int64
}

// NewResilientTransport wraps base (http.DefaultTransport when nil).
func NewResilientTransport(base http.RoundTripper, retry RetryConfig, cb CircuitBreakerConfig) *ResilientTransport {
	if base == nil {
		base = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		}
	}

	threshold := cb.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        "supabase",
		MaxRequests: cb.HalfOpenRequests,
		Timeout:     cb.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: cb.OnStateChange,
	}

	return &ResilientTransport{
		base:    base,
		retry:   retry,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// RoundTrip executes req through the breaker, retrying transient failures.
func (t *ResilientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt64(&t.totalRequests, 1)

	out, err := t.breaker.Execute(func() (interface{}, error) {
		return t.roundTripWithRetry(req)
	})
	if err != nil {
		atomic.AddInt64(&t.failedRequests, 1)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}
	atomic.AddInt64(&t.successRequests, 1)
	return out.(*http.Response), nil
}

func (t *ResilientTransport) roundTripWithRetry(req *http.Request) (*http.Response, error) {
	attempt := 0
	var resp *http.Response

	op := func() error {
		attempt++
		r := req
		if attempt > 1 {
			atomic.AddInt64(&t.retriedRequests, 1)
			clone, err := rewind(req)
			if err != nil {
				return backoff.Permanent(err)
			}
			r = clone
		}

		res, err := t.base.RoundTrip(r)
		if err != nil {
			if isRetryableError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if t.isRetryableStatusCode(res.StatusCode) {
			_, _ = io.Copy(io.Discard, res.Body)
			res.Body.Close()
			return &HTTPError{StatusCode: res.StatusCode}
		}
		resp = res
		return nil
	}

	if err := backoff.Retry(op, t.retry.policy(req.Context())); err != nil {
		return nil, err
	}
	return resp, nil
}

// rewind returns a copy of req with a fresh body.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("replay request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func (t *ResilientTransport) isRetryableStatusCode(code int) bool {
	for _, retryable := range t.retry.RetryableStatusCodes {
		if code == retryable {
			return true
		}
	}
	return false
}

// Metrics returns request counters.
func (t *ResilientTransport) Metrics() map[string]int64 {
	return map[string]int64{
		"total_requests":   atomic.LoadInt64(&t.totalRequests),
		"success_requests": atomic.LoadInt64(&t.successRequests),
		"failed_requests":  atomic.LoadInt64(&t.failedRequests),
		"retried_requests": atomic.LoadInt64(&t.retriedRequests),
	}
}

// CircuitState returns the breaker state.
func (t *ResilientTransport) CircuitState() gobreaker.State {
	return t.breaker.State()
}

// =============================================================================
// Resilient Client
// =============================================================================

// ResilientConfig extends Config with resilience options.
type ResilientConfig struct {
	Config
	RetryConfig          RetryConfig
	CircuitBreakerConfig CircuitBreakerConfig
}

// NewResilient creates a Supabase client whose requests go through a
// ResilientTransport.
func NewResilient(cfg ResilientConfig) (*Client, *ResilientTransport, error) {
	var base http.RoundTripper
	timeout := 30 * time.Second
	if cfg.HTTPClient != nil {
		base = cfg.HTTPClient.Transport
		if cfg.HTTPClient.Timeout > 0 {
			timeout = cfg.HTTPClient.Timeout
		}
	}

	transport := NewResilientTransport(base, cfg.RetryConfig, cfg.CircuitBreakerConfig)
	cfg.Config.HTTPClient = &http.Client{Transport: transport, Timeout: timeout}

	c, err := New(cfg.Config)
	if err != nil {
		return nil, nil, err
	}
	return c, transport, nil
}

// =============================================================================
// Request ID and Tracing
// =============================================================================

type requestIDKey struct{}

// WithRequestID adds a request ID to the context; it is sent as X-Request-ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
