package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"multibagger/observability"
)

// ErrServiceUnavailable is returned when a breaker rejects a call.
var ErrServiceUnavailable = errors.New("service unavailable")

// Breaker names, one per upstream.
const (
	BreakerOpenAI    = "openai"
	BreakerGroq      = "groq"
	BreakerAnthropic = "anthropic"
	BreakerBedrock   = "bedrock"
	BreakerGemini    = "gemini"
	BreakerFMP       = "fmp"
	BreakerYahoo     = "yahoo"
	BreakerNSE       = "nse"
	BreakerNewsAPI   = "newsapi"
)

// CircuitBreakerConfig tunes every breaker in a registry. Zero MinRequests
// and FailureRatio fall back to 5 requests at 50% failures.
type CircuitBreakerConfig struct {
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state count reset period
	Timeout      time.Duration // open-state duration before probing
	MinRequests  uint32
	FailureRatio float64
}

var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests:  5,
	Interval:     time.Minute,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.5,
}

// CircuitBreakerStatus is a snapshot of one breaker, served by /api/health.
type CircuitBreakerStatus struct {
	Name                 string `json:"name"`
	State                string `json:"state"`
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

// CircuitBreakerRegistry lazily creates one breaker per upstream name.
type CircuitBreakerRegistry struct {
	config   CircuitBreakerConfig
	breakers sync.Map // name -> *gobreaker.CircuitBreaker[any]
}

func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	if config.MinRequests == 0 {
		config.MinRequests = DefaultCircuitBreakerConfig.MinRequests
	}
	if config.FailureRatio <= 0 {
		config.FailureRatio = DefaultCircuitBreakerConfig.FailureRatio
	}
	return &CircuitBreakerRegistry{config: config}
}

func (r *CircuitBreakerRegistry) GetBreaker(name string) *gobreaker.CircuitBreaker[any] {
	if cb, ok := r.breakers.Load(name); ok {
		return cb.(*gobreaker.CircuitBreaker[any])
	}
	cb, _ := r.breakers.LoadOrStore(name, r.newBreaker(name))
	return cb.(*gobreaker.CircuitBreaker[any])
}

func (r *CircuitBreakerRegistry) newBreaker(name string) *gobreaker.CircuitBreaker[any] {
	cfg := r.config
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= cfg.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
		},
		IsSuccessful:  healthyOutcome,
		OnStateChange: onBreakerStateChange,
	})
}

// healthyOutcome keeps caller cancellations and unknown-symbol lookups from
// counting against the upstream.
func healthyOutcome(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func onBreakerStateChange(name string, from, to gobreaker.State) {
	observability.Warn("circuit breaker state change",
		"breaker", name,
		"from", from.String(),
		"to", to.String())

	metrics := observability.GetMetrics()
	metrics.SetCircuitBreakerState(name, breakerStateValue(to))
	if to == gobreaker.StateOpen {
		metrics.RecordCircuitBreakerTrip(name)
	}
}

// Execute runs fn through the named breaker. A done ctx short-circuits
// before fn is called.
func (r *CircuitBreakerRegistry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.GetBreaker(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		observability.Warn("circuit breaker open, rejecting request", "breaker", name)
		return nil, fmt.Errorf("%w: %s circuit breaker open", ErrServiceUnavailable, name)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.Warn("circuit breaker half-open, probe limit reached", "breaker", name)
		return nil, fmt.Errorf("%w: %s circuit breaker half-open", ErrServiceUnavailable, name)
	}
	return result, err
}

// IsBreakerOpen reports whether name exists and is rejecting calls.
func (r *CircuitBreakerRegistry) IsBreakerOpen(name string) bool {
	cb, ok := r.breakers.Load(name)
	return ok && cb.(*gobreaker.CircuitBreaker[any]).State() == gobreaker.StateOpen
}

func (r *CircuitBreakerRegistry) Status() map[string]CircuitBreakerStatus {
	out := make(map[string]CircuitBreakerStatus)
	r.breakers.Range(func(key, value any) bool {
		cb := value.(*gobreaker.CircuitBreaker[any])
		c := cb.Counts()
		out[key.(string)] = CircuitBreakerStatus{
			Name:                 cb.Name(),
			State:                cb.State().String(),
			Requests:             c.Requests,
			TotalSuccesses:       c.TotalSuccesses,
			TotalFailures:        c.TotalFailures,
			ConsecutiveSuccesses: c.ConsecutiveSuccesses,
			ConsecutiveFailures:  c.ConsecutiveFailures,
		}
		return true
	})
	return out
}

var (
	globalRegistry *CircuitBreakerRegistry
	registryOnce   sync.Once
)

func GetGlobalRegistry() *CircuitBreakerRegistry {
	registryOnce.Do(func() {
		globalRegistry = NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	})
	return globalRegistry
}

// SetGlobalRegistry replaces the shared registry; tests use it to reset state.
func SetGlobalRegistry(r *CircuitBreakerRegistry) {
	registryOnce.Do(func() {})
	globalRegistry = r
}

// WithCircuitBreaker is the typed form of Execute on the global registry.
func WithCircuitBreaker[T any](ctx context.Context, name string, fn func() (T, error)) (T, error) {
	var zero T
	result, err := GetGlobalRegistry().Execute(ctx, name, func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	return result.(T), nil
}

// breakerStateValue maps states onto the gauge: 0 closed, 1 half-open, 2 open.
func breakerStateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
