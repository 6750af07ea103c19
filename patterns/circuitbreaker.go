package patterns

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hivekit-dev/hivekit/agent"
	"github.com/hivekit-dev/hivekit/internal/telemetry"
)

// CircuitState is the circuit breaker's routing state.
type CircuitState string

const (
	// CircuitClosed routes calls to the primary agent.
	CircuitClosed CircuitState = "closed"
	// CircuitOpen routes calls straight to the fallback agent.
	CircuitOpen CircuitState = "open"
	// CircuitHalfOpen allows one trial call against the primary.
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	MaxFailures   int           // consecutive primary failures before opening, default 3
	ResetTimeout  time.Duration // open duration before a half-open trial, default 60s
	PrimaryModel  string
	FallbackModel string

	// Now overrides the wall clock, for tests. Default time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

// CircuitBreaker routes calls to a primary agent until it fails too many
// times in a row, then degrades to a fallback agent. After ResetTimeout the
// primary gets one trial call; success closes the circuit again. On any
// primary failure the same call is retried against the fallback, so callers
// get a result unless the fallback itself fails.
type CircuitBreaker struct {
	rt           agent.Runtime
	primaryRole  string
	fallbackRole string
	cfg          CircuitBreakerConfig
	now          func() time.Time
	logger       *zap.Logger
	id           string

	mu          sync.Mutex
	state       CircuitState
	failures    int
	lastFailure time.Time
	primary     agent.Agent
	fallback    agent.Agent
}

// NewCircuitBreaker creates a CircuitBreaker in the closed state.
func NewCircuitBreaker(rt agent.Runtime, primaryRole, fallbackRole string, cfg CircuitBreakerConfig) (*CircuitBreaker, error) {
	if rt == nil {
		return nil, fmt.Errorf("patterns: circuit breaker requires a runtime")
	}
	if primaryRole == "" || fallbackRole == "" {
		return nil, fmt.Errorf("patterns: circuit breaker requires primary and fallback roles")
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.MaxFailures < 1 {
		return nil, fmt.Errorf("patterns: max failures must be positive, got %d", cfg.MaxFailures)
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	if cfg.ResetTimeout < 0 {
		return nil, fmt.Errorf("patterns: reset timeout must be positive, got %v", cfg.ResetTimeout)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &CircuitBreaker{
		rt:           rt,
		primaryRole:  primaryRole,
		fallbackRole: fallbackRole,
		cfg:          cfg,
		now:          now,
		logger:       cfg.Logger,
		id:           uuid.NewString(),
		state:        CircuitClosed,
	}, nil
}

// Execute runs query against the primary or fallback agent per the circuit
// state.
func (cb *CircuitBreaker) Execute(ctx context.Context, query string) (result string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "circuitbreaker", cb.id)
	defer span.End()
	defer func() { telemetry.CountExecution("circuitbreaker", err) }()

	if cb.shouldTryPrimary() {
		primary, err := cb.ensurePrimary(ctx)
		if err != nil {
			return "", err
		}
		var out string
		if err := primary.Invoke(ctx, query, &out); err == nil {
			cb.recordSuccess()
			return out, nil
		}
		cb.recordFailure()
		cb.logger.Warn("primary agent failed, degrading to fallback",
			zap.String("circuit_id", cb.id),
			zap.String("state", string(cb.State())))
	}

	fallback, err := cb.ensureFallback(ctx)
	if err != nil {
		return "", err
	}
	var out string
	if err := fallback.Invoke(ctx, query, &out); err != nil {
		return "", err
	}
	return out, nil
}

// State reports the current circuit state. An open circuit whose reset
// timeout has elapsed still reports open until the next Execute moves it to
// half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures reports the consecutive primary failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

func (cb *CircuitBreaker) shouldTryPrimary() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.cfg.ResetTimeout {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	}
	return true
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = CircuitClosed
	cb.lastFailure = time.Time{}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = cb.now()
	if cb.failures >= cb.cfg.MaxFailures || cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
	}
}

func (cb *CircuitBreaker) ensurePrimary(ctx context.Context) (agent.Agent, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.primary != nil {
		return cb.primary, nil
	}
	primary, err := spawn(ctx, cb.rt, cb.primaryRole, cb.cfg.PrimaryModel, agent.PatternInfo{
		Pattern:    "circuitbreaker",
		InstanceID: cb.id,
		AgentRole:  "primary",
	})
	if err != nil {
		return nil, err
	}
	cb.primary = primary
	return primary, nil
}

func (cb *CircuitBreaker) ensureFallback(ctx context.Context) (agent.Agent, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.fallback != nil {
		return cb.fallback, nil
	}
	fallback, err := spawn(ctx, cb.rt, cb.fallbackRole, cb.cfg.FallbackModel, agent.PatternInfo{
		Pattern:    "circuitbreaker",
		InstanceID: cb.id,
		AgentRole:  "fallback",
	})
	if err != nil {
		return nil, err
	}
	cb.fallback = fallback
	return fallback, nil
}
