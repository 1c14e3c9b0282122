package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/loomlab/loom/pkg/errors"
)

// BreakerState is the state of a circuit breaker.
type BreakerState string

const (
	// StateClosed means calls pass through normally.
	StateClosed BreakerState = "closed"

	// StateOpen means calls are rejected without executing.
	StateOpen BreakerState = "open"

	// StateHalfOpen means a limited number of probe calls are allowed.
	StateHalfOpen BreakerState = "half-open"
)

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int

	// SuccessThreshold is the number of successes in half-open before closing.
	SuccessThreshold int

	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration

	// Name identifies the breaker in errors and logs.
	Name string
}

// CircuitBreaker prevents cascading failures by rejecting calls to a
// backend that keeps failing.
type CircuitBreaker struct {
	config       BreakerConfig
	state        BreakerState
	failures     int
	successes    int
	lastFailTime time.Time
	mu           sync.RWMutex
}

// NewCircuitBreaker creates a circuit breaker with the given config.
// Zero fields get conservative defaults.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 2
	}
	if config.Cooldown == 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.Name == "" {
		config.Name = "breaker"
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Call executes fn if the breaker allows it, tracking the outcome.
// When the circuit is open, the call is rejected with a recoverable
// CodeLLMError so retry layers can back off and try again later.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpen()

	if cb.state == StateOpen {
		return errors.New(errors.CodeLLMError, "circuit breaker open", nil).
			WithContext("breaker", cb.config.Name).
			WithRecoverable(true)
	}

	err := fn()

	if err != nil {
		cb.failures++
		cb.lastFailTime = time.Now()

		if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			cb.state = StateOpen
			cb.failures = 0
			cb.successes = 0
		}
		return err
	}

	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
		}
	case StateClosed:
		cb.failures = 0
	}

	return nil
}

// maybeHalfOpen transitions open to half-open once the cooldown has
// elapsed. Must be called under lock.
func (cb *CircuitBreaker) maybeHalfOpen() {
	if cb.state == StateOpen && time.Since(cb.lastFailTime) > cb.config.Cooldown {
		cb.state = StateHalfOpen
		cb.successes = 0
		cb.failures = 0
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
}

// Trip forces the breaker open.
func (cb *CircuitBreaker) Trip() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateOpen
	cb.lastFailTime = time.Now()
}
