// Package breaker implements a circuit breaker guarding rule store calls.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the circuit is open and calls are short-circuited.
var ErrOpen = errors.New("breaker: circuit open")

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls pass through and failures are counted.
	StateClosed State = iota
	// StateOpen means calls short-circuit without invoking the operation.
	StateOpen
	// StateHalfOpen means a limited number of trial calls probe recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures the circuit breaker.
type Config struct {
	// WindowSize is the number of recent calls tracked in the rolling window.
	// Default: 20
	WindowSize int

	// FailureRate opens the circuit once the failure fraction over the window
	// reaches this value. Default: 0.5
	FailureRate float64

	// MinCalls is the minimum number of recorded calls before the failure
	// rate is evaluated. Default: 5
	MinCalls int

	// CoolDown is how long the circuit stays open before probing recovery.
	// Default: 30 seconds
	CoolDown time.Duration

	// HalfOpenMaxRequests is the max trial calls allowed in half-open state.
	// Default: 1
	HalfOpenMaxRequests int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool
}

// CircuitBreaker tracks call outcomes over a rolling window and short-circuits
// once the failure rate crosses the configured threshold.
type CircuitBreaker struct {
	config Config

	mu             sync.Mutex
	state          State
	window         []bool
	windowPos      int
	windowFilled   int
	windowFailures int
	lastTransition time.Time
	halfOpenCount  int
}

// New creates a circuit breaker with defaults applied.
func New(config Config) *CircuitBreaker {
	if config.WindowSize <= 0 {
		config.WindowSize = 20
	}
	if config.FailureRate <= 0 {
		config.FailureRate = 0.5
	}
	if config.MinCalls <= 0 {
		config.MinCalls = 5
	}
	if config.CoolDown <= 0 {
		config.CoolDown = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		window: make([]bool, config.WindowSize),
	}
}

// Execute runs the operation through the circuit breaker. When the circuit is
// open it returns ErrOpen without invoking the operation.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset returns the breaker to closed with an empty window.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.state = StateClosed
	cb.clearWindowLocked()
	cb.halfOpenCount = 0
	cb.lastTransition = time.Now()

	if oldState != StateClosed && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, StateClosed)
	}
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxRequests {
			return ErrOpen
		}
		cb.halfOpenCount++
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	isFailure := cb.config.IsFailure(err)
	oldState := cb.state

	switch cb.state {
	case StateClosed:
		cb.recordLocked(isFailure)
		if cb.windowFilled >= cb.config.MinCalls && cb.failureRateLocked() >= cb.config.FailureRate {
			cb.setStateLocked(StateOpen)
		}

	case StateHalfOpen:
		if isFailure {
			cb.setStateLocked(StateOpen)
		} else {
			cb.setStateLocked(StateClosed)
			cb.clearWindowLocked()
		}
	}

	if oldState != cb.state && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, cb.state)
	}
}

// recordLocked pushes one outcome into the rolling window.
func (cb *CircuitBreaker) recordLocked(failure bool) {
	if cb.windowFilled == len(cb.window) && cb.window[cb.windowPos] {
		cb.windowFailures--
	}
	cb.window[cb.windowPos] = failure
	cb.windowPos = (cb.windowPos + 1) % len(cb.window)
	if cb.windowFilled < len(cb.window) {
		cb.windowFilled++
	}
	if failure {
		cb.windowFailures++
	}
}

func (cb *CircuitBreaker) failureRateLocked() float64 {
	if cb.windowFilled == 0 {
		return 0
	}
	return float64(cb.windowFailures) / float64(cb.windowFilled)
}

func (cb *CircuitBreaker) clearWindowLocked() {
	for i := range cb.window {
		cb.window[i] = false
	}
	cb.windowPos = 0
	cb.windowFilled = 0
	cb.windowFailures = 0
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastTransition) >= cb.config.CoolDown {
		cb.state = StateHalfOpen
		cb.halfOpenCount = 0
		cb.lastTransition = time.Now()
		if cb.config.OnStateChange != nil {
			cb.config.OnStateChange(StateOpen, StateHalfOpen)
		}
	}
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(state State) {
	cb.state = state
	cb.lastTransition = time.Now()
	if state == StateHalfOpen {
		cb.halfOpenCount = 0
	}
}

// Metrics returns a snapshot of the breaker's counters.
type Metrics struct {
	State          State
	WindowCalls    int
	WindowFailures int
	LastTransition time.Time
}

// Snapshot reports the current breaker metrics.
func (cb *CircuitBreaker) Snapshot() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Metrics{
		State:          cb.currentStateLocked(),
		WindowCalls:    cb.windowFilled,
		WindowFailures: cb.windowFailures,
		LastTransition: cb.lastTransition,
	}
}
