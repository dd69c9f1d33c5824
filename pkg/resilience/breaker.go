package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/mirrorlabs/copytrader/pkg/errors"
	"github.com/mirrorlabs/copytrader/pkg/logger"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
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

const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 60 * time.Second
	DefaultMonitoringPeriod = 5 * time.Minute
)

// BreakerConfig configures a single circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of failures before opening the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long to stay open before allowing a probe.
	RecoveryTimeout time.Duration

	// MonitoringPeriod bounds how long old failures count against the
	// threshold: a success in closed state clears the counter once the
	// last failure is older than this.
	MonitoringPeriod time.Duration

	// Clock is injectable for tests. Defaults to time.Now.
	Clock func() time.Time
}

func (c *BreakerConfig) applyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if c.MonitoringPeriod <= 0 {
		c.MonitoringPeriod = DefaultMonitoringPeriod
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	name   string
	config BreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(name string, config BreakerConfig) *CircuitBreaker {
	config.applyDefaults()
	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
	}
}

// Execute runs the operation through the circuit breaker. An open circuit
// fails fast with a CIRCUIT_BREAKER error; every other failure propagates
// unchanged after the state is updated.
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

// Snapshot holds a consistent view of a breaker's counters.
type Snapshot struct {
	Name        string
	State       State
	Failures    int
	LastFailure time.Time
}

// Snapshot returns the breaker's current state and counters.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		Name:        cb.name,
		State:       cb.currentStateLocked(),
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
	}
}

// Reset forces the breaker closed and clears counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probing = false
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return errors.NewCircuitBreakerError("resilience", "Execute",
			"circuit breaker "+cb.name+" is open",
			errors.WithMetadata("breaker", cb.name))
	case StateHalfOpen:
		if cb.probing {
			return errors.NewCircuitBreakerError("resilience", "Execute",
				"circuit breaker "+cb.name+" is probing",
				errors.WithMetadata("breaker", cb.name))
		}
		cb.probing = true
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.config.Clock()

	switch cb.state {
	case StateClosed:
		if err != nil {
			cb.failures++
			cb.lastFailure = now
			if cb.failures >= cb.config.FailureThreshold {
				cb.setState(StateOpen)
			}
		} else if !cb.lastFailure.IsZero() && now.Sub(cb.lastFailure) > cb.config.MonitoringPeriod {
			// Old failures stop counting against the threshold.
			cb.failures = 0
		}

	case StateHalfOpen:
		cb.probing = false
		if err != nil {
			// Failed probe, back to open with a fresh recovery window.
			cb.lastFailure = now
			cb.setState(StateOpen)
		} else {
			cb.setState(StateClosed)
			cb.failures = 0
		}
	}
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && cb.config.Clock().Sub(cb.lastFailure) > cb.config.RecoveryTimeout {
		cb.state = StateHalfOpen
		cb.probing = false
		logger.Sugar.Infof("Circuit breaker %s transitioning to half-open", cb.name)
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(state State) {
	if cb.state != state {
		logger.Sugar.Warnf("Circuit breaker %s: %s -> %s (failures=%d)", cb.name, cb.state, state, cb.failures)
	}
	cb.state = state
}
