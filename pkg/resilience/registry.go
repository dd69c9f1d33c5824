package resilience

import (
	"sync"
	"time"
)

// Registry is a process-wide, name-indexed store of circuit breakers.
// Breakers are constructed lazily; configuration is first-writer-wins per
// name, so later callers cannot silently reconfigure a shared breaker.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	clock    func() time.Time
}

// NewRegistry creates an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker)}
}

// WithClock sets the clock used for breakers the registry constructs.
// Intended for tests; must be called before any GetBreaker.
func (r *Registry) WithClock(clock func() time.Time) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
	return r
}

// GetBreaker returns the breaker registered under name, creating it with
// the given thresholds on first use. Parameters passed for an existing
// name are ignored.
func (r *Registry) GetBreaker(name string, failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cb := NewCircuitBreaker(name, BreakerConfig{
		FailureThreshold: failureThreshold,
		RecoveryTimeout:  recoveryTimeout,
		Clock:            r.clock,
	})
	r.breakers[name] = cb
	return cb
}

// GetAllStates returns a snapshot of every registered breaker.
func (r *Registry) GetAllStates() map[string]Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make(map[string]Snapshot, len(r.breakers))
	for name, cb := range r.breakers {
		states[name] = cb.Snapshot()
	}
	return states
}

// ResetAll forces every registered breaker closed.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}
