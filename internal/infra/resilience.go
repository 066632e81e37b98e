// Package infra provides the resilience primitives shared by the resolvers:
// an expiring LRU cache, in-flight request coalescing and circuit breakers.
package infra

import (
	"context"
	"sync"
	"time"
)

// Group coalesces identical in-flight calls. When several goroutines ask for
// the same key at once, fn runs once and every caller receives its result.
type Group[T any] struct {
	mu       sync.Mutex
	inflight map[string]*call[T]
}

type call[T any] struct {
	done    chan struct{}
	result  T
	err     error
	waiters int
}

// NewGroup creates an empty Group
func NewGroup[T any]() *Group[T] {
	return &Group[T]{inflight: make(map[string]*call[T])}
}

// Do runs fn unless a call for key is already running, in which case it waits
// for that call. shared reports whether the result came from another caller.
// A waiter whose ctx ends stops waiting; the running call is not canceled.
func (g *Group[T]) Do(ctx context.Context, key string, fn func() (T, error)) (result T, shared bool, err error) {
	g.mu.Lock()
	if c, ok := g.inflight[key]; ok {
		c.waiters++
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.result, true, c.err
		case <-ctx.Done():
			var zero T
			return zero, false, ctx.Err()
		}
	}

	c := &call[T]{done: make(chan struct{}), waiters: 1}
	g.inflight[key] = c
	g.mu.Unlock()

	c.result, c.err = fn()
	close(c.done)

	g.mu.Lock()
	delete(g.inflight, key)
	g.mu.Unlock()

	return c.result, false, c.err
}

// InFlight returns the number of keys currently being fetched
func (g *Group[T]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}

// CircuitState represents the current state of a circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing fast
	CircuitHalfOpen                     // Probing for recovery
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails fast once a host has failed repeatedly, then lets a
// few probe requests through after resetTimeout.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int
	now              Clock

	state            CircuitState
	consecutiveFails int
	lastFailure      time.Time
	halfOpenCount    int
}

// NewCircuitBreaker opens after 5 consecutive failures and probes again after 30s
func NewCircuitBreaker() *CircuitBreaker {
	return NewCircuitBreakerWithConfig(5, 30*time.Second, 2)
}

// NewCircuitBreakerWithConfig creates a circuit breaker with custom thresholds
func NewCircuitBreakerWithConfig(failureThreshold int, resetTimeout time.Duration, halfOpenMax int) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		halfOpenMax:      halfOpenMax,
		now:              time.Now,
		state:            CircuitClosed,
	}
}

// Allow reports whether a request may proceed
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.halfOpenCount = 1
			return true
		}
		return false
	case CircuitHalfOpen:
		if cb.halfOpenCount < cb.halfOpenMax {
			cb.halfOpenCount++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess resets the failure count and closes a half-open circuit
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
		cb.halfOpenCount = 0
	}
}

// RecordFailure counts a failure, opening the circuit at the threshold
// or immediately when half-open.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		if cb.consecutiveFails >= cb.failureThreshold {
			cb.state = CircuitOpen
		}
	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.halfOpenCount = 0
	}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns circuit breaker statistics
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		State:            cb.state.String(),
		ConsecutiveFails: cb.consecutiveFails,
		LastFailure:      cb.lastFailure,
	}
}

// CircuitBreakerStats contains circuit breaker statistics
type CircuitBreakerStats struct {
	State            string    `json:"state"`
	ConsecutiveFails int       `json:"consecutive_failures"`
	LastFailure      time.Time `json:"last_failure,omitempty"`
}

// ErrCircuitOpen is returned when a host's circuit is open
type ErrCircuitOpen struct {
	State    string
	RetryAt  time.Time
	Failures int
}

func (e ErrCircuitOpen) Error() string {
	return "circuit breaker is open: host is failing, retry after " + e.RetryAt.Format(time.RFC3339)
}

// BreakerSet hands out one circuit breaker per host, so a single broken wiki
// does not stop requests to the others.
type BreakerSet struct {
	breakers sync.Map // host -> *CircuitBreaker
	factory  func() *CircuitBreaker
}

// NewBreakerSet creates a set using NewCircuitBreaker defaults
func NewBreakerSet() *BreakerSet {
	return &BreakerSet{factory: NewCircuitBreaker}
}

// NewBreakerSetWithFactory creates a set whose breakers come from factory
func NewBreakerSetWithFactory(factory func() *CircuitBreaker) *BreakerSet {
	return &BreakerSet{factory: factory}
}

// For returns the breaker for host, creating it on first use
func (s *BreakerSet) For(host string) *CircuitBreaker {
	if cb, ok := s.breakers.Load(host); ok {
		return cb.(*CircuitBreaker)
	}
	cb, _ := s.breakers.LoadOrStore(host, s.factory())
	return cb.(*CircuitBreaker)
}

// Stats returns the stats of every known host
func (s *BreakerSet) Stats() map[string]CircuitBreakerStats {
	out := make(map[string]CircuitBreakerStats)
	s.breakers.Range(func(k, v any) bool {
		out[k.(string)] = v.(*CircuitBreaker).Stats()
		return true
	})
	return out
}
