package http

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker stops calling a failing upstream for a cool-down period.
// After the cool-down a single probe is allowed through.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         breakerState
	failureCount  int
	lastErrorTime time.Time
	threshold     int
	cooldown      time.Duration
	now           func() time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (cb *CircuitBreaker) Execute(action func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case stateOpen:
		if cb.now().Sub(cb.lastErrorTime) <= cb.cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = stateHalfOpen
	case stateHalfOpen:
		// a probe is already in flight
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
	cb.mu.Unlock()

	err := action()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && countsAsFailure(err) {
		cb.failureCount++
		cb.lastErrorTime = cb.now()
		if cb.failureCount >= cb.threshold || cb.state == stateHalfOpen {
			cb.state = stateOpen
		}
		return err
	}

	cb.failureCount = 0
	cb.state = stateClosed
	return err
}

// Open reports whether calls are currently short-circuited.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == stateOpen && cb.now().Sub(cb.lastErrorTime) <= cb.cooldown
}

// Client errors (4xx) say nothing about upstream health.
func countsAsFailure(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}
