// Package circuitbreaker trips per-collaborator after repeated failures so a
// chronically failing rule stops hammering an unavailable collaborator.
// While open, executions fail fast and are logged; the rule is still
// evaluated at every natural tick, so recovery is automatic after cooldown.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type collabState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
}

// CircuitBreaker tracks failure streaks keyed by collaborator name
// (generator, scraper, publisher, notifier, store).
type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[string]*collabState
	threshold int
	cooldown  time.Duration
}

func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		states:    make(map[string]*collabState),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether a call to the collaborator may proceed. After the
// cooldown one probe call is let through; further calls stay rejected until
// that probe settles via RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow(collaborator string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[collaborator]
	if !ok {
		return nil
	}

	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if time.Since(s.openedAt) >= cb.cooldown {
			s.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) RecordSuccess(collaborator string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[collaborator]
	if !ok {
		return
	}
	s.state = stateClosed
	s.consecutiveFailures = 0
}

func (cb *CircuitBreaker) RecordFailure(collaborator string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[collaborator]
	if !ok {
		s = &collabState{}
		cb.states[collaborator] = s
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= cb.threshold {
		s.state = stateOpen
		s.openedAt = time.Now()
	}
}
