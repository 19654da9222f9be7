// Package guard enforces at-most-one in-flight execution per rule. It is the
// only thing standing between two concurrent triggers for the same rule, so
// acquisition is a single test-and-set under one mutex.
package guard

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrAlreadyRunning = errors.New("already executing")

type entry struct {
	acquiredAt time.Time
}

// Guard is an in-memory per-rule in-flight marker.
type Guard struct {
	mu      sync.Mutex
	running map[uuid.UUID]entry
	clock   func() time.Time
}

func New() *Guard {
	return &Guard{
		running: make(map[uuid.UUID]entry),
		clock:   time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (g *Guard) WithClock(clock func() time.Time) *Guard {
	g.clock = clock
	return g
}

// TryAcquire marks the rule as in-flight. It returns ErrAlreadyRunning if the
// marker is already held; callers must not dispatch in that case.
func (g *Guard) TryAcquire(ruleID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.running[ruleID]; held {
		return ErrAlreadyRunning
	}
	g.running[ruleID] = entry{acquiredAt: g.clock().UTC()}
	return nil
}

// Release clears the rule's in-flight marker. Releasing an unheld marker is
// a no-op so deferred releases are always safe.
func (g *Guard) Release(ruleID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, ruleID)
}

// Held reports whether the rule is currently marked in-flight.
func (g *Guard) Held(ruleID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.running[ruleID]
	return held
}

// Stale returns rule ids whose markers were acquired before the cutoff.
// The reconciler uses this to reclaim markers leaked by a crashed handler.
func (g *Guard) Stale(olderThan time.Time) []uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ids []uuid.UUID
	for id, e := range g.running {
		if e.acquiredAt.Before(olderThan) {
			ids = append(ids, id)
		}
	}
	return ids
}
