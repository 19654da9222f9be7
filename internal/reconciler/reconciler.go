// Package reconciler reclaims stale execution guards.
//
// A guard goes stale when an execution holds its in-flight marker past the
// threshold: a handler stuck beyond every timeout, or a marker leaked by a
// crashed worker. Left alone the rule would never fire again, so the
// reconciler releases the marker and records a failed execution log saying
// what happened.
package reconciler

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/draftwell/autopilot/internal/domain"
	"github.com/draftwell/autopilot/internal/guard"
)

const reclaimMessage = "execution reclaimed: guard held past threshold"

// Store records the failed log entry for each reclaimed guard.
type Store interface {
	InsertExecutionLog(ctx context.Context, entry domain.ExecutionLog) error
}

// MetricsSink counts reclaimed guards. Methods must be non-blocking.
type MetricsSink interface {
	StaleGuardsReclaimed(count int)
}

// Config holds reconciler configuration.
type Config struct {
	// Interval is how often the reconciler runs.
	// Default: 5 minutes.
	Interval time.Duration

	// Threshold is the age after which a held guard is considered stale.
	// Must comfortably exceed the longest legitimate execution.
	// Default: 30 minutes.
	Threshold time.Duration
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  5 * time.Minute,
		Threshold: 30 * time.Minute,
	}
}

// Reconciler sweeps the guard for stale in-flight markers.
type Reconciler struct {
	config  Config
	guard   *guard.Guard
	store   Store
	metrics MetricsSink
	clock   func() time.Time
}

func New(config Config, g *guard.Guard, store Store) *Reconciler {
	return &Reconciler{
		config: config,
		guard:  g,
		store:  store,
		clock:  time.Now,
	}
}

// WithMetrics attaches a metrics sink.
func (r *Reconciler) WithMetrics(sink MetricsSink) *Reconciler {
	r.metrics = sink
	return r
}

// WithClock overrides the clock, for tests.
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	r.clock = clock
	return r
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	log.Printf("reconciler: started (interval=%s, threshold=%s)",
		r.config.Interval, r.config.Threshold)

	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler: stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep releases every guard held past the threshold and logs a failed
// execution for each. Returns the number reclaimed.
func (r *Reconciler) Sweep(ctx context.Context) int {
	now := r.clock().UTC()
	cutoff := now.Add(-r.config.Threshold)

	stale := r.guard.Stale(cutoff)
	if len(stale) == 0 {
		return 0
	}

	log.Printf("reconciler: found %d stale guards", len(stale))

	reclaimed := 0
	for _, ruleID := range stale {
		if ctx.Err() != nil {
			log.Printf("reconciler: sweep interrupted, reclaimed %d/%d", reclaimed, len(stale))
			break
		}

		r.guard.Release(ruleID)

		entry := domain.ExecutionLog{
			ID:           uuid.New(),
			RuleID:       ruleID,
			Status:       domain.ExecutionStatusFailed,
			ErrorMessage: reclaimMessage,
			CreatedAt:    now,
		}
		if err := r.store.InsertExecutionLog(ctx, entry); err != nil {
			// The marker is already released; losing the log entry is the
			// lesser problem.
			log.Printf("reconciler: rule=%s log write failed: %v", ruleID, err)
		}

		log.Printf("reconciler: reclaimed guard rule=%s", ruleID)
		reclaimed++
	}

	if r.metrics != nil {
		r.metrics.StaleGuardsReclaimed(reclaimed)
	}
	return reclaimed
}
