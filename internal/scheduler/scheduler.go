package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/draftwell/autopilot/internal/domain"
	"github.com/draftwell/autopilot/internal/schedule"
)

// Store is the rule listing surface the tick loop needs.
type Store interface {
	ListActiveRules(ctx context.Context) ([]domain.AutomationRule, error)
}

// EventEmitter hands trigger events to the dispatch pipeline.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.TriggerEvent) error
}

// MetricsSink records tick observations. Methods must be non-blocking.
type MetricsSink interface {
	TickStarted()
	TickCompleted(duration time.Duration, rulesFired int, err error)
}

type Config struct {
	TickInterval time.Duration
}

// Scheduler walks active schedule-triggered rules once per tick and emits an
// event for each rule whose schedule is due. It never executes actions itself;
// due rules go through the emitter so execution stays on the worker pool.
type Scheduler struct {
	config  Config
	store   Store
	emitter EventEmitter
	metrics MetricsSink
	clock   func() time.Time
}

func New(config Config, store Store, emitter EventEmitter) *Scheduler {
	return &Scheduler{
		config:  config,
		store:   store,
		emitter: emitter,
		clock:   time.Now,
	}
}

// WithMetrics attaches a metrics sink.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// WithClock overrides the clock, for tests.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	log.Printf("scheduler: started, tick=%s", s.config.TickInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				log.Printf("scheduler: tick error: %v", err)
			}
		}
	}
}

// Tick evaluates every active schedule-triggered rule against the current
// time and emits an event per due rule. It returns the number of rules fired.
// A single rule's emit failure does not abort the tick.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	if s.metrics != nil {
		s.metrics.TickStarted()
	}
	start := s.clock().UTC()

	fired, err := s.tick(ctx, start)

	if s.metrics != nil {
		s.metrics.TickCompleted(s.clock().UTC().Sub(start), fired, err)
	}
	return fired, err
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) (int, error) {
	rules, err := s.store.ListActiveRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active rules: %w", err)
	}

	fired := 0
	for _, rule := range rules {
		if rule.TriggerType != domain.TriggerTypeSchedule || rule.Trigger.Schedule == nil {
			continue
		}
		if !schedule.Eligible(*rule.Trigger.Schedule, rule.LastRunAt, now) {
			continue
		}

		event := domain.TriggerEvent{
			RuleID:  rule.ID,
			Source:  domain.TriggerSourceSchedule,
			FiredAt: now,
			Context: map[string]any{},
		}
		if err := s.emitter.Emit(ctx, event); err != nil {
			log.Printf("scheduler: rule=%s emit failed: %v", rule.ID, err)
			continue
		}
		log.Printf("scheduler: fired rule=%s (%s)", rule.ID, rule.Name)
		fired++
	}

	return fired, nil
}
