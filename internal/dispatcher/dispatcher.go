package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/draftwell/autopilot/internal/domain"
	"github.com/draftwell/autopilot/internal/guard"
)

// DefaultCollaboratorTimeout bounds a single collaborator call so a hung
// network call cannot stall an execution indefinitely.
const DefaultCollaboratorTimeout = 30 * time.Second

// Store is the persistence surface the dispatcher needs: rule lookup,
// append-only execution logs, and the last-run bump that closes the
// Running→Idle transition.
type Store interface {
	GetRule(ctx context.Context, ruleID uuid.UUID) (domain.AutomationRule, error)
	InsertExecutionLog(ctx context.Context, entry domain.ExecutionLog) error
	// TouchRuleRun sets last_run_at and updated_at. Implementations MUST keep
	// last_run_at non-decreasing.
	TouchRuleRun(ctx context.Context, ruleID uuid.UUID, runAt time.Time) error
}

// Breaker gates collaborator calls per collaborator name.
type Breaker interface {
	Allow(collaborator string) error
	RecordSuccess(collaborator string)
	RecordFailure(collaborator string)
}

// AnalyticsSink records execution counts. Best-effort; errors are logged.
type AnalyticsSink interface {
	Record(ctx context.Context, ruleID string, status domain.ExecutionStatus, at time.Time) error
}

// MetricsSink defines the interface for recording dispatcher metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	ExecutionCompleted(actionType string, status string, duration time.Duration)
	GuardRejection()
	CollaboratorCall(collaborator string, outcome string, duration time.Duration)
	ExecutionsInFlightIncr()
	ExecutionsInFlightDecr()
}

// Dispatcher executes typed rule actions against external collaborators.
// Failures are converted to failed execution logs at this boundary and never
// propagate to the scheduler or monitor loops.
type Dispatcher struct {
	store   Store
	collabs Collaborators
	guard   *guard.Guard

	breaker   Breaker       // optional, nil = disabled
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled

	collabTimeout time.Duration
	batchDelay    time.Duration
	clock         func() time.Time
}

func New(store Store, collabs Collaborators, g *guard.Guard) *Dispatcher {
	return &Dispatcher{
		store:         store,
		collabs:       collabs,
		guard:         g,
		collabTimeout: DefaultCollaboratorTimeout,
		batchDelay:    time.Second,
		clock:         time.Now,
	}
}

// WithBreaker attaches a circuit breaker gating collaborator calls.
func (d *Dispatcher) WithBreaker(b Breaker) *Dispatcher {
	d.breaker = b
	return d
}

// WithAnalytics attaches an analytics sink.
func (d *Dispatcher) WithAnalytics(sink AnalyticsSink) *Dispatcher {
	d.analytics = sink
	return d
}

// WithMetrics attaches a metrics sink.
func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

// WithCollaboratorTimeout overrides the per-call collaborator timeout.
func (d *Dispatcher) WithCollaboratorTimeout(t time.Duration) *Dispatcher {
	d.collabTimeout = t
	return d
}

// WithBatchDelay overrides the pause between scrape batches.
func (d *Dispatcher) WithBatchDelay(t time.Duration) *Dispatcher {
	d.batchDelay = t
	return d
}

// WithClock overrides the clock, for tests.
func (d *Dispatcher) WithClock(clock func() time.Time) *Dispatcher {
	d.clock = clock
	return d
}

// Run processes events from the channel until the context is cancelled.
// After cancellation, it drains remaining buffered events with a timeout.
// Start one Run goroutine per worker to bound total concurrent executions.
func (d *Dispatcher) Run(ctx context.Context, ch <-chan domain.TriggerEvent) {
	for {
		select {
		case <-ctx.Done():
			d.drain(ch)
			return
		case event := <-ch:
			if err := d.Dispatch(ctx, event); err != nil {
				log.Printf("dispatcher: error: %v", err)
			}
		}
	}
}

// DrainTimeout is the maximum time to wait for buffered events during shutdown.
const DrainTimeout = 30 * time.Second

// drain processes remaining events in the channel buffer after shutdown.
// Uses a background context since the main context is already cancelled.
func (d *Dispatcher) drain(ch <-chan domain.TriggerEvent) {
	drainCtx, cancel := context.WithTimeout(context.Background(), DrainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("dispatcher: drain timeout, processed %d events", count)
			}
			return
		case event, ok := <-ch:
			if !ok {
				log.Printf("dispatcher: drain complete, processed %d events", count)
				return
			}
			if err := d.Dispatch(drainCtx, event); err != nil {
				log.Printf("dispatcher: drain error: %v", err)
			}
			count++
		default:
			if count > 0 {
				log.Printf("dispatcher: drain complete, processed %d events", count)
			}
			return
		}
	}
}

// Dispatch runs one rule execution end to end: guard acquisition, handler,
// execution log, last-run bump. The returned error covers infrastructure
// problems (rule lookup, log write); handler failures are recorded in the
// log entry and are not returned.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.TriggerEvent) error {
	if d.metrics != nil {
		d.metrics.ExecutionsInFlightIncr()
		defer d.metrics.ExecutionsInFlightDecr()
	}

	rule, err := d.store.GetRule(ctx, event.RuleID)
	if err != nil {
		return fmt.Errorf("get rule: %w", err)
	}

	if !rule.Active {
		log.Printf("dispatcher: rule=%s inactive, skipping", rule.ID)
		return nil
	}

	if err := d.guard.TryAcquire(rule.ID); err != nil {
		if errors.Is(err, guard.ErrAlreadyRunning) {
			log.Printf("dispatcher: rule=%s already executing, rejecting", rule.ID)
			if d.metrics != nil {
				d.metrics.GuardRejection()
			}
			return d.writeLog(ctx, rule, domain.ExecutionLog{
				Status:       domain.ExecutionStatusFailed,
				ErrorMessage: "already executing",
			}, 0, false)
		}
		return err
	}
	defer d.guard.Release(rule.ID)

	start := d.clock().UTC()
	result := d.runHandler(ctx, rule, event)
	elapsed := d.clock().UTC().Sub(start)

	entry := domain.ExecutionLog{
		Status:          result.status(),
		Details:         result.Details,
		ItemsProcessed:  result.Items,
		ExecutionTimeMS: elapsed.Milliseconds(),
	}
	if result.Err != nil {
		entry.ErrorMessage = result.Err.Error()
		log.Printf("dispatcher: rule=%s action=%s failed: %v", rule.ID, rule.ActionType, result.Err)
	} else {
		log.Printf("dispatcher: rule=%s action=%s %s items=%d elapsed=%s",
			rule.ID, rule.ActionType, entry.Status, entry.ItemsProcessed, elapsed.Round(time.Millisecond))
	}

	if d.metrics != nil {
		d.metrics.ExecutionCompleted(string(rule.ActionType), string(entry.Status), elapsed)
	}

	// last_run_at moves regardless of outcome so a failing rule cannot
	// re-fire on the very next tick.
	return d.writeLog(ctx, rule, entry, elapsed.Milliseconds(), true)
}

// handlerResult is what an action handler returns. Failed counts collaborator
// targets that errored while others succeeded; it turns the log entry partial.
type handlerResult struct {
	Details map[string]any
	Items   int
	Failed  int
	Err     error
}

func (r handlerResult) status() domain.ExecutionStatus {
	switch {
	case r.Err != nil:
		return domain.ExecutionStatusFailed
	case r.Failed > 0:
		return domain.ExecutionStatusPartial
	default:
		return domain.ExecutionStatusSuccess
	}
}

// runHandler switches on the rule's action type. A panicking handler is
// converted into a failed result here so it cannot take down a worker.
func (d *Dispatcher) runHandler(ctx context.Context, rule domain.AutomationRule, event domain.TriggerEvent) (result handlerResult) {
	defer func() {
		if r := recover(); r != nil {
			result = handlerResult{Err: fmt.Errorf("handler panic: %v", r)}
		}
	}()

	switch rule.ActionType {
	case domain.ActionTypeScrape:
		return d.handleScrape(ctx, rule)
	case domain.ActionTypeGenerate:
		return d.handleGenerate(ctx, rule, event)
	case domain.ActionTypeApprove:
		return d.handleApprove(ctx, rule, event)
	case domain.ActionTypePublish:
		return d.handlePublish(ctx, rule, event)
	case domain.ActionTypeNotify:
		return d.handleNotify(ctx, rule, event)
	default:
		return handlerResult{Err: fmt.Errorf("unknown action type %q", rule.ActionType)}
	}
}

// writeLog appends the execution log entry and, when touchRun is set, bumps
// the rule's last_run_at. Analytics is best-effort.
func (d *Dispatcher) writeLog(ctx context.Context, rule domain.AutomationRule, entry domain.ExecutionLog, elapsedMS int64, touchRun bool) error {
	now := d.clock().UTC()
	entry.ID = uuid.New()
	entry.RuleID = rule.ID
	entry.CreatedAt = now
	if entry.ExecutionTimeMS == 0 {
		entry.ExecutionTimeMS = elapsedMS
	}

	if d.analytics != nil {
		if err := d.analytics.Record(ctx, rule.ID.String(), entry.Status, now); err != nil {
			log.Printf("dispatcher: analytics write failed: %v", err)
		}
	}

	if err := d.store.InsertExecutionLog(ctx, entry); err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	if touchRun {
		if err := d.store.TouchRuleRun(ctx, rule.ID, now); err != nil {
			return fmt.Errorf("touch rule run: %w", err)
		}
	}
	return nil
}

// call wraps one collaborator invocation with the circuit breaker and a
// timeout, recording the outcome for metrics and breaker state.
func (d *Dispatcher) call(ctx context.Context, collaborator string, fn func(ctx context.Context) error) error {
	if d.breaker != nil {
		if err := d.breaker.Allow(collaborator); err != nil {
			if d.metrics != nil {
				d.metrics.CollaboratorCall(collaborator, "circuit_open", 0)
			}
			return fmt.Errorf("%s: %w", collaborator, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.collabTimeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	default:
		outcome = "error"
	}

	if d.metrics != nil {
		d.metrics.CollaboratorCall(collaborator, outcome, elapsed)
	}
	if d.breaker != nil {
		if err != nil {
			d.breaker.RecordFailure(collaborator)
		} else {
			d.breaker.RecordSuccess(collaborator)
		}
	}

	if err != nil {
		return fmt.Errorf("%s: %w", collaborator, err)
	}
	return nil
}
