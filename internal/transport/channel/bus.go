package channel

import (
	"context"
	"errors"
	"time"

	"github.com/draftwell/autopilot/internal/domain"
)

// ErrBufferFull is returned when an emit cannot be buffered before the emit
// timeout elapses. Producers treat this as a dropped event; the rule fires
// again at its next natural evaluation.
var ErrBufferFull = errors.New("event bus buffer full")

// DefaultEmitTimeout bounds how long Emit blocks on a saturated buffer.
const DefaultEmitTimeout = 5 * time.Second

// MetricsSink receives bus saturation metrics. Implementations must not block.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()
}

// EventBus carries trigger events from the scheduler and event monitor to
// the dispatcher workers.
type EventBus struct {
	ch          chan domain.TriggerEvent
	emitTimeout time.Duration
	metrics     MetricsSink // optional, nil = disabled
}

type Option func(*EventBus)

// WithEmitTimeout overrides the default emit timeout.
func WithEmitTimeout(d time.Duration) Option {
	return func(b *EventBus) { b.emitTimeout = d }
}

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(m MetricsSink) Option {
	return func(b *EventBus) { b.metrics = m }
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		ch:          make(chan domain.TriggerEvent, buffer),
		emitTimeout: DefaultEmitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// Emit buffers an event for the dispatcher. It returns ErrBufferFull if the
// buffer stays saturated past the emit timeout, or the context error if the
// producer is shutting down.
func (b *EventBus) Emit(ctx context.Context, event domain.TriggerEvent) error {
	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- event:
		b.updateMetrics()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBufferFull
	}
}

func (b *EventBus) Channel() <-chan domain.TriggerEvent {
	return b.ch
}

func (b *EventBus) updateMetrics() {
	if b.metrics == nil {
		return
	}
	size := len(b.ch)
	capacity := cap(b.ch)
	b.metrics.BufferSizeUpdate(size)
	if capacity > 0 {
		b.metrics.BufferSaturationUpdate(float64(size) / float64(capacity))
	}
}
