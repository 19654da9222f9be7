package metrics

import "time"

// Sink defines the interface for recording engine metrics.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors. If the metrics backend is unavailable, implementations
// log warnings and continue.
type Sink interface {
	// Scheduler metrics
	TickStarted()
	TickCompleted(duration time.Duration, rulesFired int, err error)

	// Monitor metrics
	MonitorCheckCompleted(check string, eventsEmitted int, err error)

	// Dispatcher metrics
	ExecutionCompleted(actionType string, status string, duration time.Duration)
	GuardRejection()
	CollaboratorCall(collaborator string, outcome string, duration time.Duration)
	ExecutionsInFlightIncr()
	ExecutionsInFlightDecr()

	// EventBus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()

	// Reconciler metrics
	StaleGuardsReclaimed(count int)
}

// Status constants for ExecutionCompleted.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPartial = "partial"
)

// Outcome constants for CollaboratorCall.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeCircuitOpen = "circuit_open"
)
