package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickStarted()                                                           {}
func (n *NoopSink) TickCompleted(duration time.Duration, rulesFired int, err error)        {}
func (n *NoopSink) MonitorCheckCompleted(check string, eventsEmitted int, err error)       {}
func (n *NoopSink) ExecutionCompleted(actionType, status string, duration time.Duration)   {}
func (n *NoopSink) GuardRejection()                                                        {}
func (n *NoopSink) CollaboratorCall(collaborator, outcome string, duration time.Duration)  {}
func (n *NoopSink) ExecutionsInFlightIncr()                                                {}
func (n *NoopSink) ExecutionsInFlightDecr()                                                {}
func (n *NoopSink) BufferSizeUpdate(size int)                                              {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                         {}
func (n *NoopSink) BufferSaturationUpdate(saturation float64)                              {}
func (n *NoopSink) EmitError()                                                             {}
func (n *NoopSink) StaleGuardsReclaimed(count int)                                         {}
