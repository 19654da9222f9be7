package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Scheduler metrics
	ticksTotal      prometheus.Counter
	tickErrorsTotal prometheus.Counter
	rulesFiredTotal prometheus.Counter
	tickDuration    prometheus.Histogram

	// Monitor metrics
	monitorChecksTotal *prometheus.CounterVec
	monitorEventsTotal *prometheus.CounterVec

	// Dispatcher metrics
	executionsTotal        *prometheus.CounterVec
	executionDuration      prometheus.Histogram
	guardRejectionsTotal   prometheus.Counter
	collaboratorCallsTotal *prometheus.CounterVec
	collaboratorDuration   prometheus.Histogram
	executionsInFlight     prometheus.Gauge

	// EventBus metrics
	bufferSize       prometheus.Gauge
	bufferCapacity   prometheus.Gauge
	bufferSaturation prometheus.Gauge
	emitErrorsTotal  prometheus.Counter

	// Reconciler metrics
	staleGuardsTotal prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulerMetrics(reg)
	s.initMonitorMetrics(reg)
	s.initDispatcherMetrics(reg)
	s.initEventBusMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_scheduler_ticks_total",
		Help: "Total number of scheduler ticks processed.",
	})
	s.tickErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_scheduler_tick_errors_total",
		Help: "Total number of scheduler tick errors.",
	})
	s.rulesFiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_scheduler_rules_fired_total",
		Help: "Total number of schedule rules fired (trigger events emitted).",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "autopilot_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler tick in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	s.register(reg, s.ticksTotal, "autopilot_scheduler_ticks_total")
	s.register(reg, s.tickErrorsTotal, "autopilot_scheduler_tick_errors_total")
	s.register(reg, s.rulesFiredTotal, "autopilot_scheduler_rules_fired_total")
	s.register(reg, s.tickDuration, "autopilot_scheduler_tick_duration_seconds")
}

func (s *PrometheusSink) initMonitorMetrics(reg prometheus.Registerer) {
	s.monitorChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autopilot_monitor_checks_total",
		Help: "Total number of event monitor checks by check name and result.",
	}, []string{"check", "result"})

	s.monitorEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autopilot_monitor_events_total",
		Help: "Total number of trigger events emitted by the event monitor.",
	}, []string{"check"})

	s.register(reg, s.monitorChecksTotal, "autopilot_monitor_checks_total")
	s.register(reg, s.monitorEventsTotal, "autopilot_monitor_events_total")
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.executionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autopilot_dispatcher_executions_total",
		Help: "Total number of rule executions by action type and status.",
	}, []string{"action", "status"})

	s.executionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "autopilot_dispatcher_execution_duration_seconds",
		Help:    "Handler execution latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	s.guardRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_dispatcher_guard_rejections_total",
		Help: "Total number of executions rejected because the rule was already running.",
	})

	s.collaboratorCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autopilot_dispatcher_collaborator_calls_total",
		Help: "Total number of collaborator calls by collaborator and outcome.",
	}, []string{"collaborator", "outcome"})

	s.collaboratorDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "autopilot_dispatcher_collaborator_call_duration_seconds",
		Help:    "Collaborator call latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.executionsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autopilot_dispatcher_executions_in_flight",
		Help: "Number of rule executions currently running.",
	})

	s.register(reg, s.executionsTotal, "autopilot_dispatcher_executions_total")
	s.register(reg, s.executionDuration, "autopilot_dispatcher_execution_duration_seconds")
	s.register(reg, s.guardRejectionsTotal, "autopilot_dispatcher_guard_rejections_total")
	s.register(reg, s.collaboratorCallsTotal, "autopilot_dispatcher_collaborator_calls_total")
	s.register(reg, s.collaboratorDuration, "autopilot_dispatcher_collaborator_call_duration_seconds")
	s.register(reg, s.executionsInFlight, "autopilot_dispatcher_executions_in_flight")
}

func (s *PrometheusSink) initEventBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autopilot_eventbus_buffer_size",
		Help: "Current number of events in the event bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autopilot_eventbus_buffer_capacity",
		Help: "Capacity of the event bus buffer.",
	})
	s.bufferSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "autopilot_eventbus_buffer_saturation",
		Help: "Event bus buffer fill ratio (0.0 to 1.0).",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_eventbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})
	s.staleGuardsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autopilot_reconciler_stale_guards_total",
		Help: "Total number of stale guard markers reclaimed by the reconciler.",
	})

	s.register(reg, s.bufferSize, "autopilot_eventbus_buffer_size")
	s.register(reg, s.bufferCapacity, "autopilot_eventbus_buffer_capacity")
	s.register(reg, s.bufferSaturation, "autopilot_eventbus_buffer_saturation")
	s.register(reg, s.emitErrorsTotal, "autopilot_eventbus_emit_errors_total")
	s.register(reg, s.staleGuardsTotal, "autopilot_reconciler_stale_guards_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Scheduler metrics implementation

func (s *PrometheusSink) TickStarted() {
	s.ticksTotal.Inc()
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, rulesFired int, err error) {
	s.tickDuration.Observe(duration.Seconds())
	s.rulesFiredTotal.Add(float64(rulesFired))
	if err != nil {
		s.tickErrorsTotal.Inc()
	}
}

// Monitor metrics implementation

func (s *PrometheusSink) MonitorCheckCompleted(check string, eventsEmitted int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.monitorChecksTotal.WithLabelValues(check, result).Inc()
	s.monitorEventsTotal.WithLabelValues(check).Add(float64(eventsEmitted))
}

// Dispatcher metrics implementation

func (s *PrometheusSink) ExecutionCompleted(actionType, status string, duration time.Duration) {
	s.executionsTotal.WithLabelValues(actionType, status).Inc()
	s.executionDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) GuardRejection() {
	s.guardRejectionsTotal.Inc()
}

func (s *PrometheusSink) CollaboratorCall(collaborator, outcome string, duration time.Duration) {
	s.collaboratorCallsTotal.WithLabelValues(collaborator, outcome).Inc()
	s.collaboratorDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) ExecutionsInFlightIncr() {
	s.executionsInFlight.Inc()
}

func (s *PrometheusSink) ExecutionsInFlightDecr() {
	s.executionsInFlight.Dec()
}

// EventBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSaturationUpdate(saturation float64) {
	s.bufferSaturation.Set(saturation)
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Reconciler metrics implementation

func (s *PrometheusSink) StaleGuardsReclaimed(count int) {
	s.staleGuardsTotal.Add(float64(count))
}
