// Package monitor watches external conditions (publishing queue depth,
// trending topics) and fires event-triggered rules when a condition crosses
// its threshold. Like the scheduler it only emits events; execution happens
// on the dispatcher workers.
package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/draftwell/autopilot/internal/domain"
)

const (
	CheckQueueLow = "queue_low"
	CheckTrending = "trending_content"
)

// DefaultTrendingFetchLimit caps how many feed items a trending check pulls
// when the config does not set a limit.
const DefaultTrendingFetchLimit = 20

// Store lists event-triggered rules and answers queue-depth queries.
type Store interface {
	ListActiveRules(ctx context.Context) ([]domain.AutomationRule, error)
	CountScheduledPosts(ctx context.Context, clientID uuid.UUID) (int, error)
}

// ClientDirectory enumerates clients for rules without a client scope.
type ClientDirectory interface {
	GetActive(ctx context.Context) ([]domain.Client, error)
}

// TrendingFeed surfaces candidate topics for the trending check.
type TrendingFeed interface {
	GetTrending(ctx context.Context, limit int) ([]domain.TrendingItem, error)
}

// EventEmitter hands trigger events to the dispatch pipeline.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.TriggerEvent) error
}

// MetricsSink records check observations. Methods must be non-blocking.
type MetricsSink interface {
	MonitorCheckCompleted(check string, eventsEmitted int, err error)
}

type Config struct {
	QueueCheckInterval    time.Duration
	TrendingCheckInterval time.Duration
	TrendingFetchLimit    int // 0 = DefaultTrendingFetchLimit
}

// Monitor runs the two condition checks on independent tickers.
type Monitor struct {
	config   Config
	store    Store
	clients  ClientDirectory
	trending TrendingFeed
	emitter  EventEmitter
	metrics  MetricsSink
	clock    func() time.Time
}

func New(config Config, store Store, clients ClientDirectory, trending TrendingFeed, emitter EventEmitter) *Monitor {
	return &Monitor{
		config:   config,
		store:    store,
		clients:  clients,
		trending: trending,
		emitter:  emitter,
		clock:    time.Now,
	}
}

// WithMetrics attaches a metrics sink.
func (m *Monitor) WithMetrics(sink MetricsSink) *Monitor {
	m.metrics = sink
	return m
}

// WithClock overrides the clock, for tests.
func (m *Monitor) WithClock(clock func() time.Time) *Monitor {
	m.clock = clock
	return m
}

// Run drives both checks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	queueTicker := time.NewTicker(m.config.QueueCheckInterval)
	defer queueTicker.Stop()
	trendingTicker := time.NewTicker(m.config.TrendingCheckInterval)
	defer trendingTicker.Stop()

	log.Printf("monitor: started, queue_check=%s trending_check=%s",
		m.config.QueueCheckInterval, m.config.TrendingCheckInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("monitor: stopped")
			return ctx.Err()
		case <-queueTicker.C:
			if _, err := m.CheckQueues(ctx); err != nil {
				log.Printf("monitor: queue check error: %v", err)
			}
		case <-trendingTicker.C:
			if _, err := m.CheckTrending(ctx); err != nil {
				log.Printf("monitor: trending check error: %v", err)
			}
		}
	}
}

// CheckQueues fires each queue_low rule whose client's upcoming publishing
// queue has fewer posts than the rule's threshold. Rules without a client
// scope are checked against every active client and fire once per client
// below threshold. Returns the number of events emitted.
func (m *Monitor) CheckQueues(ctx context.Context) (emitted int, err error) {
	defer func() {
		if m.metrics != nil {
			m.metrics.MonitorCheckCompleted(CheckQueueLow, emitted, err)
		}
	}()

	rules, err := m.eventRules(ctx, domain.EventQueueLow)
	if err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return 0, nil
	}

	for _, rule := range rules {
		clients, err := m.ruleClients(ctx, rule)
		if err != nil {
			log.Printf("monitor: rule=%s client lookup failed: %v", rule.ID, err)
			continue
		}

		for _, clientID := range clients {
			size, err := m.store.CountScheduledPosts(ctx, clientID)
			if err != nil {
				log.Printf("monitor: rule=%s client=%s queue count failed: %v", rule.ID, clientID, err)
				continue
			}
			if float64(size) >= rule.Trigger.Event.Threshold {
				continue
			}

			event := domain.TriggerEvent{
				RuleID:  rule.ID,
				Source:  domain.TriggerSourceMonitor,
				FiredAt: m.clock().UTC(),
				Context: map[string]any{
					domain.ContextKeyClientID:  clientID.String(),
					domain.ContextKeyQueueSize: size,
				},
			}
			if err := m.emitter.Emit(ctx, event); err != nil {
				log.Printf("monitor: rule=%s emit failed: %v", rule.ID, err)
				continue
			}
			log.Printf("monitor: queue low client=%s size=%d threshold=%g rule=%s",
				clientID, size, rule.Trigger.Event.Threshold, rule.ID)
			emitted++
		}
	}

	return emitted, nil
}

// CheckTrending fires each trending_content rule when the feed returns at
// least the rule's threshold of items (minimum one). Returns the number of
// events emitted.
func (m *Monitor) CheckTrending(ctx context.Context) (emitted int, err error) {
	defer func() {
		if m.metrics != nil {
			m.metrics.MonitorCheckCompleted(CheckTrending, emitted, err)
		}
	}()

	rules, err := m.eventRules(ctx, domain.EventTrendingContent)
	if err != nil {
		return 0, err
	}
	if len(rules) == 0 {
		return 0, nil
	}

	limit := m.config.TrendingFetchLimit
	if limit <= 0 {
		limit = DefaultTrendingFetchLimit
	}
	items, err := m.trending.GetTrending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get trending: %w", err)
	}

	for _, rule := range rules {
		minItems := rule.Trigger.Event.Threshold
		if minItems < 1 {
			minItems = 1
		}
		if float64(len(items)) < minItems {
			continue
		}

		event := domain.TriggerEvent{
			RuleID:  rule.ID,
			Source:  domain.TriggerSourceMonitor,
			FiredAt: m.clock().UTC(),
			Context: map[string]any{
				domain.ContextKeyItems: items,
			},
		}
		if err := m.emitter.Emit(ctx, event); err != nil {
			log.Printf("monitor: rule=%s emit failed: %v", rule.ID, err)
			continue
		}
		log.Printf("monitor: trending items=%d rule=%s", len(items), rule.ID)
		emitted++
	}

	return emitted, nil
}

func (m *Monitor) eventRules(ctx context.Context, event domain.EventType) ([]domain.AutomationRule, error) {
	rules, err := m.store.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}

	var out []domain.AutomationRule
	for _, rule := range rules {
		if rule.TriggerType != domain.TriggerTypeEvent || rule.Trigger.Event == nil {
			continue
		}
		if rule.Trigger.Event.Event != event {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (m *Monitor) ruleClients(ctx context.Context, rule domain.AutomationRule) ([]uuid.UUID, error) {
	if rule.ClientID != nil {
		return []uuid.UUID{*rule.ClientID}, nil
	}

	clients, err := m.clients.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active clients: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
