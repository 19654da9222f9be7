package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/draftwell/autopilot/internal/collab"
	"github.com/draftwell/autopilot/internal/domain"
	"github.com/draftwell/autopilot/internal/guard"
	"github.com/draftwell/autopilot/internal/scheduler"
	"github.com/draftwell/autopilot/internal/transport/channel"
)

// pipelineStore adds the scheduler's listing surface to mockStore and makes
// TouchRuleRun actually advance last_run_at, so a fired rule stops being
// eligible on the next tick.
type pipelineStore struct {
	*mockStore
}

func (s *pipelineStore) ListActiveRules(context.Context) ([]domain.AutomationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AutomationRule
	for _, r := range s.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *pipelineStore) TouchRuleRun(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rules[id]
	r.LastRunAt = &at
	s.rules[id] = r
	s.touches = append(s.touches, at)
	return nil
}

// TestPipeline_WeeklyGenerateRule runs the full scheduler→bus→dispatcher path
// with in-memory collaborators: a weekly Monday 09:00 rule fires once, one
// draft lands per active client, and the next tick does not re-fire.
func TestPipeline_WeeklyGenerateRule(t *testing.T) {
	monday := 1
	rule := domain.AutomationRule{
		ID:          uuid.New(),
		Name:        "weekly drafts",
		TriggerType: domain.TriggerTypeSchedule,
		Trigger: domain.TriggerConfig{
			Schedule: &domain.ScheduleTrigger{
				Frequency: domain.FrequencyWeekly,
				Time:      "09:00",
				DayOfWeek: &monday,
			},
		},
		ActionType: domain.ActionTypeGenerate,
		Action: domain.ActionConfig{
			Generate: &domain.GenerateAction{Count: 1, Template: "weekly roundup"},
		},
		Active: true,
	}

	store := &pipelineStore{mockStore: newMockStore(rule)}
	content := collab.NewContentStore()
	collabs := Collaborators{
		Clients:   collab.NewDirectory(),
		Catalog:   collab.NewCatalog(),
		Generator: collab.NewGenerator(),
		Content:   content,
		Publisher: collab.NewPublisher(),
		Notifier:  collab.NewNotifier(),
	}

	// Monday 2026-08-24 09:02 UTC, inside the schedule tolerance window.
	now := time.Date(2026, time.August, 24, 9, 2, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	bus := channel.NewEventBus(16)
	d := New(store, collabs, guard.New()).WithClock(clock)
	sched := scheduler.New(scheduler.Config{TickInterval: time.Minute}, store, bus).WithClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, bus.Channel())
		close(done)
	}()

	fired, err := sched.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	waitFor(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.logs) == 1
	})

	entry := store.lastLog(t)
	if entry.Status != domain.ExecutionStatusSuccess {
		t.Errorf("status = %s (%s), want success", entry.Status, entry.ErrorMessage)
	}
	if entry.ItemsProcessed != 2 {
		t.Errorf("items = %d, want one draft per active client", entry.ItemsProcessed)
	}
	if drafts := content.Drafts(); len(drafts) != 2 {
		t.Errorf("drafts = %d, want 2", len(drafts))
	}

	// last_run_at moved, so the same tick window no longer fires the rule.
	fired, err = sched.Tick(ctx)
	if err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if fired != 0 {
		t.Errorf("second tick fired = %d, want 0", fired)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
