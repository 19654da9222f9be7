package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftwell/autopilot/internal/domain"
)

var ruleCols = []string{
	"id", "name", "description", "client_id",
	"trigger_type", "trigger_config", "action_type", "action_config",
	"active", "last_run_at", "next_run_at", "created_by",
	"created_at", "updated_at",
}

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, time.August, 27, 12, 0, 0, 0, time.UTC)
	return New(db).WithClock(func() time.Time { return now }), mock
}

func sampleRule() domain.AutomationRule {
	return domain.AutomationRule{
		ID:          uuid.New(),
		Name:        "daily scrape",
		TriggerType: domain.TriggerTypeSchedule,
		ActionType:  domain.ActionTypeScrape,
		Trigger: domain.TriggerConfig{Schedule: &domain.ScheduleTrigger{
			Frequency: domain.FrequencyDaily, Time: "06:00",
		}},
		Action: domain.ActionConfig{Scrape: &domain.ScrapeAction{
			Sources: []string{"hn"}, Limit: 10, MinQualityScore: 0.5,
		}},
		Active:    true,
		CreatedBy: "ops",
	}
}

func ruleRow(t *testing.T, rule domain.AutomationRule) *sqlmock.Rows {
	t.Helper()
	triggerJSON, err := json.Marshal(rule.Trigger)
	require.NoError(t, err)
	actionJSON, err := json.Marshal(rule.Action)
	require.NoError(t, err)

	return sqlmock.NewRows(ruleCols).AddRow(
		rule.ID, rule.Name, rule.Description, rule.ClientID,
		string(rule.TriggerType), triggerJSON, string(rule.ActionType), actionJSON,
		rule.Active, rule.LastRunAt, rule.NextRunAt, rule.CreatedBy,
		rule.CreatedAt, rule.UpdatedAt,
	)
}

func TestGetRule_RoundTripsConfigs(t *testing.T) {
	store, mock := newTestStore(t)
	rule := sampleRule()

	mock.ExpectQuery("SELECT(.|\n)*FROM automation_rules(.|\n)*WHERE id").
		WithArgs(rule.ID).
		WillReturnRows(ruleRow(t, rule))

	got, err := store.GetRule(context.Background(), rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.ID, got.ID)
	require.NotNil(t, got.Trigger.Schedule)
	assert.Equal(t, domain.FrequencyDaily, got.Trigger.Schedule.Frequency)
	require.NotNil(t, got.Action.Scrape)
	assert.Equal(t, []string{"hn"}, got.Action.Scrape.Sources)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRule_NotFound(t *testing.T) {
	store, mock := newTestStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT(.|\n)*FROM automation_rules(.|\n)*WHERE id").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetRule(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateRule_AssignsIDAndTimestamps(t *testing.T) {
	store, mock := newTestStore(t)
	rule := sampleRule()
	rule.ID = uuid.Nil

	mock.ExpectExec("INSERT INTO automation_rules").
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreateRule(context.Background(), rule)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRule_RejectsVariantMismatch(t *testing.T) {
	store, mock := newTestStore(t)
	rule := sampleRule()
	rule.Trigger = domain.TriggerConfig{Event: &domain.EventTrigger{
		Event: domain.EventQueueLow, Threshold: 3,
	}}

	_, err := store.CreateRule(context.Background(), rule)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet(), "no SQL for invalid rule")
}

func TestUpdateRule_NotFound(t *testing.T) {
	store, mock := newTestStore(t)
	rule := sampleRule()

	mock.ExpectQuery("UPDATE automation_rules").
		WillReturnError(sql.ErrNoRows)

	_, err := store.UpdateRule(context.Background(), rule)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRule_CascadesLogs(t *testing.T) {
	store, mock := newTestStore(t)
	id := uuid.New()

	mock.ExpectQuery("DELETE FROM execution_logs(.|\n)*DELETE FROM automation_rules").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))

	require.NoError(t, store.DeleteRule(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRuleActive(t *testing.T) {
	store, mock := newTestStore(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE automation_rules(.|\n)*SET active").
		WithArgs(id, false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))

	require.NoError(t, store.SetRuleActive(context.Background(), id, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchRuleRun_UsesGreatestGuard(t *testing.T) {
	store, mock := newTestStore(t)
	id := uuid.New()
	runAt := time.Date(2026, time.August, 27, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE automation_rules(.|\n)*GREATEST").
		WithArgs(id, runAt, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))

	require.NoError(t, store.TouchRuleRun(context.Background(), id, runAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertExecutionLog(t *testing.T) {
	store, mock := newTestStore(t)
	entry := domain.ExecutionLog{
		ID:              uuid.New(),
		RuleID:          uuid.New(),
		Status:          domain.ExecutionStatusSuccess,
		Details:         map[string]any{"items": []string{"a", "b"}},
		ItemsProcessed:  2,
		ExecutionTimeMS: 120,
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO execution_logs").
		WithArgs(entry.ID, entry.RuleID, "success", sqlmock.AnyArg(), "",
			2, int64(120), entry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.InsertExecutionLog(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListExecutionLogs_ScopedToRule(t *testing.T) {
	store, mock := newTestStore(t)
	ruleID := uuid.New()
	logID := uuid.New()
	created := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "rule_id", "status", "details", "error_message",
		"items_processed", "execution_time_ms", "created_at",
	}).AddRow(logID, ruleID, "partial", []byte(`{"approved":["x"]}`), "", 1, int64(80), created)

	mock.ExpectQuery("SELECT(.|\n)*FROM execution_logs(.|\n)*WHERE rule_id").
		WithArgs(ruleID, 20, 0).
		WillReturnRows(rows)

	logs, err := store.ListExecutionLogs(context.Background(), &ruleID, 20, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ExecutionStatusPartial, logs[0].Status)
	assert.Equal(t, []any{"x"}, logs[0].Details["approved"])
}

func TestListActiveRules(t *testing.T) {
	store, mock := newTestStore(t)
	rule := sampleRule()

	mock.ExpectQuery("SELECT(.|\n)*FROM automation_rules(.|\n)*WHERE active = true").
		WillReturnRows(ruleRow(t, rule))

	rules, err := store.ListActiveRules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, rule.Name, rules[0].Name)
}

func TestCountScheduledPosts(t *testing.T) {
	store, mock := newTestStore(t)
	clientID := uuid.New()

	mock.ExpectQuery("SELECT COUNT(.|\n)*FROM scheduled_posts").
		WithArgs(clientID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := store.CountScheduledPosts(context.Background(), clientID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEnsureDefaultRules_InsertsEverySeed(t *testing.T) {
	store, mock := newTestStore(t)

	for range domain.DefaultRules() {
		mock.ExpectExec("INSERT INTO automation_rules(.|\n)*ON CONFLICT \\(id\\) DO NOTHING").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	require.NoError(t, store.EnsureDefaultRules(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDefaultRules_PropagatesError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO automation_rules").
		WillReturnError(errors.New("db down"))

	assert.Error(t, store.EnsureDefaultRules(context.Background()))
}
