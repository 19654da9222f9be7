// Package postgres is the rule repository: automation rules, their
// append-only execution logs, and the scheduled-posts queue depth query the
// monitor uses. Trigger and action configs are stored as JSONB so the typed
// variants round-trip without per-type tables.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/draftwell/autopilot/internal/api"
	"github.com/draftwell/autopilot/internal/dispatcher"
	"github.com/draftwell/autopilot/internal/domain"
	"github.com/draftwell/autopilot/internal/monitor"
	"github.com/draftwell/autopilot/internal/scheduler"
)

type Store struct {
	db    *sql.DB
	clock func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, clock: time.Now}
}

// WithClock overrides the clock, for tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// ListRules returns rules ordered newest first, paginated by limit and offset.
func (s *Store) ListRules(ctx context.Context, limit, offset int) ([]domain.AutomationRule, error) {
	rows, err := s.db.QueryContext(ctx, queryListRules, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// ListActiveRules returns every active rule. The scheduler and monitor walk
// the full set each tick, so there is no pagination here.
func (s *Store) ListActiveRules(ctx context.Context) ([]domain.AutomationRule, error) {
	rows, err := s.db.QueryContext(ctx, queryListActiveRules)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (s *Store) GetRule(ctx context.Context, ruleID uuid.UUID) (domain.AutomationRule, error) {
	row := s.db.QueryRowContext(ctx, queryGetRule, ruleID)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AutomationRule{}, domain.ErrNotFound
	}
	return rule, err
}

// CreateRule validates and inserts a rule. ID and timestamps are assigned
// here when the caller left them zero.
func (s *Store) CreateRule(ctx context.Context, rule domain.AutomationRule) (domain.AutomationRule, error) {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := s.clock().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if err := rule.Validate(); err != nil {
		return domain.AutomationRule{}, err
	}

	args, err := ruleArgs(rule)
	if err != nil {
		return domain.AutomationRule{}, err
	}
	if _, err := s.db.ExecContext(ctx, queryInsertRule, args...); err != nil {
		return domain.AutomationRule{}, err
	}
	return rule, nil
}

// UpdateRule replaces a rule's mutable fields. ID, created_at, and the run
// bookkeeping columns are preserved; updated_at is bumped.
func (s *Store) UpdateRule(ctx context.Context, rule domain.AutomationRule) (domain.AutomationRule, error) {
	if err := rule.Validate(); err != nil {
		return domain.AutomationRule{}, err
	}

	triggerJSON, actionJSON, err := configJSON(rule)
	if err != nil {
		return domain.AutomationRule{}, err
	}
	rule.UpdatedAt = s.clock().UTC()

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, queryUpdateRule,
		rule.ID,
		rule.Name,
		rule.Description,
		rule.ClientID,
		string(rule.TriggerType),
		triggerJSON,
		string(rule.ActionType),
		actionJSON,
		rule.Active,
		rule.UpdatedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AutomationRule{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AutomationRule{}, err
	}
	return rule, nil
}

// DeleteRule removes a rule and its execution logs.
func (s *Store) DeleteRule(ctx context.Context, ruleID uuid.UUID) error {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, queryDeleteRule, ruleID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (s *Store) SetRuleActive(ctx context.Context, ruleID uuid.UUID, active bool) error {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, querySetRuleActive, ruleID, active, s.clock().UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// TouchRuleRun records that an execution finished at runAt. The GREATEST
// guard keeps last_run_at non-decreasing when a slow execution lands after a
// newer one already touched the rule.
func (s *Store) TouchRuleRun(ctx context.Context, ruleID uuid.UUID, runAt time.Time) error {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, queryTouchRuleRun, ruleID, runAt, s.clock().UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (s *Store) InsertExecutionLog(ctx context.Context, entry domain.ExecutionLog) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryInsertExecutionLog,
		entry.ID,
		entry.RuleID,
		string(entry.Status),
		details,
		entry.ErrorMessage,
		entry.ItemsProcessed,
		entry.ExecutionTimeMS,
		entry.CreatedAt,
	)
	return err
}

// ListExecutionLogs returns logs newest first, optionally scoped to one rule.
func (s *Store) ListExecutionLogs(ctx context.Context, ruleID *uuid.UUID, limit, offset int) ([]domain.ExecutionLog, error) {
	var rows *sql.Rows
	var err error
	if ruleID != nil {
		rows, err = s.db.QueryContext(ctx, queryListExecutionLogsByRule, *ruleID, limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, queryListExecutionLogs, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ExecutionLog
	for rows.Next() {
		var entry domain.ExecutionLog
		var status string
		var details []byte

		err := rows.Scan(
			&entry.ID,
			&entry.RuleID,
			&status,
			&details,
			&entry.ErrorMessage,
			&entry.ItemsProcessed,
			&entry.ExecutionTimeMS,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entry.Status = domain.ExecutionStatus(status)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// CountScheduledPosts returns the number of upcoming scheduled posts for a
// client. The monitor compares this against queue_low thresholds.
func (s *Store) CountScheduledPosts(ctx context.Context, clientID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, queryCountScheduledPosts, clientID).Scan(&n)
	return n, err
}

// EnsureDefaultRules seeds the default rule set. Existing rules (matched by
// their fixed IDs) are left untouched, so operator edits survive restarts.
func (s *Store) EnsureDefaultRules(ctx context.Context) error {
	now := s.clock().UTC()
	for _, rule := range domain.DefaultRules() {
		rule.CreatedAt = now
		rule.UpdatedAt = now

		args, err := ruleArgs(rule)
		if err != nil {
			return fmt.Errorf("default rule %s: %w", rule.Name, err)
		}
		if _, err := s.db.ExecContext(ctx, queryInsertRuleIfAbsent, args...); err != nil {
			return fmt.Errorf("seed rule %s: %w", rule.Name, err)
		}
	}
	log.Printf("store: default rules ensured")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (domain.AutomationRule, error) {
	var rule domain.AutomationRule
	var triggerType, actionType string
	var triggerJSON, actionJSON []byte

	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Description,
		&rule.ClientID,
		&triggerType,
		&triggerJSON,
		&actionType,
		&actionJSON,
		&rule.Active,
		&rule.LastRunAt,
		&rule.NextRunAt,
		&rule.CreatedBy,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return domain.AutomationRule{}, err
	}

	rule.TriggerType = domain.TriggerType(triggerType)
	rule.ActionType = domain.ActionType(actionType)
	if err := json.Unmarshal(triggerJSON, &rule.Trigger); err != nil {
		return domain.AutomationRule{}, fmt.Errorf("unmarshal trigger config: %w", err)
	}
	if err := json.Unmarshal(actionJSON, &rule.Action); err != nil {
		return domain.AutomationRule{}, fmt.Errorf("unmarshal action config: %w", err)
	}
	return rule, nil
}

func scanRules(rows *sql.Rows) ([]domain.AutomationRule, error) {
	var result []domain.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func configJSON(rule domain.AutomationRule) (trigger, action []byte, err error) {
	trigger, err = json.Marshal(rule.Trigger)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal trigger config: %w", err)
	}
	action, err = json.Marshal(rule.Action)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal action config: %w", err)
	}
	return trigger, action, nil
}

func ruleArgs(rule domain.AutomationRule) ([]any, error) {
	triggerJSON, actionJSON, err := configJSON(rule)
	if err != nil {
		return nil, err
	}
	return []any{
		rule.ID,
		rule.Name,
		rule.Description,
		rule.ClientID,
		string(rule.TriggerType),
		triggerJSON,
		string(rule.ActionType),
		actionJSON,
		rule.Active,
		rule.LastRunAt,
		rule.NextRunAt,
		rule.CreatedBy,
		rule.CreatedAt,
		rule.UpdatedAt,
	}, nil
}

// Compile-time interface assertions
var (
	_ scheduler.Store  = (*Store)(nil)
	_ dispatcher.Store = (*Store)(nil)
	_ monitor.Store    = (*Store)(nil)
	_ api.Store        = (*Store)(nil)
)
