package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftwell/autopilot/internal/domain"
)

type fakeStore struct {
	rules map[uuid.UUID]domain.AutomationRule
	logs  []domain.ExecutionLog

	listErr error
}

func newFakeStore(rules ...domain.AutomationRule) *fakeStore {
	s := &fakeStore{rules: make(map[uuid.UUID]domain.AutomationRule)}
	for _, r := range rules {
		s.rules[r.ID] = r
	}
	return s
}

func (s *fakeStore) ListRules(context.Context, int, int) ([]domain.AutomationRule, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.AutomationRule
	for _, r := range s.rules {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) ListActiveRules(ctx context.Context) ([]domain.AutomationRule, error) {
	rules, err := s.ListRules(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	var out []domain.AutomationRule
	for _, r := range rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) GetRule(_ context.Context, id uuid.UUID) (domain.AutomationRule, error) {
	r, ok := s.rules[id]
	if !ok {
		return domain.AutomationRule{}, domain.ErrNotFound
	}
	return r, nil
}

func (s *fakeStore) CreateRule(_ context.Context, rule domain.AutomationRule) (domain.AutomationRule, error) {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if err := rule.Validate(); err != nil {
		return domain.AutomationRule{}, err
	}
	s.rules[rule.ID] = rule
	return rule, nil
}

func (s *fakeStore) UpdateRule(_ context.Context, rule domain.AutomationRule) (domain.AutomationRule, error) {
	if err := rule.Validate(); err != nil {
		return domain.AutomationRule{}, err
	}
	if _, ok := s.rules[rule.ID]; !ok {
		return domain.AutomationRule{}, domain.ErrNotFound
	}
	s.rules[rule.ID] = rule
	return rule, nil
}

func (s *fakeStore) DeleteRule(_ context.Context, id uuid.UUID) error {
	if _, ok := s.rules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *fakeStore) SetRuleActive(_ context.Context, id uuid.UUID, active bool) error {
	r, ok := s.rules[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Active = active
	s.rules[id] = r
	return nil
}

func (s *fakeStore) ListExecutionLogs(_ context.Context, ruleID *uuid.UUID, _, _ int) ([]domain.ExecutionLog, error) {
	var out []domain.ExecutionLog
	for _, l := range s.logs {
		if ruleID == nil || l.RuleID == *ruleID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeEmitter struct {
	events []domain.TriggerEvent
	err    error
}

func (e *fakeEmitter) Emit(_ context.Context, event domain.TriggerEvent) error {
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

func activeRule() domain.AutomationRule {
	return domain.AutomationRule{
		ID:          uuid.New(),
		Name:        "daily scrape",
		TriggerType: domain.TriggerTypeSchedule,
		ActionType:  domain.ActionTypeScrape,
		Trigger: domain.TriggerConfig{Schedule: &domain.ScheduleTrigger{
			Frequency: domain.FrequencyDaily, Time: "06:00",
		}},
		Action: domain.ActionConfig{Scrape: &domain.ScrapeAction{Limit: 10}},
		Active: true,
	}
}

func doRequest(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewHandler(newFakeStore(), &fakeEmitter{})
	rec := doRequest(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }

func TestHealth_VerboseDegraded(t *testing.T) {
	h := NewHandler(newFakeStore(), &fakeEmitter{}).WithHealthChecker(failingPinger{})
	rec := doRequest(t, h, http.MethodGet, "/health?verbose=true", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestCreateRule(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, &fakeEmitter{})

	req := CreateRuleRequest{
		Name:        "weekly report",
		TriggerType: "schedule",
		Trigger: domain.TriggerConfig{Schedule: &domain.ScheduleTrigger{
			Frequency: domain.FrequencyWeekly, Time: "09:00", DayOfWeek: intPtr(1),
		}},
		ActionType: "notify",
		Action: domain.ActionConfig{Notify: &domain.NotifyAction{
			Channel: "email", Recipients: []string{"ops@draftwell.io"},
		}},
	}
	rec := doRequest(t, h, http.MethodPost, "/rules", req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp RuleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "weekly report", resp.Name)
	assert.True(t, resp.Active, "rules default to active")
	assert.Len(t, store.rules, 1)
}

func TestCreateRule_VariantMismatchIs400(t *testing.T) {
	h := NewHandler(newFakeStore(), &fakeEmitter{})

	req := CreateRuleRequest{
		Name:        "broken",
		TriggerType: "schedule",
		Trigger: domain.TriggerConfig{Event: &domain.EventTrigger{
			Event: domain.EventQueueLow, Threshold: 3,
		}},
		ActionType: "notify",
		Action: domain.ActionConfig{Notify: &domain.NotifyAction{
			Channel: "email", Recipients: []string{"ops@draftwell.io"},
		}},
	}
	rec := doRequest(t, h, http.MethodPost, "/rules", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRule_MissingName(t *testing.T) {
	h := NewHandler(newFakeStore(), &fakeEmitter{})
	rec := doRequest(t, h, http.MethodPost, "/rules", CreateRuleRequest{TriggerType: "schedule", ActionType: "notify"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name is required")
}

func TestGetRule_NotFound(t *testing.T) {
	h := NewHandler(newFakeStore(), &fakeEmitter{})
	rec := doRequest(t, h, http.MethodGet, "/rules/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRule_BadID(t *testing.T) {
	h := NewHandler(newFakeStore(), &fakeEmitter{})
	rec := doRequest(t, h, http.MethodGet, "/rules/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateRule_PartialPatch(t *testing.T) {
	rule := activeRule()
	store := newFakeStore(rule)
	h := NewHandler(store, &fakeEmitter{})

	rec := doRequest(t, h, http.MethodPatch, "/rules/"+rule.ID.String(),
		UpdateRuleRequest{Name: strPtr("renamed")})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "renamed", store.rules[rule.ID].Name)
	assert.Equal(t, domain.ActionTypeScrape, store.rules[rule.ID].ActionType, "untouched fields preserved")
}

func TestDeleteRule(t *testing.T) {
	rule := activeRule()
	store := newFakeStore(rule)
	h := NewHandler(store, &fakeEmitter{})

	rec := doRequest(t, h, http.MethodDelete, "/rules/"+rule.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.rules)
}

func TestToggleRule(t *testing.T) {
	rule := activeRule()
	store := newFakeStore(rule)
	h := NewHandler(store, &fakeEmitter{})

	rec := doRequest(t, h, http.MethodPost, "/rules/"+rule.ID.String()+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, store.rules[rule.ID].Active)

	rec = doRequest(t, h, http.MethodPost, "/rules/"+rule.ID.String()+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, store.rules[rule.ID].Active)
}

func TestTriggerRule_EmitsManualEvent(t *testing.T) {
	rule := activeRule()
	emitter := &fakeEmitter{}
	h := NewHandler(newFakeStore(rule), emitter)

	rec := doRequest(t, h, http.MethodPost, "/rules/"+rule.ID.String()+"/trigger", nil)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, emitter.events, 1)
	assert.Equal(t, rule.ID, emitter.events[0].RuleID)
	assert.Equal(t, domain.TriggerSourceManual, emitter.events[0].Source)
}

func TestTriggerRule_InactiveIs409(t *testing.T) {
	rule := activeRule()
	rule.Active = false
	emitter := &fakeEmitter{}
	h := NewHandler(newFakeStore(rule), emitter)

	rec := doRequest(t, h, http.MethodPost, "/rules/"+rule.ID.String()+"/trigger", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, emitter.events)
}

func TestTriggerRule_BufferFullIs503(t *testing.T) {
	rule := activeRule()
	emitter := &fakeEmitter{err: errors.New("buffer full")}
	h := NewHandler(newFakeStore(rule), emitter)

	rec := doRequest(t, h, http.MethodPost, "/rules/"+rule.ID.String()+"/trigger", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRuleLogs(t *testing.T) {
	rule := activeRule()
	store := newFakeStore(rule)
	store.logs = []domain.ExecutionLog{
		{ID: uuid.New(), RuleID: rule.ID, Status: domain.ExecutionStatusSuccess, ItemsProcessed: 3, CreatedAt: time.Now()},
		{ID: uuid.New(), RuleID: uuid.New(), Status: domain.ExecutionStatusFailed, CreatedAt: time.Now()},
	}
	h := NewHandler(store, &fakeEmitter{})

	rec := doRequest(t, h, http.MethodGet, "/rules/"+rule.ID.String()+"/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListExecutionLogsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Logs, 1, "only this rule's logs")
	assert.Equal(t, "success", resp.Logs[0].Status)
}

func TestListLogs_Pagination(t *testing.T) {
	h := NewHandler(newFakeStore(), &fakeEmitter{})

	rec := doRequest(t, h, http.MethodGet, "/logs?limit=5000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "limit exceeds maximum")

	rec = doRequest(t, h, http.MethodGet, "/logs?offset=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordApproval_FiresContentApprovedRules(t *testing.T) {
	approvalRule := domain.AutomationRule{
		ID:          uuid.New(),
		Name:        "publish on approval",
		TriggerType: domain.TriggerTypeEvent,
		ActionType:  domain.ActionTypePublish,
		Trigger: domain.TriggerConfig{Event: &domain.EventTrigger{
			Event: domain.EventContentApproved,
		}},
		Action: domain.ActionConfig{Publish: &domain.PublishAction{
			Platform: "linkedin", ScheduleAheadHours: 24,
		}},
		Active: true,
	}
	emitter := &fakeEmitter{}
	h := NewHandler(newFakeStore(approvalRule, activeRule()), emitter)

	clientID := uuid.NewString()
	rec := doRequest(t, h, http.MethodPost, "/approvals", RecordApprovalRequest{
		ClientID: clientID,
		DraftIDs: []string{uuid.NewString()},
	})

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, emitter.events, 1, "only the content_approved rule fires")
	assert.Equal(t, approvalRule.ID, emitter.events[0].RuleID)
	assert.Equal(t, clientID, emitter.events[0].Context[domain.ContextKeyClientID])
}

func TestRecordApproval_RequiresClientID(t *testing.T) {
	h := NewHandler(newFakeStore(), &fakeEmitter{})
	rec := doRequest(t, h, http.MethodPost, "/approvals", RecordApprovalRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRule_InvalidJSON(t *testing.T) {
	h := NewHandler(newFakeStore(), &fakeEmitter{})

	req := httptest.NewRequest(http.MethodPost, "/rules", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid json")
}

func intPtr(v int) *int          { return &v }
func strPtr(s string) *string    { return &s }
