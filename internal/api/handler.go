// Package api is the HTTP surface for rule administration: CRUD, toggling,
// manual triggers, and execution log reads. It talks to the same store as the
// engine loops and emits trigger events onto the same bus, so a manual
// trigger takes the exact path a scheduled one does.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/draftwell/autopilot/internal/domain"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

type Store interface {
	ListRules(ctx context.Context, limit, offset int) ([]domain.AutomationRule, error)
	ListActiveRules(ctx context.Context) ([]domain.AutomationRule, error)
	GetRule(ctx context.Context, ruleID uuid.UUID) (domain.AutomationRule, error)
	CreateRule(ctx context.Context, rule domain.AutomationRule) (domain.AutomationRule, error)
	UpdateRule(ctx context.Context, rule domain.AutomationRule) (domain.AutomationRule, error)
	DeleteRule(ctx context.Context, ruleID uuid.UUID) error
	SetRuleActive(ctx context.Context, ruleID uuid.UUID, active bool) error
	ListExecutionLogs(ctx context.Context, ruleID *uuid.UUID, limit, offset int) ([]domain.ExecutionLog, error)
}

// EventEmitter hands trigger events to the dispatch pipeline.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.TriggerEvent) error
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	store   Store
	emitter EventEmitter
	db      HealthChecker
	clock   func() time.Time
}

func NewHandler(store Store, emitter EventEmitter) *Handler {
	return &Handler{store: store, emitter: emitter, clock: time.Now}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithClock overrides the clock, for tests.
func (h *Handler) WithClock(clock func() time.Time) *Handler {
	h.clock = clock
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.health)

	r.Route("/rules", func(r chi.Router) {
		r.Post("/", h.createRule)
		r.Get("/", h.listRules)

		r.Route("/{ruleID}", func(r chi.Router) {
			r.Get("/", h.getRule)
			r.Patch("/", h.updateRule)
			r.Delete("/", h.deleteRule)
			r.Post("/toggle", h.toggleRule)
			r.Post("/trigger", h.triggerRule)
			r.Get("/logs", h.listRuleLogs)
		})
	})

	r.Get("/logs", h.listLogs)
	r.Post("/approvals", h.recordApproval)

	return r
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := validateCreateRule(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := ruleFromCreateRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.store.CreateRule(r.Context(), rule)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("api: create rule error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}

	writeJSON(w, http.StatusCreated, ruleResponse(created))
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rules, err := h.store.ListRules(r.Context(), limit, offset)
	if err != nil {
		log.Printf("api: list rules error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}

	resp := ListRulesResponse{Rules: make([]RuleResponse, len(rules))}
	for i, rule := range rules {
		resp.Rules[i] = ruleResponse(rule)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := ruleIDParam(w, r)
	if !ok {
		return
	}

	rule, err := h.store.GetRule(r.Context(), ruleID)
	if err != nil {
		writeStoreError(w, err, "failed to get rule")
		return
	}
	writeJSON(w, http.StatusOK, ruleResponse(rule))
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := ruleIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rule, err := h.store.GetRule(r.Context(), ruleID)
	if err != nil {
		writeStoreError(w, err, "failed to get rule")
		return
	}

	rule, err = applyUpdate(rule, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.store.UpdateRule(r.Context(), rule)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeStoreError(w, err, "failed to update rule")
		return
	}
	writeJSON(w, http.StatusOK, ruleResponse(updated))
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := ruleIDParam(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteRule(r.Context(), ruleID); err != nil {
		writeStoreError(w, err, "failed to delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggleRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := ruleIDParam(w, r)
	if !ok {
		return
	}

	rule, err := h.store.GetRule(r.Context(), ruleID)
	if err != nil {
		writeStoreError(w, err, "failed to get rule")
		return
	}

	if err := h.store.SetRuleActive(r.Context(), ruleID, !rule.Active); err != nil {
		writeStoreError(w, err, "failed to toggle rule")
		return
	}

	rule.Active = !rule.Active
	writeJSON(w, http.StatusOK, ruleResponse(rule))
}

// triggerRule fires a rule immediately, bypassing its trigger condition but
// not the execution guard: the event goes through the bus like any other.
func (h *Handler) triggerRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := ruleIDParam(w, r)
	if !ok {
		return
	}

	var req TriggerRuleRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	rule, err := h.store.GetRule(r.Context(), ruleID)
	if err != nil {
		writeStoreError(w, err, "failed to get rule")
		return
	}
	if !rule.Active {
		writeError(w, http.StatusConflict, "rule is inactive")
		return
	}

	eventCtx := req.Context
	if eventCtx == nil {
		eventCtx = map[string]any{}
	}

	event := domain.TriggerEvent{
		RuleID:  rule.ID,
		Source:  domain.TriggerSourceManual,
		FiredAt: h.clock().UTC(),
		Context: eventCtx,
	}
	if err := h.emitter.Emit(r.Context(), event); err != nil {
		log.Printf("api: trigger rule=%s emit failed: %v", rule.ID, err)
		writeError(w, http.StatusServiceUnavailable, "event buffer full, try again")
		return
	}

	log.Printf("api: manual trigger rule=%s", rule.ID)
	writeJSON(w, http.StatusAccepted, TriggerRuleResponse{RuleID: rule.ID.String(), Emitted: true})
}

func (h *Handler) listRuleLogs(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := ruleIDParam(w, r)
	if !ok {
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := h.store.ListExecutionLogs(r.Context(), &ruleID, limit, offset)
	if err != nil {
		log.Printf("api: list logs error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	writeLogsResponse(w, logs)
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := h.store.ListExecutionLogs(r.Context(), nil, limit, offset)
	if err != nil {
		log.Printf("api: list logs error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	writeLogsResponse(w, logs)
}

// recordApproval fires every active content_approved rule when the dashboard
// records an approval. This is the producer for the third event type; the
// scheduler and monitor never emit it.
func (h *Handler) recordApproval(w http.ResponseWriter, r *http.Request) {
	var req RecordApprovalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	if _, err := uuid.Parse(req.ClientID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid client_id")
		return
	}

	rules, err := h.store.ListActiveRules(r.Context())
	if err != nil {
		log.Printf("api: record approval error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}

	fired := 0
	for _, rule := range rules {
		if rule.TriggerType != domain.TriggerTypeEvent || rule.Trigger.Event == nil {
			continue
		}
		if rule.Trigger.Event.Event != domain.EventContentApproved {
			continue
		}

		event := domain.TriggerEvent{
			RuleID:  rule.ID,
			Source:  domain.TriggerSourceManual,
			FiredAt: h.clock().UTC(),
			Context: map[string]any{
				domain.ContextKeyClientID: req.ClientID,
				domain.ContextKeyApproved: req.DraftIDs,
			},
		}
		if err := h.emitter.Emit(r.Context(), event); err != nil {
			log.Printf("api: approval rule=%s emit failed: %v", rule.ID, err)
			continue
		}
		fired++
	}

	writeJSON(w, http.StatusAccepted, RecordApprovalResponse{RulesFired: fired})
}

func ruleIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return uuid.Nil, false
	}
	return ruleID, true
}

// decodeBody decodes a size-limited JSON body, writing the error response
// itself. Returns false when the caller should stop.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	log.Printf("api: %s: %v", msg, err)
	writeError(w, http.StatusInternalServerError, msg)
}

func writeLogsResponse(w http.ResponseWriter, logs []domain.ExecutionLog) {
	resp := ListExecutionLogsResponse{Logs: make([]ExecutionLogResponse, len(logs))}
	for i, entry := range logs {
		resp.Logs[i] = logResponse(entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
