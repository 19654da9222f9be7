package api

import (
	"time"

	"github.com/draftwell/autopilot/internal/domain"
)

type CreateRuleRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	ClientID    *string `json:"client_id,omitempty"`

	TriggerType string               `json:"trigger_type"`
	Trigger     domain.TriggerConfig `json:"trigger"`
	ActionType  string               `json:"action_type"`
	Action      domain.ActionConfig  `json:"action"`

	Active    *bool  `json:"active,omitempty"` // default true
	CreatedBy string `json:"created_by,omitempty"`
}

// UpdateRuleRequest carries a partial update; nil fields are left unchanged.
type UpdateRuleRequest struct {
	Name        *string               `json:"name,omitempty"`
	Description *string               `json:"description,omitempty"`
	ClientID    *string               `json:"client_id,omitempty"`
	TriggerType *string               `json:"trigger_type,omitempty"`
	Trigger     *domain.TriggerConfig `json:"trigger,omitempty"`
	ActionType  *string               `json:"action_type,omitempty"`
	Action      *domain.ActionConfig  `json:"action,omitempty"`
	Active      *bool                 `json:"active,omitempty"`
}

type TriggerRuleRequest struct {
	Context map[string]any `json:"context,omitempty"`
}

type RecordApprovalRequest struct {
	ClientID string   `json:"client_id"`
	DraftIDs []string `json:"draft_ids"`
}

type RuleResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	ClientID    *string `json:"client_id,omitempty"`

	TriggerType string               `json:"trigger_type"`
	Trigger     domain.TriggerConfig `json:"trigger"`
	ActionType  string               `json:"action_type"`
	Action      domain.ActionConfig  `json:"action"`

	Active    bool    `json:"active"`
	LastRunAt *string `json:"last_run_at,omitempty"`
	CreatedBy string  `json:"created_by,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type ListRulesResponse struct {
	Rules []RuleResponse `json:"rules"`
}

type ExecutionLogResponse struct {
	ID              string         `json:"id"`
	RuleID          string         `json:"rule_id"`
	Status          string         `json:"status"`
	Details         map[string]any `json:"details,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	ItemsProcessed  int            `json:"items_processed"`
	ExecutionTimeMS int64          `json:"execution_time_ms"`
	CreatedAt       string         `json:"created_at"`
}

type ListExecutionLogsResponse struct {
	Logs []ExecutionLogResponse `json:"logs"`
}

type TriggerRuleResponse struct {
	RuleID  string `json:"rule_id"`
	Emitted bool   `json:"emitted"`
}

type RecordApprovalResponse struct {
	RulesFired int `json:"rules_fired"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func ruleResponse(rule domain.AutomationRule) RuleResponse {
	resp := RuleResponse{
		ID:          rule.ID.String(),
		Name:        rule.Name,
		Description: rule.Description,
		TriggerType: string(rule.TriggerType),
		Trigger:     rule.Trigger,
		ActionType:  string(rule.ActionType),
		Action:      rule.Action,
		Active:      rule.Active,
		CreatedBy:   rule.CreatedBy,
		CreatedAt:   formatTime(rule.CreatedAt),
		UpdatedAt:   formatTime(rule.UpdatedAt),
	}
	if rule.ClientID != nil {
		s := rule.ClientID.String()
		resp.ClientID = &s
	}
	if rule.LastRunAt != nil {
		s := formatTime(*rule.LastRunAt)
		resp.LastRunAt = &s
	}
	return resp
}

func logResponse(entry domain.ExecutionLog) ExecutionLogResponse {
	return ExecutionLogResponse{
		ID:              entry.ID.String(),
		RuleID:          entry.RuleID.String(),
		Status:          string(entry.Status),
		Details:         entry.Details,
		ErrorMessage:    entry.ErrorMessage,
		ItemsProcessed:  entry.ItemsProcessed,
		ExecutionTimeMS: entry.ExecutionTimeMS,
		CreatedAt:       formatTime(entry.CreatedAt),
	}
}
