package api

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/draftwell/autopilot/internal/domain"
)

func validateCreateRule(req CreateRuleRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if req.TriggerType == "" {
		return fmt.Errorf("trigger_type is required")
	}
	if req.ActionType == "" {
		return fmt.Errorf("action_type is required")
	}
	if _, err := parseClientID(req.ClientID); err != nil {
		return err
	}
	return nil
}

// parseClientID converts an optional client id string. Empty and nil both
// mean "no client scope".
func parseClientID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, fmt.Errorf("invalid client_id: %w", err)
	}
	return &id, nil
}

func ruleFromCreateRequest(req CreateRuleRequest) (domain.AutomationRule, error) {
	clientID, err := parseClientID(req.ClientID)
	if err != nil {
		return domain.AutomationRule{}, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	return domain.AutomationRule{
		Name:        req.Name,
		Description: req.Description,
		ClientID:    clientID,
		TriggerType: domain.TriggerType(req.TriggerType),
		Trigger:     req.Trigger,
		ActionType:  domain.ActionType(req.ActionType),
		Action:      req.Action,
		Active:      active,
		CreatedBy:   req.CreatedBy,
	}, nil
}

// applyUpdate folds a partial update onto an existing rule. The full result
// still goes through domain validation in the store.
func applyUpdate(rule domain.AutomationRule, req UpdateRuleRequest) (domain.AutomationRule, error) {
	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.ClientID != nil {
		clientID, err := parseClientID(req.ClientID)
		if err != nil {
			return domain.AutomationRule{}, err
		}
		rule.ClientID = clientID
	}
	if req.TriggerType != nil {
		rule.TriggerType = domain.TriggerType(*req.TriggerType)
	}
	if req.Trigger != nil {
		rule.Trigger = *req.Trigger
	}
	if req.ActionType != nil {
		rule.ActionType = domain.ActionType(*req.ActionType)
	}
	if req.Action != nil {
		rule.Action = *req.Action
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	return rule, nil
}
