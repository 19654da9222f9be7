package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrValidation is returned when a rule's trigger or action configuration
// does not match its declared type, or when a config field is out of range.
var ErrValidation = errors.New("validation error")

// ErrNotFound is returned when a rule does not exist.
var ErrNotFound = errors.New("rule not found")

type TriggerType string

const (
	TriggerTypeSchedule  TriggerType = "schedule"
	TriggerTypeEvent     TriggerType = "event"
	TriggerTypeCondition TriggerType = "condition"
)

type ActionType string

const (
	ActionTypeScrape   ActionType = "scrape"
	ActionTypeGenerate ActionType = "generate"
	ActionTypeApprove  ActionType = "approve"
	ActionTypePublish  ActionType = "publish"
	ActionTypeNotify   ActionType = "notify"
)

type Frequency string

const (
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

type EventType string

const (
	EventTrendingContent EventType = "trending_content"
	EventQueueLow        EventType = "queue_low"
	EventContentApproved EventType = "content_approved"
)

type Operator string

const (
	OperatorEq       Operator = "eq"
	OperatorGt       Operator = "gt"
	OperatorLt       Operator = "lt"
	OperatorContains Operator = "contains"
)

// ScheduleTrigger fires on a fixed cadence. Time is "HH:MM" in UTC and is
// matched with a ±5 minute tolerance. DayOfWeek (0=Sunday) applies to weekly
// rules, DayOfMonth to monthly rules.
type ScheduleTrigger struct {
	Frequency  Frequency `json:"frequency"`
	Time       string    `json:"time,omitempty"`
	DayOfWeek  *int      `json:"day_of_week,omitempty"`
	DayOfMonth *int      `json:"day_of_month,omitempty"`
}

// EventTrigger fires when the event monitor observes the named condition.
type EventTrigger struct {
	Event     EventType `json:"event"`
	Threshold float64   `json:"threshold,omitempty"`
}

// ConditionTrigger fires when a field comparison holds.
type ConditionTrigger struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// TriggerConfig is a tagged union: exactly one variant is non-nil, and it
// must correspond to the rule's TriggerType.
type TriggerConfig struct {
	Schedule  *ScheduleTrigger  `json:"schedule,omitempty"`
	Event     *EventTrigger     `json:"event,omitempty"`
	Condition *ConditionTrigger `json:"condition,omitempty"`
}

type ScrapeAction struct {
	Sources         []string `json:"sources,omitempty"`
	Limit           int      `json:"limit,omitempty"`
	MinQualityScore float64  `json:"min_quality_score,omitempty"`
}

type GenerateAction struct {
	Count    int    `json:"count,omitempty"`
	Template string `json:"template,omitempty"`
}

type ApproveAction struct {
	AutoApproveThreshold float64 `json:"auto_approve_threshold"`
	RequiresManualReview bool    `json:"requires_manual_review"`
}

type PublishAction struct {
	Platform           string `json:"platform"`
	ScheduleAheadHours int    `json:"schedule_ahead_hours"`
}

type NotifyAction struct {
	Channel    string   `json:"channel"`
	Recipients []string `json:"recipients,omitempty"`
	Message    string   `json:"message"`
}

// ActionConfig is a tagged union: exactly one variant is non-nil, and it
// must correspond to the rule's ActionType.
type ActionConfig struct {
	Scrape   *ScrapeAction   `json:"scrape,omitempty"`
	Generate *GenerateAction `json:"generate,omitempty"`
	Approve  *ApproveAction  `json:"approve,omitempty"`
	Publish  *PublishAction  `json:"publish,omitempty"`
	Notify   *NotifyAction   `json:"notify,omitempty"`
}

// AutomationRule is a stored trigger+action configuration evaluated by the
// engine. ClientID scopes the rule to a single client when set.
type AutomationRule struct {
	ID          uuid.UUID
	Name        string
	Description string
	ClientID    *uuid.UUID

	TriggerType TriggerType
	Trigger     TriggerConfig
	ActionType  ActionType
	Action      ActionConfig

	Active    bool
	LastRunAt *time.Time
	NextRunAt *time.Time
	CreatedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks that the trigger and action configs carry exactly the
// variant their declared types announce, and that schedule fields are in
// range. It returns an error wrapping ErrValidation on any mismatch.
func (r *AutomationRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}

	if err := r.validateTrigger(); err != nil {
		return err
	}
	return r.validateAction()
}

func (r *AutomationRule) validateTrigger() error {
	variants := 0
	if r.Trigger.Schedule != nil {
		variants++
	}
	if r.Trigger.Event != nil {
		variants++
	}
	if r.Trigger.Condition != nil {
		variants++
	}
	if variants != 1 {
		return fmt.Errorf("%w: trigger_config must carry exactly one variant, got %d", ErrValidation, variants)
	}

	switch r.TriggerType {
	case TriggerTypeSchedule:
		if r.Trigger.Schedule == nil {
			return fmt.Errorf("%w: trigger_config does not match trigger_type %q", ErrValidation, r.TriggerType)
		}
		return validateScheduleTrigger(r.Trigger.Schedule)
	case TriggerTypeEvent:
		if r.Trigger.Event == nil {
			return fmt.Errorf("%w: trigger_config does not match trigger_type %q", ErrValidation, r.TriggerType)
		}
		switch r.Trigger.Event.Event {
		case EventTrendingContent, EventQueueLow, EventContentApproved:
			return nil
		default:
			return fmt.Errorf("%w: unknown event type %q", ErrValidation, r.Trigger.Event.Event)
		}
	case TriggerTypeCondition:
		if r.Trigger.Condition == nil {
			return fmt.Errorf("%w: trigger_config does not match trigger_type %q", ErrValidation, r.TriggerType)
		}
		c := r.Trigger.Condition
		if c.Field == "" {
			return fmt.Errorf("%w: condition field is required", ErrValidation)
		}
		switch c.Operator {
		case OperatorEq, OperatorGt, OperatorLt, OperatorContains:
			return nil
		default:
			return fmt.Errorf("%w: unknown operator %q", ErrValidation, c.Operator)
		}
	default:
		return fmt.Errorf("%w: unknown trigger_type %q", ErrValidation, r.TriggerType)
	}
}

func validateScheduleTrigger(s *ScheduleTrigger) error {
	switch s.Frequency {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrValidation, s.Frequency)
	}

	if s.Time != "" {
		if _, _, err := ParseClockTime(s.Time); err != nil {
			return fmt.Errorf("%w: invalid time %q: %v", ErrValidation, s.Time, err)
		}
	}
	if s.DayOfWeek != nil && (*s.DayOfWeek < 0 || *s.DayOfWeek > 6) {
		return fmt.Errorf("%w: day_of_week must be 0-6, got %d", ErrValidation, *s.DayOfWeek)
	}
	if s.DayOfMonth != nil && (*s.DayOfMonth < 1 || *s.DayOfMonth > 31) {
		return fmt.Errorf("%w: day_of_month must be 1-31, got %d", ErrValidation, *s.DayOfMonth)
	}
	return nil
}

func (r *AutomationRule) validateAction() error {
	variants := 0
	for _, set := range []bool{
		r.Action.Scrape != nil,
		r.Action.Generate != nil,
		r.Action.Approve != nil,
		r.Action.Publish != nil,
		r.Action.Notify != nil,
	} {
		if set {
			variants++
		}
	}
	if variants != 1 {
		return fmt.Errorf("%w: action_config must carry exactly one variant, got %d", ErrValidation, variants)
	}

	var match bool
	switch r.ActionType {
	case ActionTypeScrape:
		match = r.Action.Scrape != nil
	case ActionTypeGenerate:
		match = r.Action.Generate != nil
	case ActionTypeApprove:
		match = r.Action.Approve != nil
	case ActionTypePublish:
		match = r.Action.Publish != nil
	case ActionTypeNotify:
		match = r.Action.Notify != nil
	default:
		return fmt.Errorf("%w: unknown action_type %q", ErrValidation, r.ActionType)
	}
	if !match {
		return fmt.Errorf("%w: action_config does not match action_type %q", ErrValidation, r.ActionType)
	}
	return nil
}

// ParseClockTime parses a "HH:MM" string into hour and minute.
func ParseClockTime(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
