package domain

import (
	"time"

	"github.com/google/uuid"
)

type TriggerSource string

const (
	TriggerSourceSchedule TriggerSource = "schedule"
	TriggerSourceMonitor  TriggerSource = "monitor"
	TriggerSourceManual   TriggerSource = "manual"
)

// Context keys shared between event producers and action handlers.
const (
	ContextKeyClientID  = "client_id"
	ContextKeyQueueSize = "queue_size"
	ContextKeyItems     = "items"
	ContextKeyApproved  = "approved_ids"
	ContextKeyMessage   = "message"
)

// TriggerEvent is emitted when a rule's trigger is satisfied. Context carries
// whatever the producer observed (queue size, trending items, client scope)
// for the action handler to use.
type TriggerEvent struct {
	RuleID  uuid.UUID
	Source  TriggerSource
	FiredAt time.Time
	Context map[string]any
}
