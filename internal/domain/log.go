package domain

import (
	"time"

	"github.com/google/uuid"
)

type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
	ExecutionStatusPartial ExecutionStatus = "partial"
)

// ExecutionLog records the outcome of one rule execution attempt.
// Logs are append-only: the engine never mutates or deletes them.
type ExecutionLog struct {
	ID     uuid.UUID
	RuleID uuid.UUID

	Status       ExecutionStatus
	Details      map[string]any
	ErrorMessage string

	ItemsProcessed  int
	ExecutionTimeMS int64

	CreatedAt time.Time
}
