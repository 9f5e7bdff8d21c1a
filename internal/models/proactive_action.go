package models

import (
	"time"

	"github.com/google/uuid"
)

// TriggerType identifies the condition that caused a proactive action
type TriggerType string

const (
	TriggerArrearsDetected TriggerType = "arrears_detected"
	TriggerLeaseExpiring   TriggerType = "lease_expiring"
	TriggerMaintenanceDue  TriggerType = "maintenance_due"
	TriggerRoutineStep     TriggerType = "routine_step"
	TriggerScheduledCheck  TriggerType = "scheduled_check"
)

// ProactiveAction is an immutable record of one autonomous execution: work
// the agent performed without a human checkpoint. Records are append-only
// and never mutated; they are the audit source for the insight feed.
type ProactiveAction struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	TaskID          *uuid.UUID  `json:"task_id,omitempty"`
	TriggerType     TriggerType `json:"trigger_type"`
	ActionTaken     string      `json:"action_taken"`
	WasAutoExecuted bool        `json:"was_auto_executed"`
	CreatedAt       time.Time   `json:"created_at"`
}
