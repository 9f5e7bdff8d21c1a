package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of an agent task
type TaskStatus string

const (
	// TaskStatusPendingInput is the checkpoint state: the agent has proposed
	// work and is waiting for an owner decision
	TaskStatusPendingInput TaskStatus = "pending_input"
	// TaskStatusScheduled means the task is queued for autonomous execution
	// but has not started
	TaskStatusScheduled TaskStatus = "scheduled"
	// TaskStatusInProgress means the agent is executing
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted is terminal
	TaskStatusCompleted TaskStatus = "completed"
)

// TaskPriority represents the urgency of an agent task
type TaskPriority string

const (
	PriorityUrgent TaskPriority = "urgent"
	PriorityHigh   TaskPriority = "high"
	PriorityNormal TaskPriority = "normal"
	PriorityLow    TaskPriority = "low"
)

// Ordinal returns the sort position of the priority (urgent sorts first),
// or -1 for an unknown priority.
func (p TaskPriority) Ordinal() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return -1
	}
}

// TimelineEntry is one immutable step in a task's execution timeline.
// Entries are append-only and ordered by occurrence; their completed /
// current / pending status is derived from the task's cursor, not stored.
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Reasoning *string   `json:"reasoning,omitempty"`
}

// StepStatus is the derived position of a timeline entry relative to the
// task's cursor
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepCurrent   StepStatus = "current"
	StepPending   StepStatus = "pending"
)

// TimelineStep is a timeline entry with its derived status, as surfaced to
// the UI.
type TimelineStep struct {
	TimelineEntry
	Status StepStatus `json:"status"`
}

// AgentTask is one unit of agent-initiated work. Tasks are created by the
// agent, mutated by owner decisions and agent progress updates, and never
// deleted; terminal tasks persist for history.
type AgentTask struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    TaskCategory `json:"category"`
	Priority    TaskPriority `json:"priority"`
	Status      TaskStatus   `json:"status"`
	// ManualOverride pauses autonomous execution on this task regardless of
	// category-level autonomy. It does not change Status.
	ManualOverride bool `json:"manual_override"`
	// Timeline is the ordered step list; CurrentStep is the index of the
	// step the agent is on. CurrentStep == len(Timeline) means every step
	// has completed. Keeping the cursor explicit makes the at-most-one
	// "current" step invariant structural.
	Timeline       []TimelineEntry `json:"-"`
	CurrentStep    int             `json:"current_step"`
	Recommendation *string         `json:"recommendation,omitempty"`
	LinkTarget     *string         `json:"link_target,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Steps returns the timeline with derived per-step statuses: entries before
// the cursor are completed, the entry at the cursor is current, entries
// after it are pending.
func (t *AgentTask) Steps() []TimelineStep {
	steps := make([]TimelineStep, 0, len(t.Timeline))
	for i, entry := range t.Timeline {
		status := StepPending
		switch {
		case i < t.CurrentStep:
			status = StepCompleted
		case i == t.CurrentStep:
			status = StepCurrent
		}
		steps = append(steps, TimelineStep{TimelineEntry: entry, Status: status})
	}
	return steps
}

// Terminal reports whether the task has reached a terminal state.
func (t *AgentTask) Terminal() bool {
	return t.Status == TaskStatusCompleted
}
