package models

import "github.com/google/uuid"

// InsightType classifies a feed item. The type doubles as its priority
// class: action_needed sorts before warning, warning before info, info
// before success.
type InsightType string

const (
	InsightActionNeeded InsightType = "action_needed"
	InsightWarning      InsightType = "warning"
	InsightInfo         InsightType = "info"
	InsightSuccess      InsightType = "success"
)

// PriorityClass returns the sort class of the insight type (lower sorts
// first), or -1 for an unknown type.
func (t InsightType) PriorityClass() int {
	switch t {
	case InsightActionNeeded:
		return 0
	case InsightWarning:
		return 1
	case InsightInfo:
		return 2
	case InsightSuccess:
		return 3
	default:
		return -1
	}
}

// Insight is a derived, non-persisted feed item. IDs are synthesized from
// the source and the source record's identity so the UI can key on them.
type Insight struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Type        InsightType `json:"type"`
	LinkTarget  *string     `json:"link_target,omitempty"`
	TaskID      *uuid.UUID  `json:"task_id,omitempty"`
}

// Feed is the ranked insight list handed to the UI. Degraded is set when
// any underlying source query failed; the feed is advisory, so failures
// produce an empty degraded feed instead of an error.
type Feed struct {
	Insights []Insight `json:"insights"`
	Degraded bool      `json:"degraded"`
}
