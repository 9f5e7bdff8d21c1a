package models

import (
	"time"

	"github.com/google/uuid"
)

// AutonomyPreset is a named bundle of default autonomy levels per task category
type AutonomyPreset string

const (
	PresetCautious AutonomyPreset = "cautious"
	PresetBalanced AutonomyPreset = "balanced"
	PresetHandsOff AutonomyPreset = "hands_off"
	PresetCustom   AutonomyPreset = "custom"
)

// AutonomyLevel is an ordinal permission grade controlling how much the agent
// may act without human sign-off. Higher levels permit a strict superset of
// what lower levels permit.
type AutonomyLevel string

const (
	// LevelNotifyOnly (L0): the agent only surfaces findings, never acts
	LevelNotifyOnly AutonomyLevel = "notify_only"
	// LevelSuggest (L1): the agent proposes actions that require approval
	LevelSuggest AutonomyLevel = "suggest"
	// LevelAutoRoutine (L2): the agent executes routine actions unattended
	LevelAutoRoutine AutonomyLevel = "auto_routine"
	// LevelAutoFull (L3): the agent executes all actions in the category unattended
	LevelAutoFull AutonomyLevel = "auto_full"
)

// Ordinal returns the level's position on the L0..L3 scale, or -1 for an
// unknown level.
func (l AutonomyLevel) Ordinal() int {
	switch l {
	case LevelNotifyOnly:
		return 0
	case LevelSuggest:
		return 1
	case LevelAutoRoutine:
		return 2
	case LevelAutoFull:
		return 3
	default:
		return -1
	}
}

// Covers reports whether l permits everything other permits.
func (l AutonomyLevel) Covers(other AutonomyLevel) bool {
	return l.Ordinal() >= other.Ordinal()
}

// AllowsAutoExecution reports whether the agent may execute work in this
// category without a human checkpoint.
func (l AutonomyLevel) AllowsAutoExecution() bool {
	return l.Ordinal() >= LevelAutoRoutine.Ordinal()
}

// ValidAutonomyLevel reports whether l is a member of the closed level set.
func ValidAutonomyLevel(l AutonomyLevel) bool {
	return l.Ordinal() >= 0
}

// TaskCategory is a business domain an agent task belongs to
type TaskCategory string

const (
	CategoryTenantFinding   TaskCategory = "tenant_finding"
	CategoryLeaseManagement TaskCategory = "lease_management"
	CategoryRentCollection  TaskCategory = "rent_collection"
	CategoryMaintenance     TaskCategory = "maintenance"
	CategoryCompliance      TaskCategory = "compliance"
	CategoryGeneral         TaskCategory = "general"
	CategoryInspections     TaskCategory = "inspections"
	CategoryListings        TaskCategory = "listings"
	CategoryFinancial       TaskCategory = "financial"
	CategoryInsurance       TaskCategory = "insurance"
	CategoryCommunication   TaskCategory = "communication"
)

// AllTaskCategories returns every valid task category. The set is closed:
// anything not in this list is invalid input.
func AllTaskCategories() []TaskCategory {
	return []TaskCategory{
		CategoryTenantFinding,
		CategoryLeaseManagement,
		CategoryRentCollection,
		CategoryMaintenance,
		CategoryCompliance,
		CategoryGeneral,
		CategoryInspections,
		CategoryListings,
		CategoryFinancial,
		CategoryInsurance,
		CategoryCommunication,
	}
}

// ValidTaskCategory reports whether c is a member of the closed category set.
func ValidTaskCategory(c TaskCategory) bool {
	for _, known := range AllTaskCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// AutonomySettings holds a user's active preset and sparse per-category
// overrides. Absent override entries fall back to the preset's built-in
// defaults. Rows are created lazily on first write; a missing row means
// "balanced preset, no overrides".
type AutonomySettings struct {
	UserID    uuid.UUID                      `json:"user_id"`
	Preset    AutonomyPreset                 `json:"preset"`
	Overrides map[TaskCategory]AutonomyLevel `json:"overrides"`
	CreatedAt time.Time                      `json:"created_at"`
	UpdatedAt time.Time                      `json:"updated_at"`
}
