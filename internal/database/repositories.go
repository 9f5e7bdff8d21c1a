package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/models"
)

// AutonomySettingsRepositoryInterface defines the interface for autonomy
// settings repository operations. This interface enables better testability
// by allowing mock implementations
type AutonomySettingsRepositoryInterface interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.AutonomySettings, error)
	SetPreset(ctx context.Context, userID uuid.UUID, preset models.AutonomyPreset) error
	MergeOverride(ctx context.Context, userID uuid.UUID, category models.TaskCategory, level models.AutonomyLevel) error
}

// AgentTaskRepositoryInterface defines the interface for agent task
// repository operations
type AgentTaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.AgentTask) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AgentTask, error)
	GetByUserIDPaginated(ctx context.Context, userID uuid.UUID, status *models.TaskStatus, category *models.TaskCategory, page, pageSize int) ([]*models.AgentTask, int, error)
	ListByStatus(ctx context.Context, userID uuid.UUID, status models.TaskStatus, limit int) ([]*models.AgentTask, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.TaskStatus) (bool, error)
	Resolve(ctx context.Context, id uuid.UUID, from models.TaskStatus, entry models.TimelineEntry) (bool, error)
	SetManualOverride(ctx context.Context, id uuid.UUID, paused bool) (bool, error)
	AppendTimelineEntry(ctx context.Context, id uuid.UUID, entry models.TimelineEntry, advanceCursor bool) error
}

// ProactiveActionRepositoryInterface defines the interface for proactive
// action repository operations
type ProactiveActionRepositoryInterface interface {
	Insert(ctx context.Context, action *models.ProactiveAction) error
	Recent(ctx context.Context, userID uuid.UUID, since time.Time, onlyAutoExecuted bool, limit int) ([]*models.ProactiveAction, error)
}

// TenancyRepositoryInterface defines the interface for tenancy risk queries
type TenancyRepositoryInterface interface {
	ArrearsSummary(ctx context.Context, userID uuid.UUID) (*models.ArrearsSummary, error)
	ExpiringLeases(ctx context.Context, userID uuid.UUID, withinDays int) ([]*models.ExpiringLease, error)
}

// Ensure concrete types implement the interfaces
var (
	_ AutonomySettingsRepositoryInterface = (*AutonomySettingsRepository)(nil)
	_ AgentTaskRepositoryInterface        = (*AgentTaskRepository)(nil)
	_ ProactiveActionRepositoryInterface  = (*ProactiveActionRepository)(nil)
	_ TenancyRepositoryInterface          = (*TenancyRepository)(nil)
)
