package proactive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/database"
	"github.com/propeld/propeld/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultWindowDays is the default lookback window for Recent
	DefaultWindowDays = 7
	// DefaultLimit is the default cap for Recent
	DefaultLimit = 20
	// MaxLimit bounds how many records one query may return
	MaxLimit = 100
)

// ErrEmptyAction is returned when a record has no action description
var ErrEmptyAction = errors.New("action description is required")

// Recorder is the append-only log of autonomous executions. Each record
// captures what the agent did without a human checkpoint and why it was
// triggered. There is no dedup: idempotency belongs to the caller.
type Recorder struct {
	actionRepo database.ProactiveActionRepositoryInterface
	logger     *zap.Logger
}

// NewRecorder creates a new proactive action recorder
func NewRecorder(actionRepo database.ProactiveActionRepositoryInterface, logger *zap.Logger) *Recorder {
	return &Recorder{actionRepo: actionRepo, logger: logger}
}

// Record appends one immutable action record and returns it.
func (r *Recorder) Record(ctx context.Context, userID uuid.UUID, trigger models.TriggerType, actionTaken string, taskID *uuid.UUID, autoExecuted bool) (*models.ProactiveAction, error) {
	if actionTaken == "" {
		return nil, ErrEmptyAction
	}

	action := &models.ProactiveAction{
		ID:              uuid.New(),
		UserID:          userID,
		TaskID:          taskID,
		TriggerType:     trigger,
		ActionTaken:     actionTaken,
		WasAutoExecuted: autoExecuted,
	}
	if err := r.actionRepo.Insert(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to record proactive action: %w", err)
	}

	r.logger.Info("proactive_action_recorded",
		zap.String("user_id", userID.String()),
		zap.String("trigger_type", string(trigger)),
		zap.Bool("auto_executed", autoExecuted),
	)
	return action, nil
}

// Recent returns the user's action records from the trailing withinDays
// days, newest first, capped at limit. With onlyAutoExecuted set, records of
// checkpointed work are excluded.
func (r *Recorder) Recent(ctx context.Context, userID uuid.UUID, withinDays int, onlyAutoExecuted bool, limit int) ([]*models.ProactiveAction, error) {
	if withinDays <= 0 {
		withinDays = DefaultWindowDays
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	since := time.Now().AddDate(0, 0, -withinDays)
	return r.actionRepo.Recent(ctx, userID, since, onlyAutoExecuted, limit)
}
