package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/models"
)

// ProactiveActionRepository handles the append-only proactive action log.
// There are no update or delete operations; the log is an audit trail.
type ProactiveActionRepository struct {
	db *DB
}

// NewProactiveActionRepository creates a new proactive action repository
func NewProactiveActionRepository(db *DB) *ProactiveActionRepository {
	return &ProactiveActionRepository{db: db}
}

// Insert appends one action record. Deduplication is the caller's
// responsibility.
func (r *ProactiveActionRepository) Insert(ctx context.Context, action *models.ProactiveAction) error {
	query := `
		INSERT INTO proactive_actions (id, user_id, task_id, trigger_type, action_taken, was_auto_executed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		action.ID,
		action.UserID,
		action.TaskID,
		action.TriggerType,
		action.ActionTaken,
		action.WasAutoExecuted,
		time.Now(),
	).Scan(&action.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert proactive action: %w", err)
	}
	return nil
}

// Recent returns a user's action records created at or after since, newest
// first, optionally restricted to auto-executed ones, capped at limit.
func (r *ProactiveActionRepository) Recent(ctx context.Context, userID uuid.UUID, since time.Time, onlyAutoExecuted bool, limit int) ([]*models.ProactiveAction, error) {
	query := `
		SELECT id, user_id, task_id, trigger_type, action_taken, was_auto_executed, created_at
		FROM proactive_actions
		WHERE user_id = $1 AND created_at >= $2
	`
	args := []any{userID, since}
	if onlyAutoExecuted {
		query += " AND was_auto_executed = true"
	}
	query += " ORDER BY created_at DESC LIMIT $3"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query proactive actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.ProactiveAction
	for rows.Next() {
		action := &models.ProactiveAction{}
		err := rows.Scan(
			&action.ID,
			&action.UserID,
			&action.TaskID,
			&action.TriggerType,
			&action.ActionTaken,
			&action.WasAutoExecuted,
			&action.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proactive action: %w", err)
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proactive actions: %w", err)
	}
	return actions, nil
}
