package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/models"
)

// AgentTaskRepository handles agent task database operations. State
// transitions are single conditional UPDATEs so that a stale caller fails
// loudly (zero rows affected) instead of clobbering another actor's write.
type AgentTaskRepository struct {
	db *DB
}

// NewAgentTaskRepository creates a new agent task repository
func NewAgentTaskRepository(db *DB) *AgentTaskRepository {
	return &AgentTaskRepository{db: db}
}

const agentTaskColumns = `id, user_id, title, description, category, priority, status, manual_override, timeline, current_step, recommendation, link_target, created_at, updated_at`

func scanAgentTask(scan func(dest ...any) error) (*models.AgentTask, error) {
	task := &models.AgentTask{}
	var timelineJSON []byte
	var recommendation, linkTarget sql.NullString

	err := scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Category,
		&task.Priority,
		&task.Status,
		&task.ManualOverride,
		&timelineJSON,
		&task.CurrentStep,
		&recommendation,
		&linkTarget,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(timelineJSON, &task.Timeline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timeline: %w", err)
	}
	if recommendation.Valid {
		task.Recommendation = &recommendation.String
	}
	if linkTarget.Valid {
		task.LinkTarget = &linkTarget.String
	}
	return task, nil
}

// Create inserts a new agent task
func (r *AgentTaskRepository) Create(ctx context.Context, task *models.AgentTask) error {
	timelineJSON, err := json.Marshal(task.Timeline)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}
	if task.Timeline == nil {
		timelineJSON = []byte("[]")
	}

	query := `
		INSERT INTO agent_tasks (id, user_id, title, description, category, priority, status, manual_override, timeline, current_step, recommendation, link_target, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING created_at, updated_at
	`

	now := time.Now()
	err = r.db.QueryRowContext(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Category,
		task.Priority,
		task.Status,
		task.ManualOverride,
		timelineJSON,
		task.CurrentStep,
		task.Recommendation,
		task.LinkTarget,
		now,
	).Scan(&task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create agent task: %w", err)
	}
	return nil
}

// GetByID retrieves an agent task by ID
func (r *AgentTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AgentTask, error) {
	query := `SELECT ` + agentTaskColumns + ` FROM agent_tasks WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	task, err := scanAgentTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent task not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent task: %w", err)
	}
	return task, nil
}

// GetByUserIDPaginated retrieves a user's tasks, optionally filtered by
// status and category, newest first.
func (r *AgentTaskRepository) GetByUserIDPaginated(ctx context.Context, userID uuid.UUID, status *models.TaskStatus, category *models.TaskCategory, page, pageSize int) ([]*models.AgentTask, int, error) {
	where := "WHERE user_id = $1"
	args := []any{userID}
	argIndex := 2

	if status != nil {
		where += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, string(*status))
		argIndex++
	}
	if category != nil {
		where += fmt.Sprintf(" AND category = $%d", argIndex)
		args = append(args, string(*category))
		argIndex++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM agent_tasks " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count agent tasks: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM agent_tasks %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d",
		agentTaskColumns, where, argIndex, argIndex+1,
	)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query agent tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.AgentTask
	for rows.Next() {
		task, err := scanAgentTask(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan agent task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating agent tasks: %w", err)
	}

	return tasks, total, nil
}

// ListByStatus retrieves up to limit of a user's tasks in the given status.
// pending_input tasks are ordered by priority (urgent first) then age;
// everything else is ordered newest first.
func (r *AgentTaskRepository) ListByStatus(ctx context.Context, userID uuid.UUID, status models.TaskStatus, limit int) ([]*models.AgentTask, error) {
	order := "updated_at DESC"
	if status == models.TaskStatusPendingInput {
		order = `
			CASE priority
				WHEN 'urgent' THEN 0
				WHEN 'high' THEN 1
				WHEN 'normal' THEN 2
				ELSE 3
			END ASC, created_at ASC`
	}

	query := fmt.Sprintf(
		"SELECT %s FROM agent_tasks WHERE user_id = $1 AND status = $2 ORDER BY %s LIMIT $3",
		agentTaskColumns, order,
	)

	rows, err := r.db.QueryContext(ctx, query, userID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent tasks by status: %w", err)
	}
	defer rows.Close()

	var tasks []*models.AgentTask
	for rows.Next() {
		task, err := scanAgentTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agent tasks: %w", err)
	}
	return tasks, nil
}

// TransitionStatus moves a task from one status to another only if it is
// currently in the expected status. Returns false when zero rows matched
// (task missing or not in the expected status).
func (r *AgentTaskRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.TaskStatus) (bool, error) {
	query := `
		UPDATE agent_tasks
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to transition agent task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// Resolve terminates a task from the expected status, appending a final
// timeline entry and marking all steps completed, in one statement.
func (r *AgentTaskRepository) Resolve(ctx context.Context, id uuid.UUID, from models.TaskStatus, entry models.TimelineEntry) (bool, error) {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("failed to marshal timeline entry: %w", err)
	}

	query := `
		UPDATE agent_tasks
		SET status = $3,
			timeline = timeline || $4::jsonb,
			current_step = jsonb_array_length(timeline) + 1,
			updated_at = $5
		WHERE id = $1 AND status = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, from, models.TaskStatusCompleted, entryJSON, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to resolve agent task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetManualOverride flips the pause flag only when it currently holds the
// opposite value. Enabling additionally requires an executing status so a
// terminal or checkpointed task cannot be paused. Concurrent pause/resume on
// the same task is last-writer-wins; the conditional guard only prevents
// no-op double-writes, not interleaving.
func (r *AgentTaskRepository) SetManualOverride(ctx context.Context, id uuid.UUID, paused bool) (bool, error) {
	query := `
		UPDATE agent_tasks
		SET manual_override = $2, updated_at = $3
		WHERE id = $1 AND manual_override = NOT $2
	`
	if paused {
		query += ` AND status IN ('in_progress', 'scheduled')`
	}

	result, err := r.db.ExecContext(ctx, query, id, paused, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to set manual override: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// AppendTimelineEntry appends one step to the timeline and optionally
// advances the cursor past the step that just ran.
func (r *AgentTaskRepository) AppendTimelineEntry(ctx context.Context, id uuid.UUID, entry models.TimelineEntry, advanceCursor bool) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline entry: %w", err)
	}

	advance := 0
	if advanceCursor {
		advance = 1
	}

	query := `
		UPDATE agent_tasks
		SET timeline = timeline || $2::jsonb,
			current_step = current_step + $3,
			updated_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, entryJSON, advance, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append timeline entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("agent task not found")
	}
	return nil
}
