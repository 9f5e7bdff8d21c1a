package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/database"
	"github.com/propeld/propeld/internal/models"
	"github.com/propeld/propeld/internal/queue"
	"github.com/propeld/propeld/internal/services/autonomy"
	"go.uber.org/zap"
)

var (
	// ErrTaskNotFound is returned when no task with the given id exists
	ErrTaskNotFound = errors.New("agent task not found")
	// ErrNotTaskOwner is returned when a caller acts on another user's task
	ErrNotTaskOwner = errors.New("agent task does not belong to user")
	// ErrInvalidTransition is returned for an owner action that is illegal
	// in the task's current status. It is a caller error: nothing is
	// mutated and the operation is not retried.
	ErrInvalidTransition = errors.New("illegal task transition")
	// ErrAlreadyPaused is returned when TakeControl hits a task already
	// under manual control
	ErrAlreadyPaused = errors.New("task is already under manual control")
	// ErrNotPaused is returned when Resume hits a task that is not paused
	ErrNotPaused = errors.New("task is not under manual control")
)

// StepEnqueuer enqueues execution jobs for the external execution engine.
// Satisfied by queue.JobQueue.
type StepEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// Lifecycle owns the agent task state machine. It validates and applies the
// only legal owner transitions; agent-side progress (timeline appends,
// scheduled/in_progress/completed moves) belongs to the execution engine.
//
// Concurrent owner actions on the same task are not serialized here: each
// transition is one conditional row update, so interleaved TakeControl and
// Resume resolve last-writer-wins rather than corrupting state.
type Lifecycle struct {
	taskRepo database.AgentTaskRepositoryInterface
	resolver *autonomy.Service
	jobs     StepEnqueuer
	logger   *zap.Logger
}

// NewLifecycle creates a new task lifecycle service. jobs may be nil in
// read-only contexts; approval then skips the execution enqueue.
func NewLifecycle(taskRepo database.AgentTaskRepositoryInterface, resolver *autonomy.Service, jobs StepEnqueuer, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		taskRepo: taskRepo,
		resolver: resolver,
		jobs:     jobs,
		logger:   logger,
	}
}

// Create persists a new agent-proposed task. The initial status comes from
// the resolved autonomy level for the task's category: a category the agent
// may auto-execute starts scheduled, anything lower starts at the
// pending_input checkpoint.
func (l *Lifecycle) Create(ctx context.Context, task *models.AgentTask) error {
	if !models.ValidTaskCategory(task.Category) {
		return autonomy.ErrInvalidCategory
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	level, err := l.resolver.EffectiveLevelFor(ctx, task.UserID, task.Category)
	if err != nil {
		return fmt.Errorf("failed to resolve autonomy level: %w", err)
	}

	if level.AllowsAutoExecution() {
		task.Status = models.TaskStatusScheduled
	} else {
		task.Status = models.TaskStatusPendingInput
	}

	if err := l.taskRepo.Create(ctx, task); err != nil {
		return err
	}

	if task.Status == models.TaskStatusScheduled && l.jobs != nil {
		job := queue.NewJob(queue.JobTypeAgentStep, task.UserID, &task.ID)
		if err := l.jobs.Enqueue(ctx, job); err != nil {
			// The task row exists; a failed enqueue only delays execution
			l.logger.Warn("failed_to_enqueue_agent_step",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
		}
	}

	l.logger.Info("agent_task_created",
		zap.String("task_id", task.ID.String()),
		zap.String("user_id", task.UserID.String()),
		zap.String("category", string(task.Category)),
		zap.String("status", string(task.Status)),
	)
	return nil
}

// Get loads a task and enforces ownership.
func (l *Lifecycle) Get(ctx context.Context, userID, taskID uuid.UUID) (*models.AgentTask, error) {
	task, err := l.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, ErrTaskNotFound
	}
	if task.UserID != userID {
		return nil, ErrNotTaskOwner
	}
	return task, nil
}

// List returns the user's tasks, optionally filtered, newest first.
func (l *Lifecycle) List(ctx context.Context, userID uuid.UUID, status *models.TaskStatus, category *models.TaskCategory, page, pageSize int) ([]*models.AgentTask, int, error) {
	return l.taskRepo.GetByUserIDPaginated(ctx, userID, status, category, page, pageSize)
}

// Approve releases a task from the pending_input checkpoint into execution.
// The task id doubles as the identity of the pending action being approved;
// the conditional update means an approve racing a state change fails
// instead of approving something else.
func (l *Lifecycle) Approve(ctx context.Context, userID, taskID uuid.UUID) (*models.AgentTask, error) {
	task, err := l.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	ok, err := l.taskRepo.TransitionStatus(ctx, taskID, models.TaskStatusPendingInput, models.TaskStatusInProgress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: approve requires pending_input, task is %s", ErrInvalidTransition, task.Status)
	}

	if l.jobs != nil {
		job := queue.NewJob(queue.JobTypeAgentStep, userID, &taskID)
		if err := l.jobs.Enqueue(ctx, job); err != nil {
			l.logger.Warn("failed_to_enqueue_agent_step",
				zap.String("task_id", taskID.String()),
				zap.Error(err),
			)
		}
	}

	l.logger.Info("agent_task_approved",
		zap.String("task_id", taskID.String()),
		zap.String("user_id", userID.String()),
	)
	return l.taskRepo.GetByID(ctx, taskID)
}

// Reject declines a task at the pending_input checkpoint. The task resolves
// immediately: no further agent work occurs, and the rejection is recorded
// as the final timeline entry.
func (l *Lifecycle) Reject(ctx context.Context, userID, taskID uuid.UUID) (*models.AgentTask, error) {
	task, err := l.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	entry := models.TimelineEntry{
		Timestamp: time.Now(),
		Action:    "Rejected by owner",
	}
	ok, err := l.taskRepo.Resolve(ctx, taskID, models.TaskStatusPendingInput, entry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: reject requires pending_input, task is %s", ErrInvalidTransition, task.Status)
	}

	l.logger.Info("agent_task_rejected",
		zap.String("task_id", taskID.String()),
		zap.String("user_id", userID.String()),
	)
	return l.taskRepo.GetByID(ctx, taskID)
}

// TakeControl pauses autonomous execution on an executing task. Status is
// untouched; the manual_override flag is a side-band signal the execution
// engine must honor by ceasing work on the task.
func (l *Lifecycle) TakeControl(ctx context.Context, userID, taskID uuid.UUID) (*models.AgentTask, error) {
	task, err := l.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	ok, err := l.taskRepo.SetManualOverride(ctx, taskID, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		if task.ManualOverride {
			return nil, ErrAlreadyPaused
		}
		return nil, fmt.Errorf("%w: take control requires in_progress or scheduled, task is %s", ErrInvalidTransition, task.Status)
	}

	l.logger.Info("agent_task_paused",
		zap.String("task_id", taskID.String()),
		zap.String("user_id", userID.String()),
	)
	return l.taskRepo.GetByID(ctx, taskID)
}

// Resume returns a paused task to autonomous execution, continuing from
// wherever its status indicates.
func (l *Lifecycle) Resume(ctx context.Context, userID, taskID uuid.UUID) (*models.AgentTask, error) {
	if _, err := l.Get(ctx, userID, taskID); err != nil {
		return nil, err
	}

	ok, err := l.taskRepo.SetManualOverride(ctx, taskID, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotPaused
	}

	if l.jobs != nil {
		job := queue.NewJob(queue.JobTypeAgentStep, userID, &taskID)
		if err := l.jobs.Enqueue(ctx, job); err != nil {
			l.logger.Warn("failed_to_enqueue_agent_step",
				zap.String("task_id", taskID.String()),
				zap.Error(err),
			)
		}
	}

	l.logger.Info("agent_task_resumed",
		zap.String("task_id", taskID.String()),
		zap.String("user_id", userID.String()),
	)
	return l.taskRepo.GetByID(ctx, taskID)
}
