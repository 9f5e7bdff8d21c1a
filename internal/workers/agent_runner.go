package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/propeld/propeld/internal/database"
	"github.com/propeld/propeld/internal/models"
	"github.com/propeld/propeld/internal/queue"
	"github.com/propeld/propeld/internal/services/agent"
	"github.com/propeld/propeld/internal/services/autonomy"
	"github.com/propeld/propeld/internal/services/proactive"
	"github.com/propeld/propeld/internal/validation"
	"go.uber.org/zap"
)

// AgentRunner drives agent task execution jobs. It is the in-repo stand-in
// for the external execution capability: it never decides what a step
// contains (that arrives on the job), it only executes steps the autonomy
// configuration and the task's pause flag allow, appends timeline progress,
// and records autonomous executions in the proactive action log.
type AgentRunner struct {
	taskRepo    database.AgentTaskRepositoryInterface
	tenancyRepo database.TenancyRepositoryInterface
	resolver    *autonomy.Service
	lifecycle   *agent.Lifecycle
	recorder    *proactive.Recorder
	jobQueue    queue.JobQueue
	logger      *zap.Logger
}

// NewAgentRunner creates a new agent runner
func NewAgentRunner(
	taskRepo database.AgentTaskRepositoryInterface,
	tenancyRepo database.TenancyRepositoryInterface,
	resolver *autonomy.Service,
	lifecycle *agent.Lifecycle,
	recorder *proactive.Recorder,
	jobQueue queue.JobQueue,
	logger *zap.Logger,
) *AgentRunner {
	return &AgentRunner{
		taskRepo:    taskRepo,
		tenancyRepo: tenancyRepo,
		resolver:    resolver,
		lifecycle:   lifecycle,
		recorder:    recorder,
		jobQueue:    jobQueue,
		logger:      logger,
	}
}

// ProcessJob dispatches a message to the matching handler and acknowledges
// it. Jobs that fail before exhausting their retries are re-enqueued.
func (r *AgentRunner) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.IsExpired() {
		r.logger.Warn("job_expired",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
		)
		return msg.Ack()
	}
	if !job.ShouldProcess() {
		// Not yet due: push it back for redelivery
		return msg.Nack(true)
	}

	var err error
	switch job.Type {
	case queue.JobTypeAgentStep:
		err = r.ProcessAgentStepJob(ctx, job)
	case queue.JobTypeRiskScan:
		err = r.ProcessRiskScanJob(ctx, job)
	default:
		r.logger.Error("unknown_job_type", zap.String("job_type", string(job.Type)))
		return msg.Ack()
	}

	if err != nil {
		if job.CanRetry() {
			job.IncrementRetry()
			if enqueueErr := r.jobQueue.Enqueue(ctx, job); enqueueErr != nil {
				r.logger.Error("failed_to_reenqueue_job",
					zap.String("job_id", job.ID.String()),
					zap.Error(enqueueErr),
				)
				return msg.Nack(true)
			}
		} else {
			r.logger.Error("job_retries_exhausted",
				zap.String("job_id", job.ID.String()),
				zap.String("job_type", string(job.Type)),
				zap.Error(err),
			)
		}
	}
	return msg.Ack()
}

// ProcessAgentStepJob executes one step of an agent task. The step content
// travels on the job metadata ("action", optional "reasoning", optional
// "final"); the runner only gates and records it.
func (r *AgentRunner) ProcessAgentStepJob(ctx context.Context, job *queue.Job) error {
	if job.TaskID == nil {
		return fmt.Errorf("task_id is required for agent step job")
	}

	task, err := r.taskRepo.GetByID(ctx, *job.TaskID)
	if err != nil {
		return fmt.Errorf("failed to get agent task: %w", err)
	}
	if task.UserID != job.UserID {
		return fmt.Errorf("agent task does not belong to user")
	}
	if task.Terminal() {
		return nil
	}

	// The pause flag is authoritative: a task under manual control gets no
	// autonomous work, the job is simply dropped. Resume enqueues a fresh one.
	if task.ManualOverride {
		r.logger.Info("agent_step_skipped_manual_override",
			zap.String("task_id", task.ID.String()),
		)
		return nil
	}

	level, err := r.resolver.EffectiveLevelFor(ctx, task.UserID, task.Category)
	if err != nil {
		return fmt.Errorf("failed to resolve autonomy level: %w", err)
	}

	// A scheduled task whose category no longer allows auto-execution is
	// parked at the checkpoint instead of executed. Tasks already approved
	// (in_progress) keep running: the human decision has been made.
	if task.Status == models.TaskStatusScheduled && !level.AllowsAutoExecution() {
		if _, err := r.taskRepo.TransitionStatus(ctx, task.ID, models.TaskStatusScheduled, models.TaskStatusPendingInput); err != nil {
			return fmt.Errorf("failed to park task at checkpoint: %w", err)
		}
		r.logger.Info("agent_task_parked_for_approval",
			zap.String("task_id", task.ID.String()),
			zap.String("category", string(task.Category)),
			zap.String("level", string(level)),
		)
		return nil
	}

	autoExecuted := task.Status == models.TaskStatusScheduled
	if autoExecuted {
		if _, err := r.taskRepo.TransitionStatus(ctx, task.ID, models.TaskStatusScheduled, models.TaskStatusInProgress); err != nil {
			return fmt.Errorf("failed to start task: %w", err)
		}
	}

	// Step content comes from the execution engine over the wire; sanitize
	// before it lands in the timeline.
	action := "Completed scheduled step"
	if v, ok := job.Metadata["action"].(string); ok && v != "" {
		action = validation.SanitizeText(v)
	}
	entry := models.TimelineEntry{Timestamp: time.Now(), Action: action}
	if v, ok := job.Metadata["reasoning"].(string); ok && v != "" {
		reasoning := validation.SanitizeText(v)
		entry.Reasoning = &reasoning
	}

	final, _ := job.Metadata["final"].(bool)
	if final {
		if _, err := r.taskRepo.Resolve(ctx, task.ID, models.TaskStatusInProgress, entry); err != nil {
			return fmt.Errorf("failed to complete task: %w", err)
		}
	} else {
		if err := r.taskRepo.AppendTimelineEntry(ctx, task.ID, entry, true); err != nil {
			return fmt.Errorf("failed to append timeline entry: %w", err)
		}
	}

	// Steps run without an owner decision land in the audit log; approved
	// work does not, the approval itself was the checkpoint.
	if autoExecuted {
		trigger := models.TriggerRoutineStep
		if v, ok := job.Metadata["trigger"].(string); ok && v != "" {
			trigger = models.TriggerType(v)
		}
		if _, err := r.recorder.Record(ctx, task.UserID, trigger, action, &task.ID, true); err != nil {
			r.logger.Warn("failed_to_record_proactive_action",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
		}
	}

	r.logger.Info("agent_step_executed",
		zap.String("task_id", task.ID.String()),
		zap.Bool("auto_executed", autoExecuted),
		zap.Bool("final", final),
	)
	return nil
}
