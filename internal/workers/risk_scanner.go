package workers

import (
	"context"
	"fmt"

	"github.com/propeld/propeld/internal/models"
	"github.com/propeld/propeld/internal/queue"
	"go.uber.org/zap"
)

const (
	// riskScanLeaseWindowDays is how far ahead the scan looks for lease ends
	riskScanLeaseWindowDays = 30
)

// ProcessRiskScanJob sweeps one user's portfolio for risk conditions and
// raises agent tasks for what it finds. Scan jobs are scheduled at most once
// a day per user; a scan that finds an already-raised condition will raise a
// duplicate, so the scheduler owns that cadence.
func (r *AgentRunner) ProcessRiskScanJob(ctx context.Context, job *queue.Job) error {
	raised := 0

	summary, err := r.tenancyRepo.ArrearsSummary(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to load arrears summary: %w", err)
	}
	if summary.OpenCount > 0 {
		task := &models.AgentTask{
			UserID:   job.UserID,
			Title:    "Follow up on overdue rent",
			Category: models.CategoryRentCollection,
			Priority: models.PriorityHigh,
			Description: fmt.Sprintf("%d tenancies are in arrears with $%.2f overdue in total",
				summary.OpenCount, float64(summary.TotalOverdueCents)/100),
		}
		if summary.OpenCount == 1 {
			task.Description = fmt.Sprintf("1 tenancy is in arrears with $%.2f overdue",
				float64(summary.TotalOverdueCents)/100)
		}
		link := "/payments/arrears"
		task.LinkTarget = &link
		if err := r.lifecycle.Create(ctx, task); err != nil {
			return fmt.Errorf("failed to raise arrears task: %w", err)
		}
		raised++

		autoExecuted := task.Status == models.TaskStatusScheduled
		if _, err := r.recorder.Record(ctx, job.UserID, models.TriggerArrearsDetected,
			"Raised a rent arrears follow-up task", &task.ID, autoExecuted); err != nil {
			r.logger.Warn("failed_to_record_proactive_action",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
		}
	}

	leases, err := r.tenancyRepo.ExpiringLeases(ctx, job.UserID, riskScanLeaseWindowDays)
	if err != nil {
		return fmt.Errorf("failed to load expiring leases: %w", err)
	}
	for _, lease := range leases {
		task := &models.AgentTask{
			UserID:   job.UserID,
			Title:    fmt.Sprintf("Prepare lease renewal for %s", lease.PropertyAddress),
			Category: models.CategoryLeaseManagement,
			Priority: models.PriorityNormal,
			Description: fmt.Sprintf("The lease at %s ends on %s",
				lease.PropertyAddress, lease.EndDate.Format("2 Jan 2006")),
		}
		link := fmt.Sprintf("/tenancies/%s", lease.TenancyID)
		task.LinkTarget = &link
		if err := r.lifecycle.Create(ctx, task); err != nil {
			return fmt.Errorf("failed to raise lease renewal task: %w", err)
		}
		raised++

		autoExecuted := task.Status == models.TaskStatusScheduled
		if _, err := r.recorder.Record(ctx, job.UserID, models.TriggerLeaseExpiring,
			fmt.Sprintf("Raised a lease renewal task for %s", lease.PropertyAddress), &task.ID, autoExecuted); err != nil {
			r.logger.Warn("failed_to_record_proactive_action",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
		}
	}

	r.logger.Info("risk_scan_completed",
		zap.String("user_id", job.UserID.String()),
		zap.Int("tasks_raised", raised),
	)
	return nil
}
