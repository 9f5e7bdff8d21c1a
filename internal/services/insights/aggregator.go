package insights

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/models"
	"go.uber.org/zap"
)

const (
	// MaxInsights caps the feed length
	MaxInsights = 5
	// maxPendingCandidates caps the pending-input task source
	maxPendingCandidates = 5
	// maxActionCandidates caps the recent autonomous action source
	maxActionCandidates = 3
	// maxInProgressCandidates caps the in-progress task source
	maxInProgressCandidates = 2
	// actionWindowDays is the lookback for autonomous actions
	actionWindowDays = 7
	// leaseWindowDays is how far ahead lease-expiry candidates reach
	leaseWindowDays = 90
	// leaseWarnDays is the cutoff below which an expiring lease escalates
	// from info to warning
	leaseWarnDays = 30
)

// TaskSource provides task candidates. Satisfied by the agent task
// repository.
type TaskSource interface {
	ListByStatus(ctx context.Context, userID uuid.UUID, status models.TaskStatus, limit int) ([]*models.AgentTask, error)
}

// ActionSource provides recent autonomous actions. Satisfied by the
// proactive recorder.
type ActionSource interface {
	Recent(ctx context.Context, userID uuid.UUID, withinDays int, onlyAutoExecuted bool, limit int) ([]*models.ProactiveAction, error)
}

// RiskSource provides portfolio risk conditions. Satisfied by the tenancy
// repository.
type RiskSource interface {
	ArrearsSummary(ctx context.Context, userID uuid.UUID) (*models.ArrearsSummary, error)
	ExpiringLeases(ctx context.Context, userID uuid.UUID, withinDays int) ([]*models.ExpiringLease, error)
}

// Aggregator builds the prioritized insight feed from heterogeneous
// sources. The feed is advisory and non-critical: a failing source degrades
// the feed to empty rather than failing the request.
type Aggregator struct {
	tasks   TaskSource
	actions ActionSource
	risks   RiskSource
	logger  *zap.Logger
}

// NewAggregator creates a new insight aggregator
func NewAggregator(tasks TaskSource, actions ActionSource, risks RiskSource, logger *zap.Logger) *Aggregator {
	return &Aggregator{tasks: tasks, actions: actions, risks: risks, logger: logger}
}

// BuildFeed collects candidates from the four sources, assigns priority
// classes, stable-sorts by class only (ties keep source-collection order),
// and truncates to MaxInsights. The four source queries are read-only and
// independent, so they run concurrently.
func (a *Aggregator) BuildFeed(ctx context.Context, userID uuid.UUID) *models.Feed {
	var (
		wg         sync.WaitGroup
		pending    []*models.AgentTask
		actions    []*models.ProactiveAction
		arrears    *models.ArrearsSummary
		leases     []*models.ExpiringLease
		inProgress []*models.AgentTask
	)
	errs := make([]error, 4)

	wg.Add(4)
	go func() {
		defer wg.Done()
		pending, errs[0] = a.tasks.ListByStatus(ctx, userID, models.TaskStatusPendingInput, maxPendingCandidates)
	}()
	go func() {
		defer wg.Done()
		actions, errs[1] = a.actions.Recent(ctx, userID, actionWindowDays, true, maxActionCandidates)
	}()
	go func() {
		defer wg.Done()
		arrears, errs[2] = a.risks.ArrearsSummary(ctx, userID)
		if errs[2] != nil {
			return
		}
		leases, errs[2] = a.risks.ExpiringLeases(ctx, userID, leaseWindowDays)
	}()
	go func() {
		defer wg.Done()
		inProgress, errs[3] = a.tasks.ListByStatus(ctx, userID, models.TaskStatusInProgress, maxInProgressCandidates)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			a.logger.Warn("insight_source_failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			return &models.Feed{Insights: []models.Insight{}, Degraded: true}
		}
	}

	// Candidate collection order is part of the contract: within a priority
	// class the stable sort preserves it.
	candidates := make([]models.Insight, 0, maxPendingCandidates+maxActionCandidates+maxInProgressCandidates+len(leases)+1)
	candidates = append(candidates, pendingTaskInsights(pending)...)
	candidates = append(candidates, actionInsights(actions)...)
	candidates = append(candidates, arrearsInsight(arrears)...)
	candidates = append(candidates, leaseInsights(leases)...)
	candidates = append(candidates, inProgressInsights(inProgress)...)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Type.PriorityClass() < candidates[j].Type.PriorityClass()
	})

	if len(candidates) > MaxInsights {
		candidates = candidates[:MaxInsights]
	}
	return &models.Feed{Insights: candidates}
}

func pendingTaskInsights(tasks []*models.AgentTask) []models.Insight {
	out := make([]models.Insight, 0, len(tasks))
	for _, task := range tasks {
		task := task
		insightType := models.InsightActionNeeded
		if task.Priority == models.PriorityUrgent {
			insightType = models.InsightWarning
		}
		description := task.Description
		if task.Recommendation != nil {
			description = *task.Recommendation
		}
		out = append(out, models.Insight{
			ID:          fmt.Sprintf("task-%s", task.ID),
			Title:       task.Title,
			Description: description,
			Type:        insightType,
			LinkTarget:  task.LinkTarget,
			TaskID:      &task.ID,
		})
	}
	return out
}

func actionInsights(actions []*models.ProactiveAction) []models.Insight {
	out := make([]models.Insight, 0, len(actions))
	for _, action := range actions {
		out = append(out, models.Insight{
			ID:          fmt.Sprintf("action-%s", action.ID),
			Title:       "Handled for you",
			Description: action.ActionTaken,
			Type:        models.InsightSuccess,
			TaskID:      action.TaskID,
		})
	}
	return out
}

func arrearsInsight(summary *models.ArrearsSummary) []models.Insight {
	if summary == nil || summary.OpenCount == 0 {
		return nil
	}
	noun := "tenancies"
	if summary.OpenCount == 1 {
		noun = "tenancy"
	}
	link := "/payments/arrears"
	return []models.Insight{{
		ID:    "arrears-summary",
		Title: "Rent arrears need attention",
		Description: fmt.Sprintf("%d %s in arrears, $%.2f overdue in total",
			summary.OpenCount, noun, float64(summary.TotalOverdueCents)/100),
		Type:       models.InsightWarning,
		LinkTarget: &link,
	}}
}

func leaseInsights(leases []*models.ExpiringLease) []models.Insight {
	out := make([]models.Insight, 0, len(leases))
	for _, lease := range leases {
		insightType := models.InsightInfo
		if time.Until(lease.EndDate) <= leaseWarnDays*24*time.Hour {
			insightType = models.InsightWarning
		}
		link := fmt.Sprintf("/tenancies/%s", lease.TenancyID)
		out = append(out, models.Insight{
			ID:          fmt.Sprintf("lease-%s", lease.TenancyID),
			Title:       "Lease ending soon",
			Description: fmt.Sprintf("The lease at %s ends on %s", lease.PropertyAddress, lease.EndDate.Format("2 Jan 2006")),
			Type:        insightType,
			LinkTarget:  &link,
		})
	}
	return out
}

func inProgressInsights(tasks []*models.AgentTask) []models.Insight {
	out := make([]models.Insight, 0, len(tasks))
	for _, task := range tasks {
		task := task
		out = append(out, models.Insight{
			ID:          fmt.Sprintf("progress-%s", task.ID),
			Title:       "In progress: " + task.Title,
			Description: task.Description,
			Type:        models.InsightInfo,
			LinkTarget:  task.LinkTarget,
			TaskID:      &task.ID,
		})
	}
	return out
}
