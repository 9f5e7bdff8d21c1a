package insights

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/models"
	"go.uber.org/zap"
)

// mockSources backs all four feed sources with fixed data
type mockSources struct {
	pending    []*models.AgentTask
	inProgress []*models.AgentTask
	actions    []*models.ProactiveAction
	arrears    *models.ArrearsSummary
	leases     []*models.ExpiringLease

	tasksErr   error
	actionsErr error
	risksErr   error
}

func (m *mockSources) ListByStatus(_ context.Context, _ uuid.UUID, status models.TaskStatus, limit int) ([]*models.AgentTask, error) {
	if m.tasksErr != nil {
		return nil, m.tasksErr
	}
	var source []*models.AgentTask
	switch status {
	case models.TaskStatusPendingInput:
		source = m.pending
	case models.TaskStatusInProgress:
		source = m.inProgress
	}
	// Mirror the repository: pending tasks come back priority-ordered
	out := make([]*models.AgentTask, len(source))
	copy(out, source)
	if status == models.TaskStatusPendingInput {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Priority.Ordinal() < out[j].Priority.Ordinal()
		})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockSources) Recent(_ context.Context, _ uuid.UUID, _ int, _ bool, limit int) ([]*models.ProactiveAction, error) {
	if m.actionsErr != nil {
		return nil, m.actionsErr
	}
	out := m.actions
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockSources) ArrearsSummary(context.Context, uuid.UUID) (*models.ArrearsSummary, error) {
	if m.risksErr != nil {
		return nil, m.risksErr
	}
	if m.arrears == nil {
		return &models.ArrearsSummary{}, nil
	}
	return m.arrears, nil
}

func (m *mockSources) ExpiringLeases(context.Context, uuid.UUID, int) ([]*models.ExpiringLease, error) {
	if m.risksErr != nil {
		return nil, m.risksErr
	}
	return m.leases, nil
}

func newAggregator(src *mockSources) *Aggregator {
	return NewAggregator(src, src, src, zap.NewNop())
}

func pendingTask(priority models.TaskPriority, title string) *models.AgentTask {
	return &models.AgentTask{
		ID:       uuid.New(),
		Title:    title,
		Priority: priority,
		Status:   models.TaskStatusPendingInput,
	}
}

func TestBuildFeed_CapsAtMaxInsights(t *testing.T) {
	t.Parallel()

	src := &mockSources{
		pending: []*models.AgentTask{
			pendingTask(models.PriorityNormal, "Approve maintenance quote"),
			pendingTask(models.PriorityNormal, "Approve rent increase notice"),
			pendingTask(models.PriorityNormal, "Approve listing refresh"),
		},
		actions: []*models.ProactiveAction{
			{ID: uuid.New(), ActionTaken: "Sent rent reminder", WasAutoExecuted: true},
			{ID: uuid.New(), ActionTaken: "Renewed listing", WasAutoExecuted: true},
		},
		arrears: &models.ArrearsSummary{OpenCount: 2, TotalOverdueCents: 184050},
		leases: []*models.ExpiringLease{
			{TenancyID: uuid.New(), PropertyAddress: "12 Harbour St", EndDate: time.Now().AddDate(0, 0, 80)},
		},
		inProgress: []*models.AgentTask{
			{ID: uuid.New(), Title: "Finding tenant for 4 Elm Ave", Status: models.TaskStatusInProgress},
		},
	}

	feed := newAggregator(src).BuildFeed(context.Background(), uuid.New())
	if feed.Degraded {
		t.Fatal("Expected non-degraded feed")
	}
	if len(feed.Insights) != MaxInsights {
		t.Fatalf("Expected feed capped at %d, got %d", MaxInsights, len(feed.Insights))
	}
}

func TestBuildFeed_PriorityClassOrdering(t *testing.T) {
	t.Parallel()

	src := &mockSources{
		pending: []*models.AgentTask{
			pendingTask(models.PriorityNormal, "Approve maintenance quote"),
		},
		actions: []*models.ProactiveAction{
			{ID: uuid.New(), ActionTaken: "Sent rent reminder", WasAutoExecuted: true},
		},
		arrears: &models.ArrearsSummary{OpenCount: 1, TotalOverdueCents: 52000},
		inProgress: []*models.AgentTask{
			{ID: uuid.New(), Title: "Finding tenant", Status: models.TaskStatusInProgress},
		},
	}

	feed := newAggregator(src).BuildFeed(context.Background(), uuid.New())

	// No success insight may precede an action_needed one
	lastClass := -1
	for _, insight := range feed.Insights {
		class := insight.Type.PriorityClass()
		if class < lastClass {
			t.Fatalf("Insight %s (class %d) out of order after class %d", insight.ID, class, lastClass)
		}
		lastClass = class
	}

	if feed.Insights[0].Type != models.InsightActionNeeded {
		t.Errorf("Expected action_needed first, got %s", feed.Insights[0].Type)
	}
	if feed.Insights[len(feed.Insights)-1].Type != models.InsightSuccess {
		t.Errorf("Expected success last, got %s", feed.Insights[len(feed.Insights)-1].Type)
	}
}

func TestBuildFeed_PendingTaskSelectionByPriority(t *testing.T) {
	t.Parallel()

	// 6 pending tasks; only the 5 with the lowest priority ordinal survive
	// the source cap, so both urgent tasks stay and the low one drops.
	src := &mockSources{
		pending: []*models.AgentTask{
			pendingTask(models.PriorityLow, "low"),
			pendingTask(models.PriorityUrgent, "urgent-1"),
			pendingTask(models.PriorityNormal, "normal-1"),
			pendingTask(models.PriorityHigh, "high"),
			pendingTask(models.PriorityNormal, "normal-2"),
			pendingTask(models.PriorityUrgent, "urgent-2"),
		},
	}

	feed := newAggregator(src).BuildFeed(context.Background(), uuid.New())
	if len(feed.Insights) != 5 {
		t.Fatalf("Expected 5 insights, got %d", len(feed.Insights))
	}

	urgent := 0
	for _, insight := range feed.Insights {
		if insight.Title == "low" {
			t.Error("Expected the low-priority task to be dropped at the source")
		}
		// Urgent pending tasks map to warning, the rest to action_needed
		if insight.Title == "urgent-1" || insight.Title == "urgent-2" {
			urgent++
			if insight.Type != models.InsightWarning {
				t.Errorf("Expected urgent task as warning, got %s", insight.Type)
			}
		} else if insight.Type != models.InsightActionNeeded {
			t.Errorf("Expected non-urgent task as action_needed, got %s", insight.Type)
		}
	}
	if urgent != 2 {
		t.Errorf("Expected both urgent tasks in the feed, got %d", urgent)
	}

	// action_needed (class 0) sorts before warning (class 1), and within a
	// class the source order (priority ascending) is preserved.
	var titles []string
	for _, insight := range feed.Insights {
		titles = append(titles, insight.Title)
	}
	want := []string{"high", "normal-1", "normal-2", "urgent-1", "urgent-2"}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, titles)
		}
	}
}

func TestBuildFeed_LeaseExpiryEscalation(t *testing.T) {
	t.Parallel()

	src := &mockSources{
		leases: []*models.ExpiringLease{
			{TenancyID: uuid.New(), PropertyAddress: "8 King St", EndDate: time.Now().AddDate(0, 0, 14)},
			{TenancyID: uuid.New(), PropertyAddress: "3 Queen St", EndDate: time.Now().AddDate(0, 0, 75)},
		},
	}

	feed := newAggregator(src).BuildFeed(context.Background(), uuid.New())
	if len(feed.Insights) != 2 {
		t.Fatalf("Expected 2 insights, got %d", len(feed.Insights))
	}

	byClass := map[models.InsightType]int{}
	for _, insight := range feed.Insights {
		byClass[insight.Type]++
	}
	if byClass[models.InsightWarning] != 1 || byClass[models.InsightInfo] != 1 {
		t.Errorf("Expected one warning (≤30 days) and one info lease insight, got %v", byClass)
	}
}

func TestBuildFeed_NoArrearsMeansNoSummary(t *testing.T) {
	t.Parallel()

	src := &mockSources{arrears: &models.ArrearsSummary{OpenCount: 0}}
	feed := newAggregator(src).BuildFeed(context.Background(), uuid.New())
	for _, insight := range feed.Insights {
		if insight.ID == "arrears-summary" {
			t.Error("Expected no arrears insight when nothing is overdue")
		}
	}
}

func TestBuildFeed_SourceFailureDegradesToEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  *mockSources
	}{
		{name: "task source fails", src: &mockSources{tasksErr: errors.New("store down")}},
		{name: "action source fails", src: &mockSources{actionsErr: errors.New("store down")}},
		{name: "risk source fails", src: &mockSources{risksErr: errors.New("store down")}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			feed := newAggregator(tt.src).BuildFeed(context.Background(), uuid.New())
			if !feed.Degraded {
				t.Error("Expected degraded feed on source failure")
			}
			if len(feed.Insights) != 0 {
				t.Errorf("Expected empty feed, got %d insights", len(feed.Insights))
			}
		})
	}
}

func TestBuildFeed_SynthesizedIDs(t *testing.T) {
	t.Parallel()

	taskID := uuid.New()
	src := &mockSources{
		pending: []*models.AgentTask{{ID: taskID, Title: "Approve quote", Priority: models.PriorityNormal}},
	}

	feed := newAggregator(src).BuildFeed(context.Background(), uuid.New())
	if len(feed.Insights) != 1 {
		t.Fatalf("Expected 1 insight, got %d", len(feed.Insights))
	}
	if feed.Insights[0].ID != "task-"+taskID.String() {
		t.Errorf("Expected synthesized id task-%s, got %s", taskID, feed.Insights[0].ID)
	}
	if feed.Insights[0].TaskID == nil || *feed.Insights[0].TaskID != taskID {
		t.Error("Expected task id carried on the insight")
	}
}
