package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/models"
	"github.com/propeld/propeld/internal/queue"
	"github.com/propeld/propeld/internal/services/autonomy"
	"go.uber.org/zap"
)

// mockTaskRepo is an in-memory task repository mirroring the conditional
// update semantics of the real one
type mockTaskRepo struct {
	tasks map[uuid.UUID]*models.AgentTask
}

func newMockTaskRepo() *mockTaskRepo {
	return &mockTaskRepo{tasks: make(map[uuid.UUID]*models.AgentTask)}
}

func (m *mockTaskRepo) Create(_ context.Context, task *models.AgentTask) error {
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *mockTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*models.AgentTask, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, errors.New("agent task not found")
	}
	copied := *task
	return &copied, nil
}

func (m *mockTaskRepo) GetByUserIDPaginated(_ context.Context, userID uuid.UUID, status *models.TaskStatus, category *models.TaskCategory, page, pageSize int) ([]*models.AgentTask, int, error) {
	var out []*models.AgentTask
	for _, task := range m.tasks {
		if task.UserID != userID {
			continue
		}
		if status != nil && task.Status != *status {
			continue
		}
		if category != nil && task.Category != *category {
			continue
		}
		copied := *task
		out = append(out, &copied)
	}
	return out, len(out), nil
}

func (m *mockTaskRepo) ListByStatus(_ context.Context, userID uuid.UUID, status models.TaskStatus, limit int) ([]*models.AgentTask, error) {
	var out []*models.AgentTask
	for _, task := range m.tasks {
		if task.UserID == userID && task.Status == status && len(out) < limit {
			copied := *task
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockTaskRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to models.TaskStatus) (bool, error) {
	task, ok := m.tasks[id]
	if !ok || task.Status != from {
		return false, nil
	}
	task.Status = to
	task.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockTaskRepo) Resolve(_ context.Context, id uuid.UUID, from models.TaskStatus, entry models.TimelineEntry) (bool, error) {
	task, ok := m.tasks[id]
	if !ok || task.Status != from {
		return false, nil
	}
	task.Timeline = append(task.Timeline, entry)
	task.CurrentStep = len(task.Timeline)
	task.Status = models.TaskStatusCompleted
	return true, nil
}

func (m *mockTaskRepo) SetManualOverride(_ context.Context, id uuid.UUID, paused bool) (bool, error) {
	task, ok := m.tasks[id]
	if !ok || task.ManualOverride == paused {
		return false, nil
	}
	if paused && task.Status != models.TaskStatusInProgress && task.Status != models.TaskStatusScheduled {
		return false, nil
	}
	task.ManualOverride = paused
	return true, nil
}

func (m *mockTaskRepo) AppendTimelineEntry(_ context.Context, id uuid.UUID, entry models.TimelineEntry, advanceCursor bool) error {
	task, ok := m.tasks[id]
	if !ok {
		return errors.New("agent task not found")
	}
	task.Timeline = append(task.Timeline, entry)
	if advanceCursor {
		task.CurrentStep++
	}
	return nil
}

// mockSettingsRepo backs the autonomy resolver with fixed settings
type mockSettingsRepo struct {
	settings *models.AutonomySettings
}

func (m *mockSettingsRepo) GetByUserID(context.Context, uuid.UUID) (*models.AutonomySettings, error) {
	return m.settings, nil
}
func (m *mockSettingsRepo) SetPreset(context.Context, uuid.UUID, models.AutonomyPreset) error {
	return nil
}
func (m *mockSettingsRepo) MergeOverride(context.Context, uuid.UUID, models.TaskCategory, models.AutonomyLevel) error {
	return nil
}

// mockEnqueuer records enqueued jobs
type mockEnqueuer struct {
	jobs []*queue.Job
}

func (m *mockEnqueuer) Enqueue(_ context.Context, job *queue.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

func newLifecycle(repo *mockTaskRepo, settings *models.AutonomySettings) (*Lifecycle, *mockEnqueuer) {
	resolver := autonomy.NewService(&mockSettingsRepo{settings: settings}, zap.NewNop())
	enqueuer := &mockEnqueuer{}
	return NewLifecycle(repo, resolver, enqueuer, zap.NewNop()), enqueuer
}

func seedTask(repo *mockTaskRepo, userID uuid.UUID, status models.TaskStatus, paused bool) *models.AgentTask {
	task := &models.AgentTask{
		ID:             uuid.New(),
		UserID:         userID,
		Title:          "Chase overdue rent",
		Category:       models.CategoryRentCollection,
		Priority:       models.PriorityHigh,
		Status:         status,
		ManualOverride: paused,
	}
	repo.tasks[task.ID] = task
	return task
}

func TestCreate_CheckpointFromResolvedLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		settings   *models.AutonomySettings
		category   models.TaskCategory
		wantStatus models.TaskStatus
	}{
		{
			name:       "balanced maintenance auto-executes",
			settings:   nil,
			category:   models.CategoryMaintenance,
			wantStatus: models.TaskStatusScheduled,
		},
		{
			name:       "balanced rent collection needs checkpoint",
			settings:   nil,
			category:   models.CategoryRentCollection,
			wantStatus: models.TaskStatusPendingInput,
		},
		{
			name: "override can demote an autonomous category",
			settings: &models.AutonomySettings{
				Preset: models.PresetCustom,
				Overrides: map[models.TaskCategory]models.AutonomyLevel{
					models.CategoryMaintenance: models.LevelSuggest,
				},
			},
			category:   models.CategoryMaintenance,
			wantStatus: models.TaskStatusPendingInput,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newMockTaskRepo()
			lifecycle, enqueuer := newLifecycle(repo, tt.settings)

			task := &models.AgentTask{
				UserID:   uuid.New(),
				Title:    "Schedule gutter cleaning",
				Category: tt.category,
				Priority: models.PriorityNormal,
			}
			if err := lifecycle.Create(context.Background(), task); err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			if task.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, task.Status)
			}

			wantJobs := 0
			if tt.wantStatus == models.TaskStatusScheduled {
				wantJobs = 1
			}
			if len(enqueuer.jobs) != wantJobs {
				t.Errorf("Expected %d enqueued jobs, got %d", wantJobs, len(enqueuer.jobs))
			}
		})
	}
}

func TestApprove_LegalOnlyFromPendingInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     models.TaskStatus
		wantErr    error
		wantStatus models.TaskStatus
	}{
		{
			name:       "from pending_input",
			status:     models.TaskStatusPendingInput,
			wantStatus: models.TaskStatusInProgress,
		},
		{
			name:       "from in_progress is rejected",
			status:     models.TaskStatusInProgress,
			wantErr:    ErrInvalidTransition,
			wantStatus: models.TaskStatusInProgress,
		},
		{
			name:       "from completed is rejected",
			status:     models.TaskStatusCompleted,
			wantErr:    ErrInvalidTransition,
			wantStatus: models.TaskStatusCompleted,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newMockTaskRepo()
			lifecycle, enqueuer := newLifecycle(repo, nil)
			userID := uuid.New()
			task := seedTask(repo, userID, tt.status, false)

			_, err := lifecycle.Approve(context.Background(), userID, task.ID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				if len(enqueuer.jobs) != 0 {
					t.Error("Expected no jobs enqueued on rejected approve")
				}
			} else if err != nil {
				t.Fatalf("Approve failed: %v", err)
			} else if len(enqueuer.jobs) != 1 {
				t.Errorf("Expected 1 execution job, got %d", len(enqueuer.jobs))
			}

			if repo.tasks[task.ID].Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, repo.tasks[task.ID].Status)
			}
		})
	}
}

func TestReject_ResolvesImmediately(t *testing.T) {
	t.Parallel()

	repo := newMockTaskRepo()
	lifecycle, _ := newLifecycle(repo, nil)
	userID := uuid.New()
	task := seedTask(repo, userID, models.TaskStatusPendingInput, false)

	rejected, err := lifecycle.Reject(context.Background(), userID, task.ID)
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != models.TaskStatusCompleted {
		t.Errorf("Expected terminal status, got %s", rejected.Status)
	}
	if len(rejected.Timeline) != 1 || rejected.Timeline[0].Action != "Rejected by owner" {
		t.Errorf("Expected rejection timeline entry, got %v", rejected.Timeline)
	}

	// All steps completed: no entry may be "current"
	for _, step := range rejected.Steps() {
		if step.Status == models.StepCurrent {
			t.Error("Rejected task must have no current step")
		}
	}

	// Second reject is an illegal transition
	if _, err := lifecycle.Reject(context.Background(), userID, task.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition on double reject, got %v", err)
	}
}

func TestTakeControlAndResume(t *testing.T) {
	t.Parallel()

	repo := newMockTaskRepo()
	lifecycle, _ := newLifecycle(repo, nil)
	userID := uuid.New()
	task := seedTask(repo, userID, models.TaskStatusInProgress, false)

	paused, err := lifecycle.TakeControl(context.Background(), userID, task.ID)
	if err != nil {
		t.Fatalf("TakeControl failed: %v", err)
	}
	if !paused.ManualOverride {
		t.Error("Expected manual_override true after TakeControl")
	}
	if paused.Status != models.TaskStatusInProgress {
		t.Errorf("TakeControl must not change status, got %s", paused.Status)
	}

	// Double pause is rejected
	if _, err := lifecycle.TakeControl(context.Background(), userID, task.ID); !errors.Is(err, ErrAlreadyPaused) {
		t.Fatalf("Expected ErrAlreadyPaused, got %v", err)
	}

	resumed, err := lifecycle.Resume(context.Background(), userID, task.ID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.ManualOverride {
		t.Error("Expected manual_override false after Resume")
	}
	if resumed.Status != models.TaskStatusInProgress {
		t.Errorf("Resume must not change status, got %s", resumed.Status)
	}
}

func TestResume_IllegalWhenNotPaused(t *testing.T) {
	t.Parallel()

	repo := newMockTaskRepo()
	lifecycle, _ := newLifecycle(repo, nil)
	userID := uuid.New()
	task := seedTask(repo, userID, models.TaskStatusInProgress, false)

	if _, err := lifecycle.Resume(context.Background(), userID, task.ID); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("Expected ErrNotPaused, got %v", err)
	}
}

func TestTakeControl_IllegalFromCheckpoint(t *testing.T) {
	t.Parallel()

	repo := newMockTaskRepo()
	lifecycle, _ := newLifecycle(repo, nil)
	userID := uuid.New()
	task := seedTask(repo, userID, models.TaskStatusPendingInput, false)

	if _, err := lifecycle.TakeControl(context.Background(), userID, task.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestOwnership(t *testing.T) {
	t.Parallel()

	repo := newMockTaskRepo()
	lifecycle, _ := newLifecycle(repo, nil)
	task := seedTask(repo, uuid.New(), models.TaskStatusPendingInput, false)

	if _, err := lifecycle.Approve(context.Background(), uuid.New(), task.ID); !errors.Is(err, ErrNotTaskOwner) {
		t.Fatalf("Expected ErrNotTaskOwner, got %v", err)
	}
	if _, err := lifecycle.Get(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestTimelineCursor_SingleCurrentStep(t *testing.T) {
	t.Parallel()

	reasoning := "rent is 14 days overdue"
	task := &models.AgentTask{
		Timeline: []models.TimelineEntry{
			{Timestamp: time.Now().Add(-2 * time.Hour), Action: "Drafted reminder notice", Reasoning: &reasoning},
			{Timestamp: time.Now().Add(-1 * time.Hour), Action: "Sent reminder to tenant"},
			{Timestamp: time.Now(), Action: "Awaiting tenant response"},
		},
		CurrentStep: 1,
	}

	steps := task.Steps()
	current := 0
	for _, step := range steps {
		if step.Status == models.StepCurrent {
			current++
		}
	}
	if current != 1 {
		t.Fatalf("Expected exactly one current step, got %d", current)
	}
	if steps[0].Status != models.StepCompleted {
		t.Errorf("Expected first step completed, got %s", steps[0].Status)
	}
	if steps[2].Status != models.StepPending {
		t.Errorf("Expected last step pending, got %s", steps[2].Status)
	}
}
