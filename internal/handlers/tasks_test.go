package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/propeld/propeld/internal/middleware"
	"github.com/propeld/propeld/internal/models"
	"github.com/propeld/propeld/internal/services/agent"
	"github.com/propeld/propeld/internal/services/autonomy"
	"go.uber.org/zap"
)

// mockTaskRepo is an in-memory task store mirroring the conditional-update
// semantics of the SQL repository
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
	return nil, nil
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
func (m *mockSettingsRepo) SetPreset(_ context.Context, userID uuid.UUID, preset models.AutonomyPreset) error {
	m.settings = &models.AutonomySettings{UserID: userID, Preset: preset, Overrides: map[models.TaskCategory]models.AutonomyLevel{}}
	return nil
}
func (m *mockSettingsRepo) MergeOverride(_ context.Context, userID uuid.UUID, category models.TaskCategory, level models.AutonomyLevel) error {
	if m.settings == nil {
		m.settings = &models.AutonomySettings{UserID: userID, Overrides: map[models.TaskCategory]models.AutonomyLevel{}}
	}
	m.settings.Preset = models.PresetCustom
	m.settings.Overrides[category] = level
	return nil
}

func newTaskRouter(repo *mockTaskRepo) *mux.Router {
	resolver := autonomy.NewService(&mockSettingsRepo{}, zap.NewNop())
	lifecycle := agent.NewLifecycle(repo, resolver, nil, zap.NewNop())
	handler := NewTaskHandler(lifecycle)

	router := mux.NewRouter()
	handler.RegisterRoutes(router.PathPrefix("/agent/tasks").Subrouter())
	return router
}

func doRequest(router *mux.Router, user *models.User, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if user != nil {
		req = req.WithContext(middleware.SetUserInContext(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedHandlerTask(repo *mockTaskRepo, userID uuid.UUID, status models.TaskStatus) *models.AgentTask {
	task := &models.AgentTask{
		ID:       uuid.New(),
		UserID:   userID,
		Title:    "Chase overdue rent",
		Category: models.CategoryRentCollection,
		Priority: models.PriorityHigh,
		Status:   status,
	}
	repo.tasks[task.ID] = task
	return task
}

func TestApproveTask_StatusMapping(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	tests := []struct {
		name       string
		user       *models.User
		taskStatus models.TaskStatus
		taskOwner  uuid.UUID
		path       func(taskID uuid.UUID) string
		wantStatus int
	}{
		{
			name:       "approve pending task succeeds",
			user:       &models.User{ID: userID},
			taskStatus: models.TaskStatusPendingInput,
			taskOwner:  userID,
			wantStatus: http.StatusOK,
		},
		{
			name:       "approve in-progress task conflicts",
			user:       &models.User{ID: userID},
			taskStatus: models.TaskStatusInProgress,
			taskOwner:  userID,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "approve another user's task forbidden",
			user:       &models.User{ID: userID},
			taskStatus: models.TaskStatusPendingInput,
			taskOwner:  uuid.New(),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "unauthenticated request rejected",
			user:       nil,
			taskStatus: models.TaskStatusPendingInput,
			taskOwner:  userID,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newMockTaskRepo()
			task := seedHandlerTask(repo, tt.taskOwner, tt.taskStatus)
			router := newTaskRouter(repo)

			rec := doRequest(router, tt.user, http.MethodPost, "/agent/tasks/"+task.ID.String()+"/approve")
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestApproveTask_UnknownTaskNotFound(t *testing.T) {
	t.Parallel()

	router := newTaskRouter(newMockTaskRepo())
	user := &models.User{ID: uuid.New()}

	rec := doRequest(router, user, http.MethodPost, "/agent/tasks/"+uuid.NewString()+"/approve")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}

	rec = doRequest(router, user, http.MethodPost, "/agent/tasks/not-a-uuid/approve")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestRejectTask_ResolvesWithTimelineEntry(t *testing.T) {
	t.Parallel()

	repo := newMockTaskRepo()
	userID := uuid.New()
	task := seedHandlerTask(repo, userID, models.TaskStatusPendingInput)
	router := newTaskRouter(repo)

	rec := doRequest(router, &models.User{ID: userID}, http.MethodPost, "/agent/tasks/"+task.ID.String()+"/reject")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data struct {
			Status models.TaskStatus     `json:"status"`
			Steps  []models.TimelineStep `json:"steps"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Data.Status != models.TaskStatusCompleted {
		t.Errorf("Expected completed, got %s", body.Data.Status)
	}
	if len(body.Data.Steps) != 1 || body.Data.Steps[0].Status != models.StepCompleted {
		t.Errorf("Expected one completed rejection step, got %v", body.Data.Steps)
	}
}

func TestTakeControlAndResume_RoundTrip(t *testing.T) {
	t.Parallel()

	repo := newMockTaskRepo()
	userID := uuid.New()
	task := seedHandlerTask(repo, userID, models.TaskStatusInProgress)
	router := newTaskRouter(repo)
	user := &models.User{ID: userID}

	rec := doRequest(router, user, http.MethodPost, "/agent/tasks/"+task.ID.String()+"/take-control")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on take-control, got %d", rec.Code)
	}
	if !repo.tasks[task.ID].ManualOverride {
		t.Error("Expected manual override set")
	}

	// A second take-control is a conflict, not a silent no-op
	rec = doRequest(router, user, http.MethodPost, "/agent/tasks/"+task.ID.String()+"/take-control")
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 on double take-control, got %d", rec.Code)
	}

	rec = doRequest(router, user, http.MethodPost, "/agent/tasks/"+task.ID.String()+"/resume")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 on resume, got %d", rec.Code)
	}
	if repo.tasks[task.ID].ManualOverride {
		t.Error("Expected manual override cleared")
	}
	if repo.tasks[task.ID].Status != models.TaskStatusInProgress {
		t.Errorf("Expected status preserved across pause, got %s", repo.tasks[task.ID].Status)
	}
}

func TestListTasks_FiltersAndPagination(t *testing.T) {
	t.Parallel()

	repo := newMockTaskRepo()
	userID := uuid.New()
	seedHandlerTask(repo, userID, models.TaskStatusPendingInput)
	seedHandlerTask(repo, userID, models.TaskStatusCompleted)
	seedHandlerTask(repo, uuid.New(), models.TaskStatusPendingInput)
	router := newTaskRouter(repo)

	rec := doRequest(router, &models.User{ID: userID}, http.MethodGet, "/agent/tasks?status=pending_input")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Data ListTasksResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Data.Total != 1 {
		t.Errorf("Expected 1 matching task, got %d", body.Data.Total)
	}

	rec = doRequest(router, &models.User{ID: userID}, http.MethodGet, "/agent/tasks?status=bogus")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid status filter, got %d", rec.Code)
	}
}
