package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/propeld/propeld/internal/middleware"
	"github.com/propeld/propeld/internal/models"
	"github.com/propeld/propeld/internal/services/agent"
	"github.com/propeld/propeld/internal/validation"
)

// TaskHandler handles agent task requests
type TaskHandler struct {
	lifecycle *agent.Lifecycle
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(lifecycle *agent.Lifecycle) *TaskHandler {
	return &TaskHandler{lifecycle: lifecycle}
}

// RegisterRoutes registers task routes on the given router
// The router should already have the /agent/tasks prefix
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
	r.HandleFunc("/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{id}/approve", h.ApproveTask).Methods("POST")
	r.HandleFunc("/{id}/reject", h.RejectTask).Methods("POST")
	r.HandleFunc("/{id}/take-control", h.TakeControl).Methods("POST")
	r.HandleFunc("/{id}/resume", h.ResumeTask).Methods("POST")
}

const (
	// DefaultPageSize is the default page size for pagination
	DefaultPageSize = 50
	// MaxPageSize is the maximum page size for pagination
	MaxPageSize = 200
)

// TaskResponse is a task with its derived timeline steps
type TaskResponse struct {
	*models.AgentTask
	Steps []models.TimelineStep `json:"steps"`
}

// ListTasksResponse represents the paginated response for listing tasks
type ListTasksResponse struct {
	Tasks      []TaskResponse `json:"tasks"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

func taskResponse(task *models.AgentTask) TaskResponse {
	return TaskResponse{AgentTask: task, Steps: task.Steps()}
}

// ListTasks lists the user's agent tasks with pagination
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}
	pageSize := DefaultPageSize
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 {
			if parsed > MaxPageSize {
				pageSize = MaxPageSize
			} else {
				pageSize = parsed
			}
		}
	}

	var status *models.TaskStatus
	if s := r.URL.Query().Get("status"); s != "" {
		if err := validation.ValidateTaskStatus(s); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		sEnum := models.TaskStatus(s)
		status = &sEnum
	}

	var category *models.TaskCategory
	if c := r.URL.Query().Get("category"); c != "" {
		if err := validation.ValidateTaskCategory(c); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		cEnum := models.TaskCategory(c)
		category = &cEnum
	}

	tasks, total, err := h.lifecycle.List(r.Context(), user.ID, status, category, page, pageSize)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	responses := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, taskResponse(task))
	}

	respondJSON(w, http.StatusOK, ListTasksResponse{
		Tasks:      responses,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	})
}

// GetTask returns a single task with its timeline
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	task, err := h.lifecycle.Get(r.Context(), user.ID, taskID)
	if err != nil {
		respondTaskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, taskResponse(task))
}

// ApproveTask releases a pending_input task into execution
func (h *TaskHandler) ApproveTask(w http.ResponseWriter, r *http.Request) {
	h.ownerAction(w, r, h.lifecycle.Approve)
}

// RejectTask declines a pending_input task, resolving it
func (h *TaskHandler) RejectTask(w http.ResponseWriter, r *http.Request) {
	h.ownerAction(w, r, h.lifecycle.Reject)
}

// TakeControl pauses autonomous execution on a task
func (h *TaskHandler) TakeControl(w http.ResponseWriter, r *http.Request) {
	h.ownerAction(w, r, h.lifecycle.TakeControl)
}

// ResumeTask returns a paused task to autonomous execution
func (h *TaskHandler) ResumeTask(w http.ResponseWriter, r *http.Request) {
	h.ownerAction(w, r, h.lifecycle.Resume)
}

// ownerAction runs one owner decision against a task and maps service errors
// to HTTP statuses. Illegal transitions are 409: the task changed underneath
// the client and it should refetch, not retry.
func (h *TaskHandler) ownerAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, userID, taskID uuid.UUID) (*models.AgentTask, error)) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	task, err := action(r.Context(), user.ID, taskID)
	if err != nil {
		respondTaskError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, taskResponse(task))
}

func respondTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrTaskNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
	case errors.Is(err, agent.ErrNotTaskOwner):
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Task does not belong to user")
	case errors.Is(err, agent.ErrInvalidTransition), errors.Is(err, agent.ErrAlreadyPaused), errors.Is(err, agent.ErrNotPaused):
		respondJSONError(w, http.StatusConflict, "Conflict", err.Error())
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update task")
	}
}
