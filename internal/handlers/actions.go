package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/propeld/propeld/internal/middleware"
	"github.com/propeld/propeld/internal/models"
	"github.com/propeld/propeld/internal/services/proactive"
)

// ActionHandler handles proactive action log requests
type ActionHandler struct {
	recorder *proactive.Recorder
}

// NewActionHandler creates a new action handler
func NewActionHandler(recorder *proactive.Recorder) *ActionHandler {
	return &ActionHandler{recorder: recorder}
}

// RegisterRoutes registers action log routes on the given router
// The router should already have the /agent/actions prefix
func (h *ActionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListRecent).Methods("GET")
}

// ListActionsResponse represents the recent-actions response
type ListActionsResponse struct {
	Actions []*models.ProactiveAction `json:"actions"`
	Days    int                       `json:"days"`
}

// ListRecent returns the user's recent proactive action records, newest
// first. The log is append-only; this is its only read surface.
func (h *ActionHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	days := proactive.DefaultWindowDays
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed <= 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "days must be a positive integer")
			return
		}
		days = parsed
	}

	limit := proactive.DefaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	onlyAuto := false
	if a := r.URL.Query().Get("auto_only"); a != "" {
		parsed, err := strconv.ParseBool(a)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "auto_only must be a boolean")
			return
		}
		onlyAuto = parsed
	}

	actions, err := h.recorder.Recent(r.Context(), user.ID, days, onlyAuto, limit)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve actions")
		return
	}
	if actions == nil {
		actions = []*models.ProactiveAction{}
	}

	respondJSON(w, http.StatusOK, ListActionsResponse{Actions: actions, Days: days})
}
