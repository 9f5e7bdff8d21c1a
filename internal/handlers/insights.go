package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/propeld/propeld/internal/middleware"
	"github.com/propeld/propeld/internal/services/insights"
)

// InsightHandler handles insight feed requests
type InsightHandler struct {
	aggregator *insights.Aggregator
}

// NewInsightHandler creates a new insight handler
func NewInsightHandler(aggregator *insights.Aggregator) *InsightHandler {
	return &InsightHandler{aggregator: aggregator}
}

// RegisterRoutes registers insight routes on the given router
// The router should already have the /insights prefix
func (h *InsightHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetFeed).Methods("GET")
}

// GetFeed returns the prioritized insight feed. The feed never errors: a
// failing source yields an empty feed with the degraded flag set.
func (h *InsightHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	respondJSON(w, http.StatusOK, h.aggregator.BuildFeed(r.Context(), user.ID))
}
