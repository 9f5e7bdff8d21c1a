package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/propeld/propeld/internal/middleware"
	"github.com/propeld/propeld/internal/models"
	"github.com/propeld/propeld/internal/services/autonomy"
	"github.com/propeld/propeld/internal/validation"
)

// AutonomyHandler handles autonomy configuration requests
type AutonomyHandler struct {
	resolver *autonomy.Service
}

// NewAutonomyHandler creates a new autonomy handler
func NewAutonomyHandler(resolver *autonomy.Service) *AutonomyHandler {
	return &AutonomyHandler{resolver: resolver}
}

// RegisterRoutes registers autonomy routes on the given router
// The router should already have the /autonomy prefix
func (h *AutonomyHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetSettings).Methods("GET")
	r.HandleFunc("/preset", h.SetPreset).Methods("PUT")
	r.HandleFunc("/categories/{category}", h.SetCategoryLevel).Methods("PUT")
}

// SetPresetRequest represents a preset change request
type SetPresetRequest struct {
	Preset string `json:"preset" validate:"required,autonomy_preset"`
}

// SetCategoryLevelRequest represents a per-category override request
type SetCategoryLevelRequest struct {
	Level string `json:"level" validate:"required,autonomy_level"`
}

// SettingsResponse is the stored configuration plus the fully resolved
// per-category levels the agent will actually act on
type SettingsResponse struct {
	Preset          models.AutonomyPreset                        `json:"preset"`
	Overrides       map[models.TaskCategory]models.AutonomyLevel `json:"overrides"`
	EffectiveLevels map[models.TaskCategory]models.AutonomyLevel `json:"effective_levels"`
}

// settingsResponse resolves a settings row (possibly nil: a user who never
// configured anything is on balanced with no overrides) into the response.
func settingsResponse(settings *models.AutonomySettings) SettingsResponse {
	resp := SettingsResponse{
		Preset:          models.PresetBalanced,
		Overrides:       map[models.TaskCategory]models.AutonomyLevel{},
		EffectiveLevels: autonomy.ResolveEffectiveLevels(settings),
	}
	if settings != nil {
		resp.Preset = settings.Preset
		if settings.Overrides != nil {
			resp.Overrides = settings.Overrides
		}
	}
	return resp
}

// GetSettings returns the user's autonomy configuration with resolved levels
func (h *AutonomyHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	settings, err := h.resolver.Settings(r.Context(), user.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve autonomy settings")
		return
	}

	respondJSON(w, http.StatusOK, settingsResponse(settings))
}

// SetPreset switches the user's preset. Switching to a non-custom preset
// discards all per-category overrides.
func (h *AutonomyHandler) SetPreset(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req SetPresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON in request body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "preset must be one of cautious, balanced, hands_off, custom")
		return
	}

	if err := h.resolver.SetPreset(r.Context(), user.ID, models.AutonomyPreset(req.Preset)); err != nil {
		if errors.Is(err, autonomy.ErrInvalidPreset) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update preset")
		return
	}

	settings, err := h.resolver.Settings(r.Context(), user.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve autonomy settings")
		return
	}
	respondJSON(w, http.StatusOK, settingsResponse(settings))
}

// SetCategoryLevel sets one per-category override. Any override moves the
// preset to custom.
func (h *AutonomyHandler) SetCategoryLevel(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	category := models.TaskCategory(mux.Vars(r)["category"])

	var req SetCategoryLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON in request body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "level must be one of notify_only, suggest, auto_routine, auto_full")
		return
	}

	if err := h.resolver.SetCategoryLevel(r.Context(), user.ID, category, models.AutonomyLevel(req.Level)); err != nil {
		switch {
		case errors.Is(err, autonomy.ErrInvalidCategory), errors.Is(err, autonomy.ErrInvalidLevel):
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		default:
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update category level")
		}
		return
	}

	settings, err := h.resolver.Settings(r.Context(), user.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve autonomy settings")
		return
	}
	respondJSON(w, http.StatusOK, settingsResponse(settings))
}
