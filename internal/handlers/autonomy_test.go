package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/propeld/propeld/internal/middleware"
	"github.com/propeld/propeld/internal/models"
	"github.com/propeld/propeld/internal/services/autonomy"
	"go.uber.org/zap"
)

func newAutonomyRouter(repo *mockSettingsRepo) *mux.Router {
	handler := NewAutonomyHandler(autonomy.NewService(repo, zap.NewNop()))
	router := mux.NewRouter()
	handler.RegisterRoutes(router.PathPrefix("/autonomy").Subrouter())
	return router
}

func doJSONRequest(router *mux.Router, user *models.User, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(middleware.SetUserInContext(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeSettings(t *testing.T, rec *httptest.ResponseRecorder) SettingsResponse {
	t.Helper()
	var body struct {
		Data SettingsResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body.Data
}

func TestGetSettings_DefaultsToBalanced(t *testing.T) {
	t.Parallel()

	router := newAutonomyRouter(&mockSettingsRepo{})
	rec := doRequest(router, &models.User{ID: uuid.New()}, http.MethodGet, "/autonomy")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	settings := decodeSettings(t, rec)
	if settings.Preset != models.PresetBalanced {
		t.Errorf("Expected balanced preset for unconfigured user, got %s", settings.Preset)
	}
	if len(settings.Overrides) != 0 {
		t.Errorf("Expected no overrides, got %v", settings.Overrides)
	}
	if len(settings.EffectiveLevels) != len(models.AllTaskCategories()) {
		t.Errorf("Expected a level for every category, got %d", len(settings.EffectiveLevels))
	}
}

func TestSetPreset_ValidAndInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "hands_off accepted", body: `{"preset":"hands_off"}`, wantStatus: http.StatusOK},
		{name: "unknown preset rejected", body: `{"preset":"yolo"}`, wantStatus: http.StatusBadRequest},
		{name: "missing preset rejected", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "malformed json rejected", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := newAutonomyRouter(&mockSettingsRepo{})
			rec := doJSONRequest(router, &models.User{ID: uuid.New()}, http.MethodPut, "/autonomy/preset", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSetCategoryLevel_ForcesCustomPreset(t *testing.T) {
	t.Parallel()

	repo := &mockSettingsRepo{settings: &models.AutonomySettings{
		Preset:    models.PresetBalanced,
		Overrides: map[models.TaskCategory]models.AutonomyLevel{},
	}}
	router := newAutonomyRouter(repo)
	user := &models.User{ID: uuid.New()}

	rec := doJSONRequest(router, user, http.MethodPut, "/autonomy/categories/maintenance", `{"level":"auto_full"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	settings := decodeSettings(t, rec)
	if settings.Preset != models.PresetCustom {
		t.Errorf("Expected custom preset after category edit, got %s", settings.Preset)
	}
	if settings.EffectiveLevels[models.CategoryMaintenance] != models.LevelAutoFull {
		t.Errorf("Expected auto_full for maintenance, got %s", settings.EffectiveLevels[models.CategoryMaintenance])
	}
}

func TestSetCategoryLevel_RejectsUnknownInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "unknown category", path: "/autonomy/categories/gardening", body: `{"level":"suggest"}`},
		{name: "unknown level", path: "/autonomy/categories/maintenance", body: `{"level":"full_send"}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := &mockSettingsRepo{}
			router := newAutonomyRouter(repo)
			rec := doJSONRequest(router, &models.User{ID: uuid.New()}, http.MethodPut, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if repo.settings != nil && repo.settings.Preset == models.PresetCustom {
				t.Error("Expected no persistence for rejected input")
			}
		})
	}
}
