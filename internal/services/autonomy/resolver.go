package autonomy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/database"
	"github.com/propeld/propeld/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCategory is returned when a category outside the closed set
	// is supplied. Nothing is persisted.
	ErrInvalidCategory = errors.New("unknown task category")
	// ErrInvalidLevel is returned when a level outside L0..L3 is supplied
	ErrInvalidLevel = errors.New("unknown autonomy level")
	// ErrInvalidPreset is returned for a preset outside the closed set
	ErrInvalidPreset = errors.New("unknown autonomy preset")
)

// Service resolves effective autonomy levels and persists preset and
// override edits.
type Service struct {
	settingsRepo database.AutonomySettingsRepositoryInterface
	logger       *zap.Logger
}

// NewService creates a new autonomy service
func NewService(settingsRepo database.AutonomySettingsRepositoryInterface, logger *zap.Logger) *Service {
	return &Service{settingsRepo: settingsRepo, logger: logger}
}

// ResolveEffectiveLevels merges a settings row into a total level map:
// preset defaults first, then override entries key by key. A nil settings
// row resolves to the balanced defaults. The merge is pure so "what would
// the preset alone produce" stays answerable via PresetDefaults.
func ResolveEffectiveLevels(settings *models.AutonomySettings) map[models.TaskCategory]models.AutonomyLevel {
	preset := models.PresetBalanced
	if settings != nil {
		preset = settings.Preset
	}

	levels := PresetDefaults(preset)
	if settings == nil {
		return levels
	}

	for category, level := range settings.Overrides {
		if _, known := levels[category]; known {
			levels[category] = level
		}
	}
	return levels
}

// EffectiveLevels loads a user's settings and resolves them. The returned
// preset is what the configuration is classified as: a named preset, or
// custom once any per-category edit has been made.
func (s *Service) EffectiveLevels(ctx context.Context, userID uuid.UUID) (map[models.TaskCategory]models.AutonomyLevel, models.AutonomyPreset, error) {
	settings, err := s.settingsRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load autonomy settings: %w", err)
	}

	preset := models.PresetBalanced
	if settings != nil {
		preset = settings.Preset
	}
	return ResolveEffectiveLevels(settings), preset, nil
}

// EffectiveLevelFor resolves the level for a single category.
func (s *Service) EffectiveLevelFor(ctx context.Context, userID uuid.UUID, category models.TaskCategory) (models.AutonomyLevel, error) {
	if !models.ValidTaskCategory(category) {
		return "", ErrInvalidCategory
	}
	levels, _, err := s.EffectiveLevels(ctx, userID)
	if err != nil {
		return "", err
	}
	return levels[category], nil
}

// Settings returns the user's stored settings row, or nil when none exists.
func (s *Service) Settings(ctx context.Context, userID uuid.UUID) (*models.AutonomySettings, error) {
	return s.settingsRepo.GetByUserID(ctx, userID)
}

// SetPreset switches the active preset. A switch to a non-custom preset is a
// full reset: all overrides are discarded. The settings row is created
// lazily if absent.
func (s *Service) SetPreset(ctx context.Context, userID uuid.UUID, preset models.AutonomyPreset) error {
	switch preset {
	case models.PresetCautious, models.PresetBalanced, models.PresetHandsOff, models.PresetCustom:
	default:
		return ErrInvalidPreset
	}

	if err := s.settingsRepo.SetPreset(ctx, userID, preset); err != nil {
		return fmt.Errorf("failed to persist preset: %w", err)
	}

	s.logger.Info("autonomy_preset_set",
		zap.String("user_id", userID.String()),
		zap.String("preset", string(preset)),
	)
	return nil
}

// SetCategoryLevel merges one category override and forces the preset to
// custom. An explicit per-category edit always demotes the configuration out
// of any named preset, even when the new level equals the preset default.
// Validation happens before any persistence write: an unknown category or
// level is rejected with no state change.
func (s *Service) SetCategoryLevel(ctx context.Context, userID uuid.UUID, category models.TaskCategory, level models.AutonomyLevel) error {
	if !models.ValidTaskCategory(category) {
		return ErrInvalidCategory
	}
	if level.Ordinal() < 0 {
		return ErrInvalidLevel
	}

	if err := s.settingsRepo.MergeOverride(ctx, userID, category, level); err != nil {
		return fmt.Errorf("failed to persist category level: %w", err)
	}

	s.logger.Info("autonomy_category_level_set",
		zap.String("user_id", userID.String()),
		zap.String("category", string(category)),
		zap.String("level", string(level)),
	)
	return nil
}
