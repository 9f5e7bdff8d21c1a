package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propeld/propeld/internal/models"
)

// AutonomySettingsRepository handles autonomy settings database operations.
// Rows are created lazily on first write and never hard-deleted.
type AutonomySettingsRepository struct {
	db *DB
}

// NewAutonomySettingsRepository creates a new autonomy settings repository
func NewAutonomySettingsRepository(db *DB) *AutonomySettingsRepository {
	return &AutonomySettingsRepository{db: db}
}

// GetByUserID retrieves a user's autonomy settings. Returns (nil, nil) when
// no row exists, meaning preset defaults for "balanced" apply.
func (r *AutonomySettingsRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.AutonomySettings, error) {
	settings := &models.AutonomySettings{}
	var overridesJSON []byte

	query := `
		SELECT user_id, preset, overrides, created_at, updated_at
		FROM autonomy_settings
		WHERE user_id = $1
	`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&settings.UserID,
		&settings.Preset,
		&overridesJSON,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get autonomy settings: %w", err)
	}

	if err := json.Unmarshal(overridesJSON, &settings.Overrides); err != nil {
		return nil, fmt.Errorf("failed to unmarshal overrides: %w", err)
	}

	return settings, nil
}

// SetPreset upserts the active preset. Switching to a non-custom preset is a
// full reset: all overrides are discarded, not merged.
func (r *AutonomySettingsRepository) SetPreset(ctx context.Context, userID uuid.UUID, preset models.AutonomyPreset) error {
	now := time.Now()

	if preset != models.PresetCustom {
		query := `
			INSERT INTO autonomy_settings (user_id, preset, overrides, created_at, updated_at)
			VALUES ($1, $2, '{}'::jsonb, $3, $3)
			ON CONFLICT (user_id) DO UPDATE SET
				preset = EXCLUDED.preset,
				overrides = '{}'::jsonb,
				updated_at = EXCLUDED.updated_at
		`
		if _, err := r.db.ExecContext(ctx, query, userID, preset, now); err != nil {
			return fmt.Errorf("failed to set preset: %w", err)
		}
		return nil
	}

	// Selecting "custom" explicitly keeps whatever overrides already exist.
	query := `
		INSERT INTO autonomy_settings (user_id, preset, overrides, created_at, updated_at)
		VALUES ($1, $2, '{}'::jsonb, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			preset = EXCLUDED.preset,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, userID, preset, now); err != nil {
		return fmt.Errorf("failed to set preset: %w", err)
	}
	return nil
}

// MergeOverride merges a single category override into the overrides map and
// forces the preset to custom, in one atomic statement. Relies on the row
// update being atomic; concurrent merges are last-writer-wins per key.
func (r *AutonomySettingsRepository) MergeOverride(ctx context.Context, userID uuid.UUID, category models.TaskCategory, level models.AutonomyLevel) error {
	overrideJSON, err := json.Marshal(map[models.TaskCategory]models.AutonomyLevel{category: level})
	if err != nil {
		return fmt.Errorf("failed to marshal override: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO autonomy_settings (user_id, preset, overrides, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			preset = $2,
			overrides = autonomy_settings.overrides || $3::jsonb,
			updated_at = $4
	`
	if _, err := r.db.ExecContext(ctx, query, userID, models.PresetCustom, overrideJSON, now); err != nil {
		return fmt.Errorf("failed to merge override: %w", err)
	}
	return nil
}
