package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/propeld/propeld/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but log if they do
	if err := Validate.RegisterValidation("task_category", validateTaskCategory); err != nil {
		panic(fmt.Sprintf("failed to register task_category validator: %v", err))
	}
	if err := Validate.RegisterValidation("autonomy_level", validateAutonomyLevel); err != nil {
		panic(fmt.Sprintf("failed to register autonomy_level validator: %v", err))
	}
	if err := Validate.RegisterValidation("autonomy_preset", validateAutonomyPreset); err != nil {
		panic(fmt.Sprintf("failed to register autonomy_preset validator: %v", err))
	}
	if err := Validate.RegisterValidation("task_status", validateTaskStatus); err != nil {
		panic(fmt.Sprintf("failed to register task_status validator: %v", err))
	}
	if err := Validate.RegisterValidation("task_priority", validateTaskPriority); err != nil {
		panic(fmt.Sprintf("failed to register task_priority validator: %v", err))
	}
}

// validateTaskCategory validates that a string is a valid TaskCategory enum value
func validateTaskCategory(fl validator.FieldLevel) bool {
	return models.ValidTaskCategory(models.TaskCategory(fl.Field().String()))
}

// validateAutonomyLevel validates that a string is a valid AutonomyLevel enum value
func validateAutonomyLevel(fl validator.FieldLevel) bool {
	return models.ValidAutonomyLevel(models.AutonomyLevel(fl.Field().String()))
}

// validateAutonomyPreset validates that a string is a valid AutonomyPreset enum value
func validateAutonomyPreset(fl validator.FieldLevel) bool {
	switch models.AutonomyPreset(fl.Field().String()) {
	case models.PresetCautious, models.PresetBalanced, models.PresetHandsOff, models.PresetCustom:
		return true
	default:
		return false
	}
}

// validateTaskStatus validates that a string is a valid TaskStatus enum value
func validateTaskStatus(fl validator.FieldLevel) bool {
	switch models.TaskStatus(fl.Field().String()) {
	case models.TaskStatusPendingInput, models.TaskStatusScheduled, models.TaskStatusInProgress, models.TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// validateTaskPriority validates that a string is a valid TaskPriority enum value
func validateTaskPriority(fl validator.FieldLevel) bool {
	switch models.TaskPriority(fl.Field().String()) {
	case models.PriorityUrgent, models.PriorityHigh, models.PriorityNormal, models.PriorityLow:
		return true
	default:
		return false
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateTaskStatus validates a TaskStatus string value
func ValidateTaskStatus(value string) error {
	switch models.TaskStatus(value) {
	case models.TaskStatusPendingInput, models.TaskStatusScheduled, models.TaskStatusInProgress, models.TaskStatusCompleted:
		return nil
	default:
		return fmt.Errorf("invalid status: %s (must be 'pending_input', 'scheduled', 'in_progress', or 'completed')", value)
	}
}

// ValidateTaskCategory validates a TaskCategory string value
func ValidateTaskCategory(value string) error {
	if !models.ValidTaskCategory(models.TaskCategory(value)) {
		return fmt.Errorf("invalid category: %s", value)
	}
	return nil
}
