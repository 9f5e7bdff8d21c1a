package autonomy

import "github.com/propeld/propeld/internal/models"

// Built-in default level tables, one per named preset. Each table is total
// over the closed category set; resolution overlays sparse user overrides on
// top of the active table.
var presetDefaults = map[models.AutonomyPreset]map[models.TaskCategory]models.AutonomyLevel{
	models.PresetCautious: {
		models.CategoryTenantFinding:   models.LevelNotifyOnly,
		models.CategoryLeaseManagement: models.LevelNotifyOnly,
		models.CategoryRentCollection:  models.LevelNotifyOnly,
		models.CategoryMaintenance:     models.LevelSuggest,
		models.CategoryCompliance:      models.LevelNotifyOnly,
		models.CategoryGeneral:         models.LevelSuggest,
		models.CategoryInspections:     models.LevelNotifyOnly,
		models.CategoryListings:        models.LevelNotifyOnly,
		models.CategoryFinancial:       models.LevelNotifyOnly,
		models.CategoryInsurance:       models.LevelNotifyOnly,
		models.CategoryCommunication:   models.LevelSuggest,
	},
	models.PresetBalanced: {
		models.CategoryTenantFinding:   models.LevelSuggest,
		models.CategoryLeaseManagement: models.LevelSuggest,
		models.CategoryRentCollection:  models.LevelSuggest,
		models.CategoryMaintenance:     models.LevelAutoRoutine,
		models.CategoryCompliance:      models.LevelSuggest,
		models.CategoryGeneral:         models.LevelAutoRoutine,
		models.CategoryInspections:     models.LevelSuggest,
		models.CategoryListings:        models.LevelSuggest,
		models.CategoryFinancial:       models.LevelSuggest,
		models.CategoryInsurance:       models.LevelSuggest,
		models.CategoryCommunication:   models.LevelAutoRoutine,
	},
	models.PresetHandsOff: {
		models.CategoryTenantFinding:   models.LevelAutoFull,
		models.CategoryLeaseManagement: models.LevelAutoFull,
		models.CategoryRentCollection:  models.LevelAutoFull,
		models.CategoryMaintenance:     models.LevelAutoFull,
		models.CategoryCompliance:      models.LevelAutoRoutine,
		models.CategoryGeneral:         models.LevelAutoFull,
		models.CategoryInspections:     models.LevelAutoFull,
		models.CategoryListings:        models.LevelAutoFull,
		models.CategoryFinancial:       models.LevelAutoRoutine,
		models.CategoryInsurance:       models.LevelAutoRoutine,
		models.CategoryCommunication:   models.LevelAutoFull,
	},
}

// PresetDefaults returns a copy of the built-in default level table for a
// preset. The custom preset has no table of its own; it starts from the
// balanced defaults with overrides layered on top.
func PresetDefaults(preset models.AutonomyPreset) map[models.TaskCategory]models.AutonomyLevel {
	table, ok := presetDefaults[preset]
	if !ok {
		table = presetDefaults[models.PresetBalanced]
	}

	defaults := make(map[models.TaskCategory]models.AutonomyLevel, len(table))
	for category, level := range table {
		defaults[category] = level
	}
	return defaults
}
