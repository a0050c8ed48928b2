package persistence

import "github.com/erp/gridsync/internal/infrastructure/persistence/models"

// Models lists every table the grid screens persist to
func Models() []any {
	return []any{
		&models.ClosingPeriodModel{},
		&models.ClosingModuleTagModel{},
		&models.AutoJournalMasterModel{},
		&models.AutoJournalLineModel{},
	}
}
