package closing

import (
	"go.uber.org/zap"

	"github.com/erp/gridsync/internal/application/gridsession"
	"github.com/erp/gridsync/internal/domain/closing"
	"github.com/erp/gridsync/internal/domain/grid"
)

// ScreenName is the registry name of the period closing screen
const ScreenName = "closing"

// NewScreen describes the period closing screen: periods on the master grid,
// the module close tags of the selected period on the detail grid
func NewScreen(repo closing.Repository, logger *zap.Logger) gridsession.Screen {
	return gridsession.Screen{
		Name:         ScreenName,
		Title:        "Period closing",
		MasterSchema: closing.PeriodSchema(),
		DetailSchema: closing.ModuleTagSchema(),
		NewEngine:    closing.NewEngine,
		Link: grid.Link{
			Query: func(master *grid.Row) grid.Query {
				return grid.Query{closing.FieldPeriod: master.String(closing.FieldPeriod)}
			},
			Defaults: func(master *grid.Row) grid.Values {
				return grid.Values{
					closing.FieldPeriod:   master.String(closing.FieldPeriod),
					closing.FieldStatus:   master.String(closing.FieldStatus),
					closing.FieldCloseTag: master.String(closing.FieldCloseTag),
				}
			},
		},
		NewPersistence: func(actor string) grid.Persistence {
			return NewPersistence(repo, actor, logger)
		},
	}
}
