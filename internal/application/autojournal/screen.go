package autojournal

import (
	"go.uber.org/zap"

	"github.com/erp/gridsync/internal/application/gridsession"
	"github.com/erp/gridsync/internal/domain/autojournal"
	"github.com/erp/gridsync/internal/domain/grid"
)

// ScreenName is the registry name of the automatic journal setup screen
const ScreenName = "autojournal"

// NewScreen describes the automatic journal setup screen
func NewScreen(repo autojournal.Repository, logger *zap.Logger) gridsession.Screen {
	return gridsession.Screen{
		Name:         ScreenName,
		Title:        "Automatic journal setup",
		MasterSchema: autojournal.MasterSchema(),
		DetailSchema: autojournal.LineSchema(),
		NewEngine:    autojournal.NewEngine,
		Link: grid.Link{
			Query:    entryQuery,
			Defaults: lineDefaults,
		},
		NewPersistence: func(actor string) grid.Persistence {
			return NewPersistence(repo, actor, logger)
		},
	}
}

func entryQuery(master *grid.Row) grid.Query {
	return grid.Query{
		autojournal.FieldOffice: master.String(autojournal.FieldOffice),
		autojournal.FieldModule: master.String(autojournal.FieldModule),
		autojournal.FieldItem:   master.String(autojournal.FieldItem),
	}
}

func lineDefaults(master *grid.Row) grid.Values {
	return grid.Values{
		autojournal.FieldOffice: master.String(autojournal.FieldOffice),
		autojournal.FieldModule: master.String(autojournal.FieldModule),
		autojournal.FieldItem:   master.String(autojournal.FieldItem),
		autojournal.FieldUseYn:  master.String(autojournal.FieldUseYn),
	}
}
