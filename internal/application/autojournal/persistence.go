// Package autojournal wires the automatic journal setup screen to its
// repository.
package autojournal

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/gridsync/internal/domain/autojournal"
	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/domain/shared"
)

// Persistence implements grid.Persistence on an autojournal.Repository
type Persistence struct {
	repo   autojournal.Repository
	actor  string
	logger *zap.Logger
}

// NewPersistence creates a Persistence writing on behalf of actor
func NewPersistence(repo autojournal.Repository, actor string, logger *zap.Logger) *Persistence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persistence{repo: repo, actor: actor, logger: logger}
}

// Load reads entries for the master grid and lines for the detail grid. Both
// queries use the office, module and item field names as parameters.
func (p *Persistence) Load(ctx context.Context, target grid.Target, query grid.Query) (grid.LoadResult, error) {
	switch target {
	case grid.TargetMaster:
		masters, err := p.repo.FindMasters(ctx, autojournal.MasterFilter{
			Office: query[autojournal.FieldOffice],
			Module: query[autojournal.FieldModule],
		})
		if err != nil {
			return loadFailure(err)
		}
		rows := make([]grid.Values, 0, len(masters))
		for i := range masters {
			rows = append(rows, masters[i].Values())
		}
		return grid.LoadResult{Success: true, Rows: rows}, nil

	case grid.TargetDetail:
		office, module, item := query[autojournal.FieldOffice], query[autojournal.FieldModule], query[autojournal.FieldItem]
		if office == "" || module == "" || item == "" {
			return grid.LoadResult{Success: false, Message: "Office, module and item are required"}, nil
		}
		lines, err := p.repo.FindLines(ctx, office, module, item)
		if err != nil {
			return loadFailure(err)
		}
		rows := make([]grid.Values, 0, len(lines))
		for i := range lines {
			rows = append(rows, lines[i].Values())
		}
		return grid.LoadResult{Success: true, Rows: rows}, nil
	}
	return grid.LoadResult{}, fmt.Errorf("autojournal: unknown target %q", target)
}

// Save writes the committed rows in one transaction
func (p *Persistence) Save(ctx context.Context, master, detail []*grid.Row) (grid.SaveResult, error) {
	cs := autojournal.BuildChangeSet(p.actor, master, detail)
	if len(cs.Masters) == 0 && len(cs.Lines) == 0 {
		return grid.SaveResult{Success: true}, nil
	}
	if err := p.repo.SaveChanges(ctx, cs); err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			p.logger.Info("auto-journal changes refused", zap.String("code", de.Code), zap.String("message", de.Message))
			return grid.SaveResult{Success: false, Message: de.Message}, nil
		}
		p.logger.Error("failed to save auto-journal changes", zap.Error(err))
		return grid.SaveResult{}, err
	}
	return grid.SaveResult{
		Success: true,
		Message: fmt.Sprintf("Saved %d entr(ies) and %d line(s)", len(cs.Masters), len(cs.Lines)),
	}, nil
}

func loadFailure(err error) (grid.LoadResult, error) {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return grid.LoadResult{Success: false, Message: de.Message}, nil
	}
	return grid.LoadResult{}, err
}
