// Package closing wires the period closing screen to its repository.
package closing

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/erp/gridsync/internal/domain/closing"
	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/domain/shared"
)

// Query parameters understood by the period grid
const (
	QueryYear   = "year"
	QueryStatus = "status"
)

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// Persistence implements grid.Persistence on a closing.Repository
type Persistence struct {
	repo   closing.Repository
	actor  string
	logger *zap.Logger
}

// NewPersistence creates a Persistence writing on behalf of actor
func NewPersistence(repo closing.Repository, actor string, logger *zap.Logger) *Persistence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persistence{repo: repo, actor: actor, logger: logger}
}

// Load reads periods for the master grid and module tags for the detail grid
func (p *Persistence) Load(ctx context.Context, target grid.Target, query grid.Query) (grid.LoadResult, error) {
	switch target {
	case grid.TargetMaster:
		return p.loadPeriods(ctx, query)
	case grid.TargetDetail:
		return p.loadTags(ctx, query)
	}
	return grid.LoadResult{}, fmt.Errorf("closing: unknown target %q", target)
}

func (p *Persistence) loadPeriods(ctx context.Context, query grid.Query) (grid.LoadResult, error) {
	filter := closing.PeriodFilter{Year: query[QueryYear], Status: closing.Status(query[QueryStatus])}
	if filter.Year != "" && !yearPattern.MatchString(filter.Year) {
		return grid.LoadResult{Success: false, Message: fmt.Sprintf("Invalid year %q", filter.Year)}, nil
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return grid.LoadResult{Success: false, Message: fmt.Sprintf("Invalid status %q", filter.Status)}, nil
	}

	periods, err := p.repo.FindPeriods(ctx, filter)
	if err != nil {
		return loadFailure(err)
	}
	rows := make([]grid.Values, 0, len(periods))
	for i := range periods {
		rows = append(rows, periods[i].Values())
	}
	return grid.LoadResult{Success: true, Rows: rows}, nil
}

func (p *Persistence) loadTags(ctx context.Context, query grid.Query) (grid.LoadResult, error) {
	period := query[closing.FieldPeriod]
	if period == "" {
		return grid.LoadResult{Success: false, Message: "Period is required"}, nil
	}
	tags, err := p.repo.FindModuleTags(ctx, period)
	if err != nil {
		return loadFailure(err)
	}
	rows := make([]grid.Values, 0, len(tags))
	for i := range tags {
		rows = append(rows, tags[i].Values())
	}
	return grid.LoadResult{Success: true, Rows: rows}, nil
}

// Save writes the committed rows in one transaction. Business rule
// violations come back as an unsuccessful result; anything else is an error.
func (p *Persistence) Save(ctx context.Context, master, detail []*grid.Row) (grid.SaveResult, error) {
	cs := closing.BuildChangeSet(p.actor, master, detail)
	if cs.IsEmpty() {
		return grid.SaveResult{Success: true}, nil
	}
	if err := p.repo.SaveChanges(ctx, cs); err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			p.logger.Info("closing changes refused", zap.String("code", de.Code), zap.String("message", de.Message))
			return grid.SaveResult{Success: false, Message: de.Message}, nil
		}
		p.logger.Error("failed to save closing changes", zap.Error(err))
		return grid.SaveResult{}, err
	}
	return grid.SaveResult{
		Success: true,
		Message: fmt.Sprintf("Saved %d period(s) and %d module tag(s)", len(cs.Periods), len(cs.Tags)),
	}, nil
}

func loadFailure(err error) (grid.LoadResult, error) {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return grid.LoadResult{Success: false, Message: de.Message}, nil
	}
	return grid.LoadResult{}, err
}
