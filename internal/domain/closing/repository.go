package closing

import (
	"context"

	"github.com/erp/gridsync/internal/domain/grid"
)

// PeriodFilter narrows the period query
type PeriodFilter struct {
	Year   string // YYYY prefix, empty for all
	Status Status // empty for all
}

// PeriodChange is one changed period with its lifecycle intent
type PeriodChange struct {
	Op     grid.Lifecycle
	Period Period
}

// ModuleTagChange is one changed module tag with its lifecycle intent
type ModuleTagChange struct {
	Op  grid.Lifecycle
	Tag ModuleTag
}

// ChangeSet is everything one commit writes
type ChangeSet struct {
	Actor   string
	Periods []PeriodChange
	Tags    []ModuleTagChange
}

// IsEmpty reports whether the change set writes nothing
func (c ChangeSet) IsEmpty() bool {
	return len(c.Periods) == 0 && len(c.Tags) == 0
}

// Repository persists periods and module tags
type Repository interface {
	FindPeriods(ctx context.Context, filter PeriodFilter) ([]Period, error)
	FindPeriod(ctx context.Context, period string) (*Period, error)
	FindModuleTags(ctx context.Context, period string) ([]ModuleTag, error)
	// SaveChanges writes the change set atomically. Status changes are
	// re-checked against the stored period before they are written.
	SaveChanges(ctx context.Context, changes ChangeSet) error
}

// BuildChangeSet converts committed grid rows into a change set
func BuildChangeSet(actor string, periods, tags []*grid.Row) ChangeSet {
	cs := ChangeSet{Actor: actor}
	for _, r := range periods {
		cs.Periods = append(cs.Periods, PeriodChange{Op: r.Lifecycle, Period: PeriodFromRow(r)})
	}
	for _, r := range tags {
		cs.Tags = append(cs.Tags, ModuleTagChange{Op: r.Lifecycle, Tag: ModuleTagFromRow(r)})
	}
	return cs
}
