// Package autojournal models automatic-journal setup: a master entry per
// office, module and item, and the debit/credit lines the journal is split
// into.
package autojournal

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/domain/shared"
)

// Grid names
const (
	MasterGrid = "masters"
	LineGrid   = "lines"
)

// Field names
const (
	FieldOffice      = "office"
	FieldModule      = "module"
	FieldItem        = "item"
	FieldDescription = "description"
	FieldUseYn       = "useYn"
	FieldLineNo      = "lineNo"
	FieldDCType      = "dcType"
	FieldAccountCode = "accountCode"
	FieldRate        = "rate"
	FieldRemark      = "remark"
	FieldUpdatedBy   = "updatedBy"
)

// Debit/credit markers
const (
	Debit  = "D"
	Credit = "C"
)

// FullRate is the total each side of an active entry must add up to
var FullRate = decimal.NewFromInt(100)

var ErrUnbalancedLines = shared.NewDomainError("UNBALANCED_LINES", "Debit and credit rates must each add up to 100")

// Master is one automatic journal entry definition
type Master struct {
	Office      string
	Module      string
	Item        string
	Description string
	UseYn       string
	UpdatedBy   string
}

// Key returns the natural key office|module|item
func (m *Master) Key() string {
	return m.Office + grid.KeySeparator + m.Module + grid.KeySeparator + m.Item
}

// Active reports whether the entry is in use
func (m *Master) Active() bool {
	return m.UseYn == "Y"
}

// Values converts the master into grid values
func (m *Master) Values() grid.Values {
	return grid.Values{
		FieldOffice:      m.Office,
		FieldModule:      m.Module,
		FieldItem:        m.Item,
		FieldDescription: m.Description,
		FieldUseYn:       m.UseYn,
		FieldUpdatedBy:   m.UpdatedBy,
	}
}

// MasterFromRow reads a master from a grid row
func MasterFromRow(r *grid.Row) Master {
	return Master{
		Office:      r.String(FieldOffice),
		Module:      r.String(FieldModule),
		Item:        r.String(FieldItem),
		Description: r.String(FieldDescription),
		UseYn:       r.String(FieldUseYn),
		UpdatedBy:   r.String(FieldUpdatedBy),
	}
}

// Line is one debit or credit line of an entry
type Line struct {
	Office      string
	Module      string
	Item        string
	LineNo      int64
	DCType      string
	AccountCode string
	Rate        decimal.Decimal
	UseYn       string
	Remark      string
}

// Values converts the line into grid values
func (l *Line) Values() grid.Values {
	return grid.Values{
		FieldOffice:      l.Office,
		FieldModule:      l.Module,
		FieldItem:        l.Item,
		FieldLineNo:      l.LineNo,
		FieldDCType:      l.DCType,
		FieldAccountCode: l.AccountCode,
		FieldRate:        l.Rate,
		FieldUseYn:       l.UseYn,
		FieldRemark:      l.Remark,
	}
}

// LineFromRow reads a line from a grid row
func LineFromRow(r *grid.Row) Line {
	return Line{
		Office:      r.String(FieldOffice),
		Module:      r.String(FieldModule),
		Item:        r.String(FieldItem),
		LineNo:      r.Int(FieldLineNo),
		DCType:      r.String(FieldDCType),
		AccountCode: r.String(FieldAccountCode),
		Rate:        r.Decimal(FieldRate),
		UseYn:       r.String(FieldUseYn),
		Remark:      r.String(FieldRemark),
	}
}

// ValidateLines checks that the active debit lines and the active credit
// lines each add up to FullRate. An entry without active lines is valid.
func ValidateLines(lines []Line) error {
	debit, credit := decimal.Zero, decimal.Zero
	active := 0
	for _, l := range lines {
		if l.UseYn != "Y" {
			continue
		}
		active++
		switch l.DCType {
		case Debit:
			debit = debit.Add(l.Rate)
		case Credit:
			credit = credit.Add(l.Rate)
		}
	}
	if active == 0 {
		return nil
	}
	if !debit.Equal(FullRate) || !credit.Equal(FullRate) {
		return shared.NewDomainError(ErrUnbalancedLines.Code,
			fmt.Sprintf("debit rates add up to %s and credit rates to %s; each must be %s",
				debit.String(), credit.String(), FullRate.String()))
	}
	return nil
}

// MasterSchema describes the master grid
func MasterSchema() *grid.Schema {
	return grid.NewSchema(MasterGrid, []string{FieldOffice, FieldModule, FieldItem},
		grid.Field{Name: FieldOffice, Kind: grid.KindString, Tracked: true, Required: true, Rules: "max=10"},
		grid.Field{Name: FieldModule, Kind: grid.KindString, Tracked: true, Required: true, Rules: "max=10"},
		grid.Field{Name: FieldItem, Kind: grid.KindString, Tracked: true, Required: true, Rules: "max=20"},
		grid.Field{Name: FieldDescription, Kind: grid.KindString, Tracked: true, Rules: "max=100"},
		grid.Field{Name: FieldUseYn, Kind: grid.KindString, Tracked: true, Required: true, Rules: "oneof=Y N"},
		grid.Field{Name: FieldUpdatedBy, Kind: grid.KindString, ReadOnly: true},
	)
}

// LineSchema describes the line grid
func LineSchema() *grid.Schema {
	return grid.NewSchema(LineGrid, []string{FieldOffice, FieldModule, FieldItem, FieldLineNo},
		grid.Field{Name: FieldOffice, Kind: grid.KindString, Tracked: true, Required: true, ReadOnly: true},
		grid.Field{Name: FieldModule, Kind: grid.KindString, Tracked: true, Required: true, ReadOnly: true},
		grid.Field{Name: FieldItem, Kind: grid.KindString, Tracked: true, Required: true, ReadOnly: true},
		grid.Field{Name: FieldLineNo, Kind: grid.KindInt, Tracked: true, Required: true, Rules: "min=1"},
		grid.Field{Name: FieldDCType, Kind: grid.KindString, Tracked: true, Required: true, Rules: "oneof=D C"},
		grid.Field{Name: FieldAccountCode, Kind: grid.KindString, Tracked: true, Required: true, Rules: "max=20"},
		grid.Field{Name: FieldRate, Kind: grid.KindDecimal, Tracked: true, Rules: "gte=0,lte=100"},
		grid.Field{Name: FieldUseYn, Kind: grid.KindString, Tracked: true, Rules: "oneof=Y N"},
		grid.Field{Name: FieldRemark, Kind: grid.KindString, Tracked: true, Rules: "max=200"},
	)
}

// RegisterGuards installs the entry activation rule: deactivating an entry
// deactivates every loaded line of it.
func RegisterGuards(e *grid.Engine) {
	e.Register(FieldUseYn, grid.Guard{
		Name: "deactivate-lines",
		When: func(req grid.TransitionRequest, _ grid.TransitionContext) bool {
			return req.Previous == "Y" && req.Proposed == "N"
		},
		Then: func(req grid.TransitionRequest, ctx grid.TransitionContext) grid.Decision {
			d := grid.Accept()
			if ctx.DependentLoadedFor(req.Row.ID) {
				d = d.WithCascade(grid.NewCascade(grid.Values{FieldUseYn: "N"}))
			}
			return d
		},
	})
}

// NewEngine returns an engine with the auto-journal rules installed
func NewEngine() *grid.Engine {
	e := grid.NewEngine()
	RegisterGuards(e)
	return e
}

// MasterChange is one changed master with its lifecycle intent
type MasterChange struct {
	Op     grid.Lifecycle
	Master Master
}

// LineChange is one changed line with its lifecycle intent
type LineChange struct {
	Op   grid.Lifecycle
	Line Line
}

// ChangeSet is everything one commit writes
type ChangeSet struct {
	Actor   string
	Masters []MasterChange
	Lines   []LineChange
}

// BuildChangeSet converts committed grid rows into a change set
func BuildChangeSet(actor string, masters, lines []*grid.Row) ChangeSet {
	cs := ChangeSet{Actor: actor}
	for _, r := range masters {
		cs.Masters = append(cs.Masters, MasterChange{Op: r.Lifecycle, Master: MasterFromRow(r)})
	}
	for _, r := range lines {
		cs.Lines = append(cs.Lines, LineChange{Op: r.Lifecycle, Line: LineFromRow(r)})
	}
	return cs
}

// MasterFilter narrows the master query
type MasterFilter struct {
	Office string
	Module string
}

// Repository persists automatic journal setup
type Repository interface {
	FindMasters(ctx context.Context, filter MasterFilter) ([]Master, error)
	FindLines(ctx context.Context, office, module, item string) ([]Line, error)
	// SaveChanges writes the change set atomically and rejects entries whose
	// active lines do not balance
	SaveChanges(ctx context.Context, changes ChangeSet) error
}
