// Package closing models accounting period closing: a period row carries the
// period-wide open/close status and every ledger module of the period carries
// its own close tag, which follows the period.
package closing

import (
	"fmt"
	"time"

	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/domain/shared"
)

// Status is the posting status of a period or module
type Status string

const (
	StatusOpen  Status = "Open"
	StatusClose Status = "Close"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusClose
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// Flag values for close tags and the profit/loss closing flag
const (
	FlagYes = "Y"
	FlagNo  = "N"
)

// TagFor returns the close tag that matches a status
func TagFor(s Status) string {
	if s == StatusClose {
		return FlagYes
	}
	return FlagNo
}

// Field names of the period grid
const (
	FieldPeriod            = "period"
	FieldStatus            = "status"
	FieldCloseTag          = "closeTag"
	FieldUnpostedCount     = "unpostedCount"
	FieldProfitLossClosing = "profitLossClosing"
	FieldRemark            = "remark"
	FieldClosedBy          = "closedBy"
	FieldClosedAt          = "closedAt"
)

// Field names of the module tag grid
const (
	FieldModule     = "module"
	FieldModuleName = "moduleName"
	FieldUpdatedBy  = "updatedBy"
)

// Rejection reasons
const (
	ReasonUnpostedTransactions = "UNPOSTED_TRANSACTIONS"
	ReasonProfitLossClosed     = "PROFIT_LOSS_CLOSED"
)

var (
	ErrUnpostedTransactions = shared.NewDomainError(ReasonUnpostedTransactions, "Period has unposted transactions")
	ErrProfitLossClosed     = shared.NewDomainError(ReasonProfitLossClosed, "Profit and loss of the period is already closed")
	ErrInvalidStatus        = shared.NewDomainError("INVALID_STATUS", "Status must be Open or Close")
)

// Period is one accounting period (YYYYMM)
type Period struct {
	Period            string
	Status            Status
	CloseTag          string
	UnpostedCount     int64
	ProfitLossClosing string
	Remark            string
	ClosedBy          string
	ClosedAt          *time.Time
}

// IsClosed returns true if the period is closed
func (p *Period) IsClosed() bool {
	return p.Status == StatusClose
}

// ProfitLossClosed returns true if profit and loss is closed for the period
func (p *Period) ProfitLossClosed() bool {
	return p.ProfitLossClosing == FlagYes
}

// CheckTransition validates a status change against the period's current
// persisted state
func (p *Period) CheckTransition(to Status) error {
	if !to.IsValid() {
		return ErrInvalidStatus
	}
	switch {
	case p.Status == StatusOpen && to == StatusClose && p.UnpostedCount != 0:
		return shared.NewDomainError(ReasonUnpostedTransactions, unpostedMessage(p.Period, p.UnpostedCount))
	case p.Status == StatusClose && to == StatusOpen && p.ProfitLossClosed():
		return shared.NewDomainError(ReasonProfitLossClosed, profitLossMessage(p.Period))
	}
	return nil
}

// Close marks the period closed by actor
func (p *Period) Close(actor string, at time.Time) error {
	if err := p.CheckTransition(StatusClose); err != nil {
		return err
	}
	p.Status = StatusClose
	p.CloseTag = FlagYes
	p.ClosedBy = actor
	p.ClosedAt = &at
	return nil
}

// Reopen marks the period open again
func (p *Period) Reopen() error {
	if err := p.CheckTransition(StatusOpen); err != nil {
		return err
	}
	p.Status = StatusOpen
	p.CloseTag = FlagNo
	p.ClosedBy = ""
	p.ClosedAt = nil
	return nil
}

// Values converts the period into grid values
func (p *Period) Values() grid.Values {
	closedAt := ""
	if p.ClosedAt != nil {
		closedAt = p.ClosedAt.UTC().Format(time.RFC3339)
	}
	return grid.Values{
		FieldPeriod:            p.Period,
		FieldStatus:            p.Status.String(),
		FieldCloseTag:          p.CloseTag,
		FieldUnpostedCount:     p.UnpostedCount,
		FieldProfitLossClosing: p.ProfitLossClosing,
		FieldRemark:            p.Remark,
		FieldClosedBy:          p.ClosedBy,
		FieldClosedAt:          closedAt,
	}
}

// PeriodFromRow reads a period from a grid row
func PeriodFromRow(r *grid.Row) Period {
	p := Period{
		Period:            r.String(FieldPeriod),
		Status:            Status(r.String(FieldStatus)),
		CloseTag:          r.String(FieldCloseTag),
		UnpostedCount:     r.Int(FieldUnpostedCount),
		ProfitLossClosing: r.String(FieldProfitLossClosing),
		Remark:            r.String(FieldRemark),
		ClosedBy:          r.String(FieldClosedBy),
	}
	if s := r.String(FieldClosedAt); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			p.ClosedAt = &t
		}
	}
	return p
}

// ModuleTag is the close tag of one ledger module within a period
type ModuleTag struct {
	Period     string
	Module     string
	ModuleName string
	Status     Status
	CloseTag   string
	UpdatedBy  string
}

// Values converts the module tag into grid values
func (m *ModuleTag) Values() grid.Values {
	return grid.Values{
		FieldPeriod:     m.Period,
		FieldModule:     m.Module,
		FieldModuleName: m.ModuleName,
		FieldStatus:     m.Status.String(),
		FieldCloseTag:   m.CloseTag,
		FieldUpdatedBy:  m.UpdatedBy,
	}
}

// ModuleTagFromRow reads a module tag from a grid row
func ModuleTagFromRow(r *grid.Row) ModuleTag {
	return ModuleTag{
		Period:     r.String(FieldPeriod),
		Module:     r.String(FieldModule),
		ModuleName: r.String(FieldModuleName),
		Status:     Status(r.String(FieldStatus)),
		CloseTag:   r.String(FieldCloseTag),
		UpdatedBy:  r.String(FieldUpdatedBy),
	}
}

func unpostedMessage(period string, n int64) string {
	return fmt.Sprintf("Period %s has %d unposted transaction(s) and cannot be closed", period, n)
}

func profitLossMessage(period string) string {
	return fmt.Sprintf("Profit and loss closing of period %s is done. Cancel the profit and loss closing before reopening the period", period)
}
