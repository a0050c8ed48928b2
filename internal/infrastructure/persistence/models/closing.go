package models

import (
	"time"

	"github.com/erp/gridsync/internal/domain/closing"
)

// ClosingPeriodModel is the persistence model for an accounting period.
// unposted_count and profit_loss_closing are owned by posting; the grid
// only reads them.
type ClosingPeriodModel struct {
	Period            string `gorm:"type:varchar(6);primaryKey"`
	Status            string `gorm:"type:varchar(5);not null;default:'Open';index"`
	CloseTag          string `gorm:"type:varchar(1);not null;default:'N'"`
	UnpostedCount     int64  `gorm:"not null;default:0"`
	ProfitLossClosing string `gorm:"type:varchar(1);not null;default:'N'"`
	Remark            string `gorm:"type:varchar(200)"`
	ClosedBy          string `gorm:"type:varchar(50)"`
	ClosedAt          *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ClosingPeriodModel) TableName() string {
	return "closing_periods"
}

// ToDomain converts the model to a domain period
func (m *ClosingPeriodModel) ToDomain() closing.Period {
	return closing.Period{
		Period:            m.Period,
		Status:            closing.Status(m.Status),
		CloseTag:          m.CloseTag,
		UnpostedCount:     m.UnpostedCount,
		ProfitLossClosing: m.ProfitLossClosing,
		Remark:            m.Remark,
		ClosedBy:          m.ClosedBy,
		ClosedAt:          m.ClosedAt,
	}
}

// ClosingPeriodModelFromDomain creates a model from a domain period
func ClosingPeriodModelFromDomain(p closing.Period) *ClosingPeriodModel {
	closeTag := p.CloseTag
	if closeTag == "" {
		closeTag = closing.TagFor(p.Status)
	}
	profitLoss := p.ProfitLossClosing
	if profitLoss == "" {
		profitLoss = closing.FlagNo
	}
	return &ClosingPeriodModel{
		Period:            p.Period,
		Status:            p.Status.String(),
		CloseTag:          closeTag,
		UnpostedCount:     p.UnpostedCount,
		ProfitLossClosing: profitLoss,
		Remark:            p.Remark,
		ClosedBy:          p.ClosedBy,
		ClosedAt:          p.ClosedAt,
	}
}

// ClosingModuleTagModel is the close tag of one ledger module in a period
type ClosingModuleTagModel struct {
	Period     string    `gorm:"type:varchar(6);primaryKey"`
	Module     string    `gorm:"type:varchar(10);primaryKey"`
	ModuleName string    `gorm:"type:varchar(50)"`
	Status     string    `gorm:"type:varchar(5);not null;default:'Open'"`
	CloseTag   string    `gorm:"type:varchar(1);not null;default:'N'"`
	UpdatedBy  string    `gorm:"type:varchar(50)"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ClosingModuleTagModel) TableName() string {
	return "closing_module_tags"
}

// ToDomain converts the model to a domain module tag
func (m *ClosingModuleTagModel) ToDomain() closing.ModuleTag {
	return closing.ModuleTag{
		Period:     m.Period,
		Module:     m.Module,
		ModuleName: m.ModuleName,
		Status:     closing.Status(m.Status),
		CloseTag:   m.CloseTag,
		UpdatedBy:  m.UpdatedBy,
	}
}

// ClosingModuleTagModelFromDomain creates a model from a domain module tag
func ClosingModuleTagModelFromDomain(t closing.ModuleTag) *ClosingModuleTagModel {
	closeTag := t.CloseTag
	if closeTag == "" {
		closeTag = closing.TagFor(t.Status)
	}
	return &ClosingModuleTagModel{
		Period:     t.Period,
		Module:     t.Module,
		ModuleName: t.ModuleName,
		Status:     t.Status.String(),
		CloseTag:   closeTag,
		UpdatedBy:  t.UpdatedBy,
	}
}
