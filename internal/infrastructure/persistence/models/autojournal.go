package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/gridsync/internal/domain/autojournal"
)

// AutoJournalMasterModel is the persistence model for an automatic journal
// entry definition, keyed by office, module and item
type AutoJournalMasterModel struct {
	Office      string    `gorm:"type:varchar(10);primaryKey"`
	Module      string    `gorm:"type:varchar(10);primaryKey"`
	Item        string    `gorm:"type:varchar(20);primaryKey"`
	Description string    `gorm:"type:varchar(100)"`
	UseYn       string    `gorm:"type:varchar(1);not null;default:'Y'"`
	UpdatedBy   string    `gorm:"type:varchar(50)"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AutoJournalMasterModel) TableName() string {
	return "auto_journal_masters"
}

// ToDomain converts the model to a domain master
func (m *AutoJournalMasterModel) ToDomain() autojournal.Master {
	return autojournal.Master{
		Office:      m.Office,
		Module:      m.Module,
		Item:        m.Item,
		Description: m.Description,
		UseYn:       m.UseYn,
		UpdatedBy:   m.UpdatedBy,
	}
}

// AutoJournalMasterModelFromDomain creates a model from a domain master
func AutoJournalMasterModelFromDomain(m autojournal.Master) *AutoJournalMasterModel {
	return &AutoJournalMasterModel{
		Office:      m.Office,
		Module:      m.Module,
		Item:        m.Item,
		Description: m.Description,
		UseYn:       m.UseYn,
		UpdatedBy:   m.UpdatedBy,
	}
}

// AutoJournalLineModel is one debit or credit line of an entry
type AutoJournalLineModel struct {
	Office      string          `gorm:"type:varchar(10);primaryKey"`
	Module      string          `gorm:"type:varchar(10);primaryKey"`
	Item        string          `gorm:"type:varchar(20);primaryKey"`
	LineNo      int64           `gorm:"primaryKey;autoIncrement:false"`
	DCType      string          `gorm:"column:dc_type;type:varchar(1);not null"`
	AccountCode string          `gorm:"type:varchar(20);not null"`
	Rate        decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	UseYn       string          `gorm:"type:varchar(1);not null;default:'Y'"`
	Remark      string          `gorm:"type:varchar(200)"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AutoJournalLineModel) TableName() string {
	return "auto_journal_lines"
}

// ToDomain converts the model to a domain line
func (m *AutoJournalLineModel) ToDomain() autojournal.Line {
	return autojournal.Line{
		Office:      m.Office,
		Module:      m.Module,
		Item:        m.Item,
		LineNo:      m.LineNo,
		DCType:      m.DCType,
		AccountCode: m.AccountCode,
		Rate:        m.Rate,
		UseYn:       m.UseYn,
		Remark:      m.Remark,
	}
}

// AutoJournalLineModelFromDomain creates a model from a domain line
func AutoJournalLineModelFromDomain(l autojournal.Line) *AutoJournalLineModel {
	useYn := l.UseYn
	if useYn == "" {
		useYn = "Y"
	}
	return &AutoJournalLineModel{
		Office:      l.Office,
		Module:      l.Module,
		Item:        l.Item,
		LineNo:      l.LineNo,
		DCType:      l.DCType,
		AccountCode: l.AccountCode,
		Rate:        l.Rate,
		UseYn:       useYn,
		Remark:      l.Remark,
	}
}
