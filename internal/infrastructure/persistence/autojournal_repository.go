package persistence

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"gorm.io/gorm"

	"github.com/erp/gridsync/internal/domain/autojournal"
	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/domain/shared"
	"github.com/erp/gridsync/internal/infrastructure/persistence/models"
	"github.com/erp/gridsync/internal/infrastructure/telemetry"
)

var (
	ErrEntryExists   = shared.NewDomainError("ALREADY_EXISTS", "Automatic journal entry already exists")
	ErrEntryNotFound = shared.NewDomainError("NOT_FOUND", "Automatic journal entry not found")
	ErrLineExists    = shared.NewDomainError("ALREADY_EXISTS", "Journal line already exists")
	ErrLineNotFound  = shared.NewDomainError("NOT_FOUND", "Journal line not found")
)

// GormAutoJournalRepository implements autojournal.Repository using GORM
type GormAutoJournalRepository struct {
	db *gorm.DB
}

// NewGormAutoJournalRepository creates a new GormAutoJournalRepository
func NewGormAutoJournalRepository(db *gorm.DB) *GormAutoJournalRepository {
	return &GormAutoJournalRepository{db: db}
}

// FindMasters lists entries ordered by office, module and item
func (r *GormAutoJournalRepository) FindMasters(ctx context.Context, filter autojournal.MasterFilter) ([]autojournal.Master, error) {
	query := r.db.WithContext(ctx).Model(&models.AutoJournalMasterModel{})
	if filter.Office != "" {
		query = query.Where("office = ?", filter.Office)
	}
	if filter.Module != "" {
		query = query.Where("module = ?", filter.Module)
	}

	var rows []models.AutoJournalMasterModel
	if err := query.Order("office, module, item").Find(&rows).Error; err != nil {
		return nil, err
	}
	masters := make([]autojournal.Master, 0, len(rows))
	for i := range rows {
		masters = append(masters, rows[i].ToDomain())
	}
	return masters, nil
}

// FindLines lists the lines of one entry ordered by line number
func (r *GormAutoJournalRepository) FindLines(ctx context.Context, office, module, item string) ([]autojournal.Line, error) {
	rows, err := findLines(r.db.WithContext(ctx), office, module, item)
	if err != nil {
		return nil, err
	}
	lines := make([]autojournal.Line, 0, len(rows))
	for i := range rows {
		lines = append(lines, rows[i].ToDomain())
	}
	return lines, nil
}

func findLines(db *gorm.DB, office, module, item string) ([]models.AutoJournalLineModel, error) {
	var rows []models.AutoJournalLineModel
	err := db.Where("office = ? AND module = ? AND item = ?", office, module, item).
		Order("line_no").
		Find(&rows).Error
	return rows, err
}

type entryKey struct {
	office, module, item string
}

func (k entryKey) String() string {
	return k.office + grid.KeySeparator + k.module + grid.KeySeparator + k.item
}

// SaveChanges writes masters, then lines, in one transaction. Every entry
// the change set touches is re-read afterwards and must still balance.
func (r *GormAutoJournalRepository) SaveChanges(ctx context.Context, changes autojournal.ChangeSet) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "autojournal.save_changes",
		telemetry.SpanAttrRows, len(changes.Masters)+len(changes.Lines))
	defer telemetry.EndSpan(span, &err)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var touched []entryKey
		touch := func(k entryKey) {
			if !slices.Contains(touched, k) {
				touched = append(touched, k)
			}
		}

		for _, c := range changes.Masters {
			m := c.Master
			m.UpdatedBy = changes.Actor
			if err := applyMaster(tx, c.Op, m); err != nil {
				return err
			}
			if c.Op != grid.LifecycleDeleted {
				touch(entryKey{m.Office, m.Module, m.Item})
			}
		}
		for _, c := range changes.Lines {
			if err := applyLine(tx, c.Op, c.Line); err != nil {
				return err
			}
			touch(entryKey{c.Line.Office, c.Line.Module, c.Line.Item})
		}

		for _, k := range touched {
			rows, err := findLines(tx, k.office, k.module, k.item)
			if err != nil {
				return err
			}
			lines := make([]autojournal.Line, 0, len(rows))
			for i := range rows {
				lines = append(lines, rows[i].ToDomain())
			}
			if err := autojournal.ValidateLines(lines); err != nil {
				var de *shared.DomainError
				if errors.As(err, &de) {
					return shared.NewDomainError(de.Code, fmt.Sprintf("Entry %s: %s", k, de.Message))
				}
				return err
			}
		}
		return nil
	})
}

func applyMaster(tx *gorm.DB, op grid.Lifecycle, m autojournal.Master) error {
	where := tx.Where("office = ? AND module = ? AND item = ?", m.Office, m.Module, m.Item)

	switch op {
	case grid.LifecycleCreated:
		var count int64
		if err := where.Model(&models.AutoJournalMasterModel{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return shared.NewDomainError(ErrEntryExists.Code, fmt.Sprintf("Entry %s already exists", m.Key()))
		}
		return tx.Create(models.AutoJournalMasterModelFromDomain(m)).Error
	case grid.LifecycleUpdated:
		result := where.Model(&models.AutoJournalMasterModel{}).Updates(map[string]any{
			"description": m.Description,
			"use_yn":      m.UseYn,
			"updated_by":  m.UpdatedBy,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError(ErrEntryNotFound.Code, fmt.Sprintf("Entry %s no longer exists", m.Key()))
		}
		return nil
	case grid.LifecycleDeleted:
		if err := tx.Where("office = ? AND module = ? AND item = ?", m.Office, m.Module, m.Item).
			Delete(&models.AutoJournalLineModel{}).Error; err != nil {
			return err
		}
		return where.Delete(&models.AutoJournalMasterModel{}).Error
	}
	return nil
}

func applyLine(tx *gorm.DB, op grid.Lifecycle, l autojournal.Line) error {
	where := tx.Where("office = ? AND module = ? AND item = ? AND line_no = ?", l.Office, l.Module, l.Item, l.LineNo)

	switch op {
	case grid.LifecycleCreated:
		var count int64
		if err := tx.Model(&models.AutoJournalMasterModel{}).
			Where("office = ? AND module = ? AND item = ?", l.Office, l.Module, l.Item).
			Count(&count).Error; err != nil {
			return err
		}
		k := entryKey{l.Office, l.Module, l.Item}
		if count == 0 {
			return shared.NewDomainError(ErrEntryNotFound.Code, fmt.Sprintf("Entry %s not found", k))
		}
		if err := where.Model(&models.AutoJournalLineModel{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return shared.NewDomainError(ErrLineExists.Code, fmt.Sprintf("Line %d of entry %s already exists", l.LineNo, k))
		}
		return tx.Create(models.AutoJournalLineModelFromDomain(l)).Error
	case grid.LifecycleUpdated:
		m := models.AutoJournalLineModelFromDomain(l)
		result := where.Model(&models.AutoJournalLineModel{}).Updates(map[string]any{
			"dc_type":      m.DCType,
			"account_code": m.AccountCode,
			"rate":         m.Rate,
			"use_yn":       m.UseYn,
			"remark":       m.Remark,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError(ErrLineNotFound.Code,
				fmt.Sprintf("Line %d of entry %s no longer exists", l.LineNo, entryKey{l.Office, l.Module, l.Item}))
		}
		return nil
	case grid.LifecycleDeleted:
		return where.Delete(&models.AutoJournalLineModel{}).Error
	}
	return nil
}

var _ autojournal.Repository = (*GormAutoJournalRepository)(nil)
