package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/gridsync/internal/domain/closing"
	"github.com/erp/gridsync/internal/domain/grid"
	"github.com/erp/gridsync/internal/domain/shared"
	"github.com/erp/gridsync/internal/infrastructure/persistence/models"
	"github.com/erp/gridsync/internal/infrastructure/telemetry"
)

var (
	ErrPeriodExists      = shared.NewDomainError("ALREADY_EXISTS", "Period already exists")
	ErrPeriodNotFound    = shared.NewDomainError("NOT_FOUND", "Period not found")
	ErrPeriodClosed      = shared.NewDomainError("PERIOD_CLOSED", "A closed period cannot be deleted")
	ErrModuleTagExists   = shared.NewDomainError("ALREADY_EXISTS", "Module tag already exists")
	ErrModuleTagNotFound = shared.NewDomainError("NOT_FOUND", "Module tag not found")
)

// GormClosingRepository implements closing.Repository using GORM
type GormClosingRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormClosingRepository creates a new GormClosingRepository
func NewGormClosingRepository(db *gorm.DB) *GormClosingRepository {
	return &GormClosingRepository{db: db, now: time.Now}
}

// FindPeriods lists periods in ascending order
func (r *GormClosingRepository) FindPeriods(ctx context.Context, filter closing.PeriodFilter) ([]closing.Period, error) {
	query := r.db.WithContext(ctx).Model(&models.ClosingPeriodModel{})
	if filter.Year != "" {
		query = query.Where("period LIKE ?", filter.Year+"%")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status.String())
	}

	var rows []models.ClosingPeriodModel
	if err := query.Order("period").Find(&rows).Error; err != nil {
		return nil, err
	}
	periods := make([]closing.Period, 0, len(rows))
	for i := range rows {
		periods = append(periods, rows[i].ToDomain())
	}
	return periods, nil
}

// FindPeriod finds one period
func (r *GormClosingRepository) FindPeriod(ctx context.Context, period string) (*closing.Period, error) {
	var row models.ClosingPeriodModel
	if err := r.db.WithContext(ctx).First(&row, "period = ?", period).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		return nil, err
	}
	p := row.ToDomain()
	return &p, nil
}

// FindModuleTags lists the module tags of a period ordered by module
func (r *GormClosingRepository) FindModuleTags(ctx context.Context, period string) ([]closing.ModuleTag, error) {
	var rows []models.ClosingModuleTagModel
	if err := r.db.WithContext(ctx).
		Where("period = ?", period).
		Order("module").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	tags := make([]closing.ModuleTag, 0, len(rows))
	for i := range rows {
		tags = append(tags, rows[i].ToDomain())
	}
	return tags, nil
}

// SaveChanges writes periods first, then module tags, in one transaction.
// A period status change is checked against the stored row, stamps or
// clears closed_by/closed_at and moves every module tag of the period
// along; explicit tag changes in the same set are applied afterwards.
func (r *GormClosingRepository) SaveChanges(ctx context.Context, changes closing.ChangeSet) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "closing.save_changes",
		telemetry.SpanAttrRows, len(changes.Periods)+len(changes.Tags))
	defer telemetry.EndSpan(span, &err)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range changes.Periods {
			if err := r.applyPeriod(tx, changes.Actor, c); err != nil {
				return err
			}
		}
		for _, c := range changes.Tags {
			if err := r.applyTag(tx, changes.Actor, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormClosingRepository) applyPeriod(tx *gorm.DB, actor string, c closing.PeriodChange) error {
	switch c.Op {
	case grid.LifecycleCreated:
		return r.createPeriod(tx, actor, c.Period)
	case grid.LifecycleUpdated:
		return r.updatePeriod(tx, actor, c.Period)
	case grid.LifecycleDeleted:
		return r.deletePeriod(tx, c.Period.Period)
	}
	return nil
}

func (r *GormClosingRepository) createPeriod(tx *gorm.DB, actor string, p closing.Period) error {
	var count int64
	if err := tx.Model(&models.ClosingPeriodModel{}).Where("period = ?", p.Period).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return shared.NewDomainError(ErrPeriodExists.Code, fmt.Sprintf("Period %s already exists", p.Period))
	}

	// new periods start without postings
	p.UnpostedCount = 0
	p.ProfitLossClosing = closing.FlagNo
	p.ClosedBy, p.ClosedAt = "", nil
	if p.IsClosed() {
		now := r.now()
		p.ClosedBy, p.ClosedAt = actor, &now
	}
	p.CloseTag = closing.TagFor(p.Status)
	return tx.Create(models.ClosingPeriodModelFromDomain(p)).Error
}

func (r *GormClosingRepository) updatePeriod(tx *gorm.DB, actor string, p closing.Period) error {
	var stored models.ClosingPeriodModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&stored, "period = ?", p.Period).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NewDomainError(ErrPeriodNotFound.Code, fmt.Sprintf("Period %s no longer exists", p.Period))
		}
		return err
	}

	current := stored.ToDomain()
	updates := map[string]any{"remark": p.Remark}
	if p.Status != current.Status {
		switch p.Status {
		case closing.StatusClose:
			if err := current.Close(actor, r.now()); err != nil {
				return err
			}
		case closing.StatusOpen:
			if err := current.Reopen(); err != nil {
				return err
			}
		default:
			return closing.ErrInvalidStatus
		}
		updates["status"] = current.Status.String()
		updates["close_tag"] = current.CloseTag
		updates["closed_by"] = current.ClosedBy
		updates["closed_at"] = current.ClosedAt

		if err := tx.Model(&models.ClosingModuleTagModel{}).
			Where("period = ?", p.Period).
			Updates(map[string]any{
				"status":     current.Status.String(),
				"close_tag":  current.CloseTag,
				"updated_by": actor,
			}).Error; err != nil {
			return err
		}
	}

	return tx.Model(&models.ClosingPeriodModel{}).
		Where("period = ?", p.Period).
		Updates(updates).Error
}

func (r *GormClosingRepository) deletePeriod(tx *gorm.DB, period string) error {
	var stored models.ClosingPeriodModel
	if err := tx.First(&stored, "period = ?", period).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if stored.Status == closing.StatusClose.String() {
		return shared.NewDomainError(ErrPeriodClosed.Code, fmt.Sprintf("Period %s is closed and cannot be deleted", period))
	}
	if err := tx.Where("period = ?", period).Delete(&models.ClosingModuleTagModel{}).Error; err != nil {
		return err
	}
	return tx.Where("period = ?", period).Delete(&models.ClosingPeriodModel{}).Error
}

func (r *GormClosingRepository) applyTag(tx *gorm.DB, actor string, c closing.ModuleTagChange) error {
	t := c.Tag
	t.UpdatedBy = actor
	where := tx.Where("period = ? AND module = ?", t.Period, t.Module)

	switch c.Op {
	case grid.LifecycleCreated:
		var count int64
		if err := tx.Model(&models.ClosingPeriodModel{}).Where("period = ?", t.Period).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.NewDomainError(ErrPeriodNotFound.Code, fmt.Sprintf("Period %s not found", t.Period))
		}
		if err := tx.Model(&models.ClosingModuleTagModel{}).
			Where("period = ? AND module = ?", t.Period, t.Module).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return shared.NewDomainError(ErrModuleTagExists.Code,
				fmt.Sprintf("Module %s already exists in period %s", t.Module, t.Period))
		}
		return tx.Create(models.ClosingModuleTagModelFromDomain(t)).Error
	case grid.LifecycleUpdated:
		m := models.ClosingModuleTagModelFromDomain(t)
		result := where.Model(&models.ClosingModuleTagModel{}).Updates(map[string]any{
			"module_name": m.ModuleName,
			"status":      m.Status,
			"close_tag":   m.CloseTag,
			"updated_by":  m.UpdatedBy,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError(ErrModuleTagNotFound.Code,
				fmt.Sprintf("Module %s of period %s no longer exists", t.Module, t.Period))
		}
		return nil
	case grid.LifecycleDeleted:
		return where.Delete(&models.ClosingModuleTagModel{}).Error
	}
	return nil
}

var _ closing.Repository = (*GormClosingRepository)(nil)
