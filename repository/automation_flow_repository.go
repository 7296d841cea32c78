package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Kaminari/models"
	"github.com/amirphl/Kaminari/utils"
	"gorm.io/gorm"
)

// AutomationFlowRepositoryImpl implements AutomationFlowRepository
type AutomationFlowRepositoryImpl struct {
	*BaseRepository[models.AutomationFlow, models.AutomationFlowFilter]
}

// NewAutomationFlowRepository creates a new automation flow repository
func NewAutomationFlowRepository(db *gorm.DB) AutomationFlowRepository {
	return &AutomationFlowRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AutomationFlow, models.AutomationFlowFilter](db),
	}
}

// ByID retrieves a flow by its ID, deleted flows included
func (r *AutomationFlowRepositoryImpl) ByID(ctx context.Context, id uint) (*models.AutomationFlow, error) {
	db := r.getDB(ctx)
	var row models.AutomationFlow
	if err := db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find automation flow %d: %w", id, err)
	}
	return &row, nil
}

// ListActive returns every flow evaluated on a scheduler tick
func (r *AutomationFlowRepositoryImpl) ListActive(ctx context.Context) ([]*models.AutomationFlow, error) {
	status := models.AutomationFlowStatusActive
	return r.ByFilter(ctx, models.AutomationFlowFilter{Status: &status}, "id ASC", 0, 0)
}

// UpdateContent rewrites the editable fields of a live flow
func (r *AutomationFlowRepositoryImpl) UpdateContent(ctx context.Context, flow *models.AutomationFlow) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.AutomationFlow{}).
			Where("id = ? AND status <> ?", flow.ID, models.AutomationFlowStatusDeleted).
			Updates(map[string]any{
				"name":                flow.Name,
				"trigger_delay_hours": flow.TriggerDelayHours,
				"title":               flow.Title,
				"body":                flow.Body,
				"url":                 flow.URL,
				"updated_at":          utils.UTCNow(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update automation flow %d: %w", flow.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrFlowStatusConflict
		}
		return nil
	})
}

// UpdateStatus moves a flow from one status to another only if it is still in from
func (r *AutomationFlowRepositoryImpl) UpdateStatus(ctx context.Context, id uint, from, to models.AutomationFlowStatus) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.AutomationFlow{}).
			Where("id = ? AND status = ?", id, from).
			Updates(map[string]any{
				"status":     to,
				"updated_at": utils.UTCNow(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update automation flow %d status: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrFlowStatusConflict
		}
		return nil
	})
}

func (r *AutomationFlowRepositoryImpl) applyFilter(db *gorm.DB, f models.AutomationFlowFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	} else if !f.IncludeDeleted {
		db = db.Where("status <> ?", models.AutomationFlowStatusDeleted)
	}
	return db
}

// ByFilter retrieves flows based on filter criteria
func (r *AutomationFlowRepositoryImpl) ByFilter(ctx context.Context, filter models.AutomationFlowFilter, orderBy string, limit, offset int) ([]*models.AutomationFlow, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AutomationFlow{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.AutomationFlow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list automation flows: %w", err)
	}
	return rows, nil
}

// Count returns the number of flows matching the filter
func (r *AutomationFlowRepositoryImpl) Count(ctx context.Context, filter models.AutomationFlowFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.AutomationFlow{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count automation flows: %w", err)
	}
	return count, nil
}

// Exists checks if any flow matches the filter
func (r *AutomationFlowRepositoryImpl) Exists(ctx context.Context, filter models.AutomationFlowFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
