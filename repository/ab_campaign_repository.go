package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/Kaminari/models"
	"gorm.io/gorm"
)

// ABCampaignRepositoryImpl implements ABCampaignRepository
type ABCampaignRepositoryImpl struct {
	*BaseRepository[models.ABCampaign, models.ABCampaignFilter]
}

// NewABCampaignRepository creates a new A/B campaign repository
func NewABCampaignRepository(db *gorm.DB) ABCampaignRepository {
	return &ABCampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ABCampaign, models.ABCampaignFilter](db),
	}
}

// ByID retrieves a campaign by its ID
func (r *ABCampaignRepositoryImpl) ByID(ctx context.Context, id uint) (*models.ABCampaign, error) {
	db := r.getDB(ctx)
	var row models.ABCampaign
	if err := db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find ab campaign %d: %w", id, err)
	}
	return &row, nil
}

// ClaimForSend stamps sent_at on an unclaimed draft. Exactly one caller wins the claim;
// everyone else gets ErrCampaignAlreadyClaimed and must not deliver.
func (r *ABCampaignRepositoryImpl) ClaimForSend(ctx context.Context, id uint, at time.Time) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.ABCampaign{}).
			Where("id = ? AND status = ? AND sent_at IS NULL", id, models.ABCampaignStatusDraft).
			Update("sent_at", at)
		if res.Error != nil {
			return fmt.Errorf("failed to claim ab campaign %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCampaignAlreadyClaimed
		}
		return nil
	})
}

// MarkCompleted moves a claimed draft campaign to completed together with its sent counts.
// sent_at keeps the claim time.
func (r *ABCampaignRepositoryImpl) MarkCompleted(ctx context.Context, id uint, variantASent, variantBSent int, at time.Time) error {
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.ABCampaign{}).
			Where("id = ? AND status = ?", id, models.ABCampaignStatusDraft).
			Updates(map[string]any{
				"status":         models.ABCampaignStatusCompleted,
				"variant_a_sent": variantASent,
				"variant_b_sent": variantBSent,
				"sent_at":        gorm.Expr("COALESCE(sent_at, ?)", at),
				"completed_at":   at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to complete ab campaign %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCampaignNotDraft
		}
		return nil
	})
}

// Delete removes the campaign row; reports whether a row existed
func (r *ABCampaignRepositoryImpl) Delete(ctx context.Context, id uint) (bool, error) {
	var found bool
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Delete(&models.ABCampaign{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete ab campaign %d: %w", id, res.Error)
		}
		found = res.RowsAffected > 0
		return nil
	})
	return found, err
}

func (r *ABCampaignRepositoryImpl) applyFilter(db *gorm.DB, f models.ABCampaignFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

// ByFilter retrieves campaigns based on filter criteria
func (r *ABCampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.ABCampaignFilter, orderBy string, limit, offset int) ([]*models.ABCampaign, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ABCampaign{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ABCampaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list ab campaigns: %w", err)
	}
	return rows, nil
}

// Count returns the number of campaigns matching the filter
func (r *ABCampaignRepositoryImpl) Count(ctx context.Context, filter models.ABCampaignFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.ABCampaign{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count ab campaigns: %w", err)
	}
	return count, nil
}

// Exists checks if any campaign matches the filter
func (r *ABCampaignRepositoryImpl) Exists(ctx context.Context, filter models.ABCampaignFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
