package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/Kaminari/models"
	"github.com/amirphl/Kaminari/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriberRepositoryImpl implements SubscriberRepository
type SubscriberRepositoryImpl struct {
	*BaseRepository[models.Subscriber, models.SubscriberFilter]
}

// NewSubscriberRepository creates a new subscriber repository
func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &SubscriberRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Subscriber, models.SubscriberFilter](db),
	}
}

// Upsert inserts the subscriber or, when the endpoint is already registered,
// rewrites its keys, user agent and updated_at in place. created_at is kept.
func (r *SubscriberRepositoryImpl) Upsert(ctx context.Context, sub *models.Subscriber) error {
	sub.UpdatedAt = utils.UTCNow()
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "endpoint"}},
				DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "user_agent", "updated_at"}),
			},
			clause.Returning{},
		).Create(sub).Error
		if err != nil {
			return fmt.Errorf("failed to upsert subscriber: %w", err)
		}
		return nil
	})
}

// ListAll returns a snapshot of every subscriber
func (r *SubscriberRepositoryImpl) ListAll(ctx context.Context) ([]*models.Subscriber, error) {
	return r.ByFilter(ctx, models.SubscriberFilter{}, "id ASC", 0, 0)
}

// ListCreatedBefore returns subscribers registered at or before cutoff
func (r *SubscriberRepositoryImpl) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Subscriber, error) {
	return r.ByFilter(ctx, models.SubscriberFilter{CreatedBefore: &cutoff}, "id ASC", 0, 0)
}

// DeleteByEndpoints removes all subscribers whose endpoint is listed, in one statement
func (r *SubscriberRepositoryImpl) DeleteByEndpoints(ctx context.Context, endpoints []string) (int64, error) {
	if len(endpoints) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Where("endpoint = ANY(?)", pq.Array(endpoints)).Delete(&models.Subscriber{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete subscribers by endpoint: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

func (r *SubscriberRepositoryImpl) applyFilter(db *gorm.DB, f models.SubscriberFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Endpoint != nil {
		db = db.Where("endpoint = ?", *f.Endpoint)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *f.CreatedBefore)
	}
	return db
}

// ByFilter retrieves subscribers based on filter criteria
func (r *SubscriberRepositoryImpl) ByFilter(ctx context.Context, filter models.SubscriberFilter, orderBy string, limit, offset int) ([]*models.Subscriber, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Subscriber{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Subscriber
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return rows, nil
}

// Count returns the number of subscribers matching the filter
func (r *SubscriberRepositoryImpl) Count(ctx context.Context, filter models.SubscriberFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.Subscriber{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count subscribers: %w", err)
	}
	return count, nil
}

// Exists checks if any subscriber matches the filter
func (r *SubscriberRepositoryImpl) Exists(ctx context.Context, filter models.SubscriberFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
