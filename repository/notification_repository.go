package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Kaminari/models"
	"gorm.io/gorm"
)

// NotificationRepositoryImpl implements NotificationRepository
type NotificationRepositoryImpl struct {
	*BaseRepository[models.NotificationRecord, models.NotificationRecordFilter]
}

// NewNotificationRepository creates a new notification history repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &NotificationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.NotificationRecord, models.NotificationRecordFilter](db),
	}
}

// ListRecent returns the newest records first
func (r *NotificationRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*models.NotificationRecord, error) {
	return r.ByFilter(ctx, models.NotificationRecordFilter{}, "sent_at DESC, id DESC", limit, 0)
}

func (r *NotificationRepositoryImpl) applyFilter(db *gorm.DB, f models.NotificationRecordFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.SentAfter != nil {
		db = db.Where("sent_at >= ?", *f.SentAfter)
	}
	if f.SentBefore != nil {
		db = db.Where("sent_at < ?", *f.SentBefore)
	}
	return db
}

// ByFilter retrieves notification records based on filter criteria
func (r *NotificationRepositoryImpl) ByFilter(ctx context.Context, filter models.NotificationRecordFilter, orderBy string, limit, offset int) ([]*models.NotificationRecord, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.NotificationRecord{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.NotificationRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return rows, nil
}

// Count returns the number of records matching the filter
func (r *NotificationRepositoryImpl) Count(ctx context.Context, filter models.NotificationRecordFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.NotificationRecord{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// Exists checks if any record matches the filter
func (r *NotificationRepositoryImpl) Exists(ctx context.Context, filter models.NotificationRecordFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
