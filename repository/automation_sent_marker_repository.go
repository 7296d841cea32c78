package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Kaminari/models"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutomationSentMarkerRepositoryImpl implements AutomationSentMarkerRepository
type AutomationSentMarkerRepositoryImpl struct {
	*BaseRepository[models.AutomationSentMarker, models.AutomationSentMarkerFilter]
}

// NewAutomationSentMarkerRepository creates a new sent marker repository
func NewAutomationSentMarkerRepository(db *gorm.DB) AutomationSentMarkerRepository {
	return &AutomationSentMarkerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AutomationSentMarker, models.AutomationSentMarkerFilter](db),
	}
}

// HasMarker reports whether the flow already delivered to the subscriber.
// It is the single-pair lookup; the automation tick checks a whole page at once
// with MarkedSubscriberIDs and relies on InsertMarker for the final word.
func (r *AutomationSentMarkerRepositoryImpl) HasMarker(ctx context.Context, flowID, subscriberID uint) (bool, error) {
	return r.Exists(ctx, models.AutomationSentMarkerFilter{FlowID: &flowID, SubscriberID: &subscriberID})
}

// InsertMarker records the pair. The unique (flow_id, subscriber_id) constraint decides
// the winner between concurrent ticks; the loser gets ErrDuplicateMarker.
func (r *AutomationSentMarkerRepositoryImpl) InsertMarker(ctx context.Context, flowID, subscriberID uint) error {
	marker := &models.AutomationSentMarker{FlowID: flowID, SubscriberID: subscriberID}
	return r.write(ctx, func(db *gorm.DB) error {
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "flow_id"}, {Name: "subscriber_id"}},
			DoNothing: true,
		}).Create(marker)
		if res.Error != nil {
			return fmt.Errorf("failed to insert automation marker (%d,%d): %w", flowID, subscriberID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDuplicateMarker
		}
		return nil
	})
}

// DeleteMarker releases a claimed pair so the next tick retries it
func (r *AutomationSentMarkerRepositoryImpl) DeleteMarker(ctx context.Context, flowID, subscriberID uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Where("flow_id = ? AND subscriber_id = ?", flowID, subscriberID).
			Delete(&models.AutomationSentMarker{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete automation marker (%d,%d): %w", flowID, subscriberID, err)
		}
		return nil
	})
}

// MarkedSubscriberIDs returns the subset of subscriberIDs that already have a marker for flowID
func (r *AutomationSentMarkerRepositoryImpl) MarkedSubscriberIDs(ctx context.Context, flowID uint, subscriberIDs []uint) (map[uint]struct{}, error) {
	marked := make(map[uint]struct{})
	if len(subscriberIDs) == 0 {
		return marked, nil
	}

	ids := make([]int64, len(subscriberIDs))
	for i, id := range subscriberIDs {
		ids[i] = int64(id)
	}

	var rows []uint
	err := r.getDB(ctx).Model(&models.AutomationSentMarker{}).
		Where("flow_id = ? AND subscriber_id = ANY(?)", flowID, pq.Int64Array(ids)).
		Pluck("subscriber_id", &rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load automation markers for flow %d: %w", flowID, err)
	}
	for _, id := range rows {
		marked[id] = struct{}{}
	}
	return marked, nil
}

func (r *AutomationSentMarkerRepositoryImpl) applyFilter(db *gorm.DB, f models.AutomationSentMarkerFilter) *gorm.DB {
	if f.FlowID != nil {
		db = db.Where("flow_id = ?", *f.FlowID)
	}
	if f.SubscriberID != nil {
		db = db.Where("subscriber_id = ?", *f.SubscriberID)
	}
	return db
}

// ByFilter retrieves markers based on filter criteria
func (r *AutomationSentMarkerRepositoryImpl) ByFilter(ctx context.Context, filter models.AutomationSentMarkerFilter, orderBy string, limit, offset int) ([]*models.AutomationSentMarker, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AutomationSentMarker{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.AutomationSentMarker
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list automation markers: %w", err)
	}
	return rows, nil
}

// Count returns the number of markers matching the filter
func (r *AutomationSentMarkerRepositoryImpl) Count(ctx context.Context, filter models.AutomationSentMarkerFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.AutomationSentMarker{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count automation markers: %w", err)
	}
	return count, nil
}

// Exists checks if any marker matches the filter
func (r *AutomationSentMarkerRepositoryImpl) Exists(ctx context.Context, filter models.AutomationSentMarkerFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
