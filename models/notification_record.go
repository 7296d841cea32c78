package models

import (
	"time"

	"github.com/amirphl/Kaminari/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRecord is the append-only result of one broadcast
type NotificationRecord struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UUID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_push_notifications_uuid" json:"uuid"`
	Title            string    `gorm:"type:text;not null" json:"title"`
	Body             string    `gorm:"type:text;not null" json:"body"`
	URL              *string   `gorm:"type:text" json:"url,omitempty"`
	TotalSubscribers int       `gorm:"not null;default:0" json:"total_subscribers"`
	TotalSent        int       `gorm:"not null;default:0" json:"total_sent"`
	TotalFailed      int       `gorm:"not null;default:0" json:"total_failed"`
	SentAt           time.Time `gorm:"not null;index:idx_push_notifications_sent_at" json:"sent_at"`
}

// TableName returns the table name for the model
func (NotificationRecord) TableName() string {
	return "push_notifications"
}

// BeforeCreate is called before creating a new record
func (n *NotificationRecord) BeforeCreate(tx *gorm.DB) error {
	if n.UUID == uuid.Nil {
		n.UUID = uuid.New()
	}
	if n.SentAt.IsZero() {
		n.SentAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate rejects updates; history rows are immutable
func (n *NotificationRecord) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// NotificationRecordFilter represents filter criteria for notification history
type NotificationRecordFilter struct {
	ID         *uint      `json:"id,omitempty"`
	SentAfter  *time.Time `json:"sent_after,omitempty"`
	SentBefore *time.Time `json:"sent_before,omitempty"`
}
