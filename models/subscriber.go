package models

import (
	"time"

	"github.com/amirphl/Kaminari/utils"
	"gorm.io/gorm"
)

// Subscriber is a browser push endpoint registered to receive notifications.
// The endpoint is the identity; re-subscribing rewrites keys in place.
type Subscriber struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Endpoint  string    `gorm:"type:text;not null;uniqueIndex:uk_push_subscribers_endpoint" json:"endpoint"`
	P256dh    string    `gorm:"column:p256dh;type:text;not null" json:"p256dh"`
	Auth      string    `gorm:"type:text;not null" json:"auth"`
	UserAgent string    `gorm:"type:text;not null;default:''" json:"user_agent"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_push_subscribers_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for the model
func (Subscriber) TableName() string {
	return "push_subscribers"
}

// BeforeCreate is called before creating a new record
func (s *Subscriber) BeforeCreate(tx *gorm.DB) error {
	now := utils.UTCNow()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	return nil
}

// SubscriberFilter represents filter criteria for subscribers
type SubscriberFilter struct {
	ID            *uint      `json:"id,omitempty"`
	Endpoint      *string    `json:"endpoint,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
