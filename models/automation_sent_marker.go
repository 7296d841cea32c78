package models

import (
	"time"

	"github.com/amirphl/Kaminari/utils"
	"gorm.io/gorm"
)

// AutomationSentMarker proves a flow already delivered to a subscriber.
// (flow_id, subscriber_id) is unique; the constraint is what makes ticks at-most-once.
type AutomationSentMarker struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FlowID       uint      `gorm:"not null;uniqueIndex:uk_push_automation_sent_flow_subscriber,priority:1" json:"flow_id"`
	SubscriberID uint      `gorm:"not null;uniqueIndex:uk_push_automation_sent_flow_subscriber,priority:2;index:idx_push_automation_sent_subscriber_id" json:"subscriber_id"`
	SentAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"sent_at"`
}

// TableName returns the table name for the model
func (AutomationSentMarker) TableName() string {
	return "push_automation_sent"
}

// BeforeCreate is called before creating a new record
func (m *AutomationSentMarker) BeforeCreate(tx *gorm.DB) error {
	if m.SentAt.IsZero() {
		m.SentAt = utils.UTCNow()
	}
	return nil
}

// AutomationSentMarkerFilter represents filter criteria for sent markers
type AutomationSentMarkerFilter struct {
	FlowID       *uint `json:"flow_id,omitempty"`
	SubscriberID *uint `json:"subscriber_id,omitempty"`
}
