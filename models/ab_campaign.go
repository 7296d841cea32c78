package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/Kaminari/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ABCampaignStatus represents the lifecycle of an A/B campaign
type ABCampaignStatus string

const (
	ABCampaignStatusDraft     ABCampaignStatus = "draft"
	ABCampaignStatusCompleted ABCampaignStatus = "completed"
)

// String returns the string representation of the status
func (s ABCampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ABCampaignStatus) Valid() bool {
	switch s {
	case ABCampaignStatusDraft, ABCampaignStatusCompleted:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ABCampaignStatus
func (s *ABCampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ABCampaignStatus(v)
	case []byte:
		*s = ABCampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ABCampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ABCampaignStatus
func (s ABCampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ABCampaignStatus: %s", s)
	}
	return string(s), nil
}

// ABCampaign is a one-shot send that splits subscribers between two message variants
type ABCampaign struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_push_ab_campaigns_uuid" json:"uuid"`
	Name string    `gorm:"type:varchar(255);not null" json:"name"`

	VariantATitle      string  `gorm:"type:text;not null" json:"variant_a_title"`
	VariantABody       string  `gorm:"type:text;not null" json:"variant_a_body"`
	VariantAURL        *string `gorm:"type:text" json:"variant_a_url,omitempty"`
	VariantAPercentage int     `gorm:"not null" json:"variant_a_percentage"`

	VariantBTitle      string  `gorm:"type:text;not null" json:"variant_b_title"`
	VariantBBody       string  `gorm:"type:text;not null" json:"variant_b_body"`
	VariantBURL        *string `gorm:"type:text" json:"variant_b_url,omitempty"`
	VariantBPercentage int     `gorm:"not null" json:"variant_b_percentage"`

	Status       ABCampaignStatus `gorm:"type:varchar(20);not null;default:'draft';index:idx_push_ab_campaigns_status" json:"status"`
	VariantASent int              `gorm:"not null;default:0" json:"variant_a_sent"`
	VariantBSent int              `gorm:"not null;default:0" json:"variant_b_sent"`

	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_push_ab_campaigns_created_at" json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the table name for the model
func (ABCampaign) TableName() string {
	return "push_ab_campaigns"
}

// BeforeCreate is called before creating a new record
func (c *ABCampaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = ABCampaignStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// IsCompleted reports whether the campaign was already sent
func (c *ABCampaign) IsCompleted() bool {
	return c.Status == ABCampaignStatusCompleted
}

// IsClaimed reports whether a send has started; a claimed draft never sends again
func (c *ABCampaign) IsClaimed() bool {
	return c.SentAt != nil
}

// SplitIndex returns the size of the variant A segment for n subscribers,
// i.e. floor(n * variant_a_percentage / 100)
func (c *ABCampaign) SplitIndex(n int) int {
	if n <= 0 || c.VariantAPercentage <= 0 {
		return 0
	}
	if c.VariantAPercentage >= 100 {
		return n
	}
	return n * c.VariantAPercentage / 100
}

// ABCampaignFilter represents filter criteria for A/B campaigns
type ABCampaignFilter struct {
	ID            *uint             `json:"id,omitempty"`
	UUID          *uuid.UUID        `json:"uuid,omitempty"`
	Status        *ABCampaignStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time        `json:"created_after,omitempty"`
	CreatedBefore *time.Time        `json:"created_before,omitempty"`
}
