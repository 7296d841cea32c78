package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/Kaminari/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AutomationFlowStatus is the closed set of states an automation flow can be in.
// Deleted is terminal: the row and its sent markers stay for idempotency.
type AutomationFlowStatus string

const (
	AutomationFlowStatusActive  AutomationFlowStatus = "active"
	AutomationFlowStatusPaused  AutomationFlowStatus = "paused"
	AutomationFlowStatusDeleted AutomationFlowStatus = "deleted"
)

// String returns the string representation of the status
func (s AutomationFlowStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s AutomationFlowStatus) Valid() bool {
	switch s {
	case AutomationFlowStatusActive, AutomationFlowStatusPaused, AutomationFlowStatusDeleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves this status
func (s AutomationFlowStatus) IsTerminal() bool {
	return s == AutomationFlowStatusDeleted
}

// CanTransitionTo checks the active <-> paused -> deleted state machine
func (s AutomationFlowStatus) CanTransitionTo(next AutomationFlowStatus) bool {
	if !next.Valid() || s.IsTerminal() {
		return false
	}
	switch s {
	case AutomationFlowStatusActive:
		return next == AutomationFlowStatusPaused || next == AutomationFlowStatusDeleted
	case AutomationFlowStatusPaused:
		return next == AutomationFlowStatusActive || next == AutomationFlowStatusDeleted
	default:
		return false
	}
}

// Toggled returns the opposite of active/paused
func (s AutomationFlowStatus) Toggled() (AutomationFlowStatus, bool) {
	switch s {
	case AutomationFlowStatusActive:
		return AutomationFlowStatusPaused, true
	case AutomationFlowStatusPaused:
		return AutomationFlowStatusActive, true
	default:
		return s, false
	}
}

// Scan implements the sql.Scanner interface for AutomationFlowStatus
func (s *AutomationFlowStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = AutomationFlowStatus(v)
	case []byte:
		*s = AutomationFlowStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AutomationFlowStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AutomationFlowStatus
func (s AutomationFlowStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AutomationFlowStatus: %s", s)
	}
	return string(s), nil
}

// AutomationFlow pushes a fixed message to each subscriber once,
// TriggerDelayHours after the subscriber registered
type AutomationFlow struct {
	ID                uint                 `gorm:"primaryKey" json:"id"`
	UUID              uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:uk_push_automation_flows_uuid" json:"uuid"`
	Name              string               `gorm:"type:varchar(255);not null" json:"name"`
	TriggerDelayHours int                  `gorm:"not null" json:"trigger_delay_hours"`
	Title             string               `gorm:"type:text;not null" json:"title"`
	Body              string               `gorm:"type:text;not null" json:"body"`
	URL               *string              `gorm:"type:text" json:"url,omitempty"`
	Status            AutomationFlowStatus `gorm:"type:varchar(20);not null;default:'active';index:idx_push_automation_flows_status" json:"status"`
	CreatedAt         time.Time            `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_push_automation_flows_created_at" json:"created_at"`
	UpdatedAt         *time.Time           `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (AutomationFlow) TableName() string {
	return "push_automation_flows"
}

// BeforeCreate is called before creating a new record
func (f *AutomationFlow) BeforeCreate(tx *gorm.DB) error {
	if f.UUID == uuid.Nil {
		f.UUID = uuid.New()
	}
	if f.Status == "" {
		f.Status = AutomationFlowStatusActive
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (f *AutomationFlow) BeforeUpdate(tx *gorm.DB) error {
	f.UpdatedAt = utils.UTCNowPtr()
	return nil
}

// EligibilityCutoff returns the latest registration time that qualifies at now
func (f *AutomationFlow) EligibilityCutoff(now time.Time) time.Time {
	return utils.HoursBefore(now, f.TriggerDelayHours)
}

// AutomationFlowFilter represents filter criteria for automation flows.
// Deleted flows are excluded unless IncludeDeleted is set or Status asks for them.
type AutomationFlowFilter struct {
	ID             *uint                 `json:"id,omitempty"`
	UUID           *uuid.UUID            `json:"uuid,omitempty"`
	Status         *AutomationFlowStatus `json:"status,omitempty"`
	IncludeDeleted bool                  `json:"include_deleted,omitempty"`
}
