package models

import (
	"encoding/json"
	"time"

	"github.com/amirphl/Kaminari/utils"
	"gorm.io/gorm"
)

// AuditLog records one operator action against the dispatcher
type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Action       string          `gorm:"type:varchar(64);not null;index:idx_push_audit_log_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_push_audit_log_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "push_audit_log"
}

// BeforeCreate is called before creating a new record
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate rejects updates; the audit trail is append-only
func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// Audit action constants
const (
	AuditActionAdminLoginSuccess     = "admin_login_success"
	AuditActionAdminLoginFailed      = "admin_login_failed"
	AuditActionAdminLogout           = "admin_logout"
	AuditActionBroadcastSent         = "broadcast_sent"
	AuditActionABCampaignSent        = "ab_campaign_sent"
	AuditActionABCampaignDeleted     = "ab_campaign_deleted"
	AuditActionAutomationFlowCreated = "automation_flow_created"
	AuditActionAutomationFlowDeleted = "automation_flow_deleted"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	Action        *string
	Success       *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

// IsSecurityEvent reports whether the entry concerns operator authentication
func (a *AuditLog) IsSecurityEvent() bool {
	switch a.Action {
	case AuditActionAdminLoginSuccess, AuditActionAdminLoginFailed, AuditActionAdminLogout:
		return true
	default:
		return false
	}
}
