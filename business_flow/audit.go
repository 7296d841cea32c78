package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	"github.com/amirphl/Kaminari/models"
	"github.com/amirphl/Kaminari/repository"
	"github.com/amirphl/Kaminari/utils"
)

// Auditor appends operator actions to the audit trail. A nil *Auditor records nothing.
// Write failures are logged and never fail the audited operation.
type Auditor struct {
	repo   repository.AuditLogRepository
	logger *log.Logger
}

// NewAuditor returns nil when repo is nil
func NewAuditor(repo repository.AuditLogRepository, logger *log.Logger) *Auditor {
	if repo == nil {
		return nil
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Auditor{repo: repo, logger: logger}
}

// Record stores one entry. cause marks the entry failed; details is stored as jsonb.
// Request id, IP and user agent come from metadata or, failing that, from ctx.
func (a *Auditor) Record(ctx context.Context, action, description string, cause error, details any, metadata *ClientMetadata) {
	if a == nil {
		return
	}

	entry := &models.AuditLog{
		Action:      action,
		Description: &description,
		Success:     utils.ToPtr(cause == nil),
	}
	if cause != nil {
		entry.ErrorMessage = utils.ToPtr(cause.Error())
	}
	if metadata != nil {
		entry.IPAddress = utils.NilIfEmpty(metadata.IPAddress)
		entry.UserAgent = utils.NilIfEmpty(metadata.UserAgent)
		entry.RequestID = utils.NilIfEmpty(metadata.RequestID)
	} else {
		entry.IPAddress = contextString(ctx, utils.IPAddressKey)
		entry.UserAgent = contextString(ctx, utils.UserAgentKey)
		entry.RequestID = contextString(ctx, utils.RequestIDKey)
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			a.logger.Printf("audit: failed to encode %s details: %v", action, err)
		} else {
			entry.Metadata = raw
		}
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.repo.Save(saveCtx, entry); err != nil {
		a.logger.Printf("audit: failed to record %s: %v", action, err)
	}
}

func contextString(ctx context.Context, key any) *string {
	if s, ok := ctx.Value(key).(string); ok {
		return utils.NilIfEmpty(s)
	}
	return nil
}

// ---- audited decorators ----

type auditedBroadcastFlow struct {
	BroadcastFlow
	auditor *Auditor
}

// WithBroadcastAudit records every broadcast attempt; a nil auditor returns flow unchanged
func WithBroadcastAudit(flow BroadcastFlow, auditor *Auditor) BroadcastFlow {
	if auditor == nil {
		return flow
	}
	return &auditedBroadcastFlow{BroadcastFlow: flow, auditor: auditor}
}

func (f *auditedBroadcastFlow) Broadcast(ctx context.Context, req *dto.BroadcastRequest) (*dto.BroadcastResponse, error) {
	res, err := f.BroadcastFlow.Broadcast(ctx, req)
	description := "broadcast"
	if req != nil {
		description = fmt.Sprintf("broadcast %q", req.Title)
	}
	var details any
	if res != nil {
		details = res
	}
	f.auditor.Record(ctx, models.AuditActionBroadcastSent, description, err, details, nil)
	return res, err
}

type auditedABCampaignFlow struct {
	ABCampaignFlow
	auditor *Auditor
}

// WithABCampaignAudit records sends and deletes; a nil auditor returns flow unchanged
func WithABCampaignAudit(flow ABCampaignFlow, auditor *Auditor) ABCampaignFlow {
	if auditor == nil {
		return flow
	}
	return &auditedABCampaignFlow{ABCampaignFlow: flow, auditor: auditor}
}

func (f *auditedABCampaignFlow) SendCampaign(ctx context.Context, id uint) (*dto.SendABCampaignResponse, error) {
	res, err := f.ABCampaignFlow.SendCampaign(ctx, id)
	var details any
	if res != nil {
		details = res
	}
	f.auditor.Record(ctx, models.AuditActionABCampaignSent, fmt.Sprintf("ab campaign %d sent", id), err, details, nil)
	return res, err
}

func (f *auditedABCampaignFlow) DeleteCampaign(ctx context.Context, id uint) error {
	err := f.ABCampaignFlow.DeleteCampaign(ctx, id)
	f.auditor.Record(ctx, models.AuditActionABCampaignDeleted, fmt.Sprintf("ab campaign %d deleted", id), err, nil, nil)
	return err
}

type auditedAutomationFlow struct {
	AutomationFlow
	auditor *Auditor
}

// WithAutomationAudit records flow creation and deletion; a nil auditor returns flow unchanged
func WithAutomationAudit(flow AutomationFlow, auditor *Auditor) AutomationFlow {
	if auditor == nil {
		return flow
	}
	return &auditedAutomationFlow{AutomationFlow: flow, auditor: auditor}
}

func (f *auditedAutomationFlow) CreateFlow(ctx context.Context, req *dto.CreateAutomationFlowRequest) (*dto.AutomationFlowDTO, error) {
	res, err := f.AutomationFlow.CreateFlow(ctx, req)
	description := "automation flow created"
	if res != nil {
		description = fmt.Sprintf("automation flow %d created", res.ID)
	}
	f.auditor.Record(ctx, models.AuditActionAutomationFlowCreated, description, err, nil, nil)
	return res, err
}

func (f *auditedAutomationFlow) DeleteFlow(ctx context.Context, id uint) error {
	err := f.AutomationFlow.DeleteFlow(ctx, id)
	f.auditor.Record(ctx, models.AuditActionAutomationFlowDeleted, fmt.Sprintf("automation flow %d deleted", id), err, nil, nil)
	return err
}
