package businessflow

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	"github.com/amirphl/Kaminari/app/services"
	"github.com/amirphl/Kaminari/models"
	"github.com/amirphl/Kaminari/repository"
	"github.com/amirphl/Kaminari/utils"
)

// AutomationFlow manages delayed per-subscriber flows and runs the scheduler tick
type AutomationFlow interface {
	ListFlows(ctx context.Context) (*dto.AutomationFlowListResponse, error)
	CreateFlow(ctx context.Context, req *dto.CreateAutomationFlowRequest) (*dto.AutomationFlowDTO, error)
	UpdateFlow(ctx context.Context, id uint, req *dto.UpdateAutomationFlowRequest) (*dto.AutomationFlowDTO, error)
	ToggleFlow(ctx context.Context, id uint, req *dto.ToggleAutomationFlowRequest) (*dto.AutomationFlowDTO, error)
	DeleteFlow(ctx context.Context, id uint) error
	ProcessTick(ctx context.Context, now time.Time) (*dto.AutomationTickResponse, error)
}

// AutomationFlowImpl implements AutomationFlow
type AutomationFlowImpl struct {
	flowRepo   repository.AutomationFlowRepository
	markerRepo repository.AutomationSentMarkerRepository
	subRepo    repository.SubscriberRepository
	push       services.PushService
	icon       string
	badge      string
	logger     *log.Logger
}

// NewAutomationFlow creates a new automation flow service
func NewAutomationFlow(
	flowRepo repository.AutomationFlowRepository,
	markerRepo repository.AutomationSentMarkerRepository,
	subRepo repository.SubscriberRepository,
	push services.PushService,
	icon, badge string,
	logger *log.Logger,
) AutomationFlow {
	if logger == nil {
		logger = log.Default()
	}
	if icon == "" {
		icon = utils.DefaultNotificationIcon
	}
	if badge == "" {
		badge = utils.DefaultNotificationBadge
	}
	return &AutomationFlowImpl{
		flowRepo:   flowRepo,
		markerRepo: markerRepo,
		subRepo:    subRepo,
		push:       push,
		icon:       icon,
		badge:      badge,
		logger:     logger,
	}
}

// ListFlows returns non-deleted flows, newest first
func (f *AutomationFlowImpl) ListFlows(ctx context.Context) (*dto.AutomationFlowListResponse, error) {
	rows, err := f.flowRepo.ByFilter(ctx, models.AutomationFlowFilter{}, "created_at DESC, id DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("AUTOMATION_FLOWS_LOAD_FAILED", "Failed to load automation flows", err)
	}
	items := make([]dto.AutomationFlowDTO, 0, len(rows))
	for _, r := range rows {
		items = append(items, ToAutomationFlowDTO(r))
	}
	return &dto.AutomationFlowListResponse{Flows: items}, nil
}

// CreateFlow stores a new active flow
func (f *AutomationFlowImpl) CreateFlow(ctx context.Context, req *dto.CreateAutomationFlowRequest) (*dto.AutomationFlowDTO, error) {
	if req == nil || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Body) == "" {
		return nil, NewBusinessError("AUTOMATION_VALIDATION_FAILED", "Name, title and body are required", ErrValidation)
	}
	if req.TriggerDelayHours <= 0 {
		return nil, NewBusinessError("AUTOMATION_INVALID_DELAY", "Trigger delay must be positive", ErrInvalidTriggerDelay)
	}

	flow := &models.AutomationFlow{
		Name:              strings.TrimSpace(req.Name),
		TriggerDelayHours: req.TriggerDelayHours,
		Title:             req.Title,
		Body:              req.Body,
		Status:            models.AutomationFlowStatusActive,
	}
	if req.URL != nil {
		flow.URL = utils.NilIfEmpty(*req.URL)
	}

	if err := f.flowRepo.Save(ctx, flow); err != nil {
		return nil, NewBusinessError("AUTOMATION_CREATE_FAILED", "Failed to create automation flow", err)
	}

	out := ToAutomationFlowDTO(flow)
	return &out, nil
}

// UpdateFlow edits a live flow. Subscribers already marked for it are not re-sent.
func (f *AutomationFlowImpl) UpdateFlow(ctx context.Context, id uint, req *dto.UpdateAutomationFlowRequest) (*dto.AutomationFlowDTO, error) {
	if req == nil || (req.Name == nil && req.TriggerDelayHours == nil && req.Title == nil && req.Body == nil && req.URL == nil) {
		return nil, NewBusinessError("AUTOMATION_UPDATE_EMPTY", "Nothing to update", ErrAutomationUpdateRequired)
	}

	flow, err := f.loadLiveFlow(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, NewBusinessError("AUTOMATION_VALIDATION_FAILED", "Name must not be empty", ErrValidation)
		}
		flow.Name = strings.TrimSpace(*req.Name)
	}
	if req.TriggerDelayHours != nil {
		if *req.TriggerDelayHours <= 0 {
			return nil, NewBusinessError("AUTOMATION_INVALID_DELAY", "Trigger delay must be positive", ErrInvalidTriggerDelay)
		}
		flow.TriggerDelayHours = *req.TriggerDelayHours
	}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, NewBusinessError("AUTOMATION_VALIDATION_FAILED", "Title must not be empty", ErrValidation)
		}
		flow.Title = *req.Title
	}
	if req.Body != nil {
		if strings.TrimSpace(*req.Body) == "" {
			return nil, NewBusinessError("AUTOMATION_VALIDATION_FAILED", "Body must not be empty", ErrValidation)
		}
		flow.Body = *req.Body
	}
	if req.URL != nil {
		flow.URL = utils.NilIfEmpty(*req.URL)
	}

	if err := f.flowRepo.UpdateContent(ctx, flow); err != nil {
		if errors.Is(err, repository.ErrFlowStatusConflict) {
			return nil, NewBusinessError("AUTOMATION_FLOW_DELETED", "Automation flow was deleted", ErrAutomationFlowDeleted)
		}
		return nil, NewBusinessError("AUTOMATION_UPDATE_FAILED", "Failed to update automation flow", err)
	}

	flow.UpdatedAt = utils.UTCNowPtr()
	out := ToAutomationFlowDTO(flow)
	return &out, nil
}

// ToggleFlow switches between active and paused. An explicit target equal to the
// current status is a no-op.
func (f *AutomationFlowImpl) ToggleFlow(ctx context.Context, id uint, req *dto.ToggleAutomationFlowRequest) (*dto.AutomationFlowDTO, error) {
	flow, err := f.loadLiveFlow(ctx, id)
	if err != nil {
		return nil, err
	}

	target, _ := flow.Status.Toggled()
	if req != nil && req.Status != "" {
		target = models.AutomationFlowStatus(req.Status)
	}
	if target == flow.Status {
		out := ToAutomationFlowDTO(flow)
		return &out, nil
	}
	if target == models.AutomationFlowStatusDeleted || !flow.Status.CanTransitionTo(target) {
		return nil, NewBusinessErrorf("AUTOMATION_INVALID_TRANSITION", "Cannot move flow from %s to %s", ErrInvalidStatusTransition, flow.Status, target)
	}

	if err := f.flowRepo.UpdateStatus(ctx, id, flow.Status, target); err != nil {
		if errors.Is(err, repository.ErrFlowStatusConflict) {
			return nil, NewBusinessError("AUTOMATION_STATUS_CONFLICT", "Automation flow changed concurrently", ErrInvalidStatusTransition)
		}
		return nil, NewBusinessError("AUTOMATION_TOGGLE_FAILED", "Failed to change automation flow status", err)
	}

	flow.Status = target
	flow.UpdatedAt = utils.UTCNowPtr()
	out := ToAutomationFlowDTO(flow)
	return &out, nil
}

// DeleteFlow soft-deletes a flow; markers stay so a restore can never re-send.
// Deleting an already deleted flow succeeds.
func (f *AutomationFlowImpl) DeleteFlow(ctx context.Context, id uint) error {
	for attempt := 0; ; attempt++ {
		flow, err := f.flowRepo.ByID(ctx, id)
		if err != nil {
			return NewBusinessError("AUTOMATION_FLOW_LOAD_FAILED", "Failed to load automation flow", err)
		}
		if flow == nil {
			return NewBusinessError("AUTOMATION_FLOW_NOT_FOUND", "Automation flow not found", ErrAutomationFlowNotFound)
		}
		if flow.Status.IsTerminal() {
			return nil
		}

		err = f.flowRepo.UpdateStatus(ctx, id, flow.Status, models.AutomationFlowStatusDeleted)
		if errors.Is(err, repository.ErrFlowStatusConflict) && attempt < 2 {
			// Status moved under us (toggle); reload and try again
			continue
		}
		if err != nil {
			return NewBusinessError("AUTOMATION_DELETE_FAILED", "Failed to delete automation flow", err)
		}
		return nil
	}
}

func (f *AutomationFlowImpl) loadLiveFlow(ctx context.Context, id uint) (*models.AutomationFlow, error) {
	flow, err := f.flowRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("AUTOMATION_FLOW_LOAD_FAILED", "Failed to load automation flow", err)
	}
	if flow == nil {
		return nil, NewBusinessError("AUTOMATION_FLOW_NOT_FOUND", "Automation flow not found", ErrAutomationFlowNotFound)
	}
	if flow.Status.IsTerminal() {
		return nil, NewBusinessError("AUTOMATION_FLOW_DELETED", "Automation flow is deleted", ErrAutomationFlowDeleted)
	}
	return flow, nil
}

// ProcessTick delivers every active flow to subscribers that registered at least
// TriggerDelayHours before now and have no marker for that flow yet.
//
// A marker is claimed before delivery and released when delivery fails, so ticks
// that overlap never send the same (flow, subscriber) twice and failed pairs are
// retried on the next tick. A flow whose data cannot be loaded is skipped; the
// other flows still run.
func (f *AutomationFlowImpl) ProcessTick(ctx context.Context, now time.Time) (*dto.AutomationTickResponse, error) {
	flows, err := f.flowRepo.ListActive(ctx)
	if err != nil {
		return nil, NewBusinessError("AUTOMATION_FLOWS_LOAD_FAILED", "Failed to load active automation flows", err)
	}

	total := 0
	for _, flow := range flows {
		if ctx.Err() != nil {
			f.logger.Printf("automation: tick interrupted after %d sends: %v", total, ctx.Err())
			break
		}
		sent, err := f.processFlow(ctx, flow, now)
		if err != nil {
			f.logger.Printf("automation: flow %d skipped: %v", flow.ID, err)
		}
		total += sent
	}

	return &dto.AutomationTickResponse{TotalSent: total, ProcessedAt: now}, nil
}

func (f *AutomationFlowImpl) processFlow(ctx context.Context, flow *models.AutomationFlow, now time.Time) (int, error) {
	subs, err := f.subRepo.ListCreatedBefore(ctx, flow.EligibilityCutoff(now))
	if err != nil {
		return 0, err
	}
	if len(subs) == 0 {
		return 0, nil
	}

	ids := make([]uint, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
	}
	marked, err := f.markerRepo.MarkedSubscriberIDs(ctx, flow.ID, ids)
	if err != nil {
		return 0, err
	}

	flowID := flow.ID
	payload, err := services.PushPayload{
		Title:     flow.Title,
		Body:      flow.Body,
		Icon:      f.icon,
		Badge:     f.badge,
		URL:       flow.URL,
		Timestamp: utils.UnixMilli(now),
		FlowID:    &flowID,
	}.Marshal()
	if err != nil {
		return 0, err
	}

	claimed := make([]*models.Subscriber, 0, len(subs)-len(marked))
	for _, sub := range subs {
		if _, ok := marked[sub.ID]; ok {
			continue
		}
		if err := f.markerRepo.InsertMarker(ctx, flow.ID, sub.ID); err != nil {
			if !errors.Is(err, repository.ErrDuplicateMarker) {
				f.logger.Printf("automation: flow %d failed to claim subscriber %d: %v", flow.ID, sub.ID, err)
			}
			continue
		}
		claimed = append(claimed, sub)
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	jobs := make([]services.PushJob, len(claimed))
	for i, sub := range claimed {
		jobs[i] = services.PushJob{Recipient: recipientOf(sub), Payload: payload, Mode: modeAutomation}
	}
	results := f.push.DeliverAll(ctx, jobs)

	releaseCtx := context.WithoutCancel(ctx)
	sent := 0
	for i, r := range results {
		if r.Sent() {
			sent++
			continue
		}
		if err := f.markerRepo.DeleteMarker(releaseCtx, flow.ID, claimed[i].ID); err != nil {
			f.logger.Printf("automation: flow %d failed to release subscriber %d: %v", flow.ID, claimed[i].ID, err)
		}
	}

	if sent > 0 {
		f.logger.Printf("automation: flow %d sent=%d claimed=%d", flow.ID, sent, len(claimed))
	}
	return sent, nil
}
