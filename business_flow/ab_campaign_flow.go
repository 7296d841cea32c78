package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	"github.com/amirphl/Kaminari/app/services"
	"github.com/amirphl/Kaminari/models"
	"github.com/amirphl/Kaminari/repository"
	"github.com/amirphl/Kaminari/utils"
)

// ABCampaignFlow manages one-shot A/B campaigns
type ABCampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateABCampaignRequest) (*dto.ABCampaignDTO, error)
	ListCampaigns(ctx context.Context) (*dto.ABCampaignListResponse, error)
	SendCampaign(ctx context.Context, id uint) (*dto.SendABCampaignResponse, error)
	DeleteCampaign(ctx context.Context, id uint) error
}

// ABCampaignFlowImpl implements ABCampaignFlow
type ABCampaignFlowImpl struct {
	campaignRepo repository.ABCampaignRepository
	subRepo      repository.SubscriberRepository
	push         services.PushService
	partitioner  *Partitioner
	locker       Locker
	lockTTL      time.Duration
	logger       *log.Logger
	now          func() time.Time
}

// NewABCampaignFlow creates a new A/B campaign flow
func NewABCampaignFlow(
	campaignRepo repository.ABCampaignRepository,
	subRepo repository.SubscriberRepository,
	push services.PushService,
	partitioner *Partitioner,
	locker Locker,
	lockTTL time.Duration,
	logger *log.Logger,
) ABCampaignFlow {
	if logger == nil {
		logger = log.Default()
	}
	if partitioner == nil {
		partitioner = NewTimeSeededPartitioner()
	}
	if locker == nil {
		locker = NoopLocker{}
	}
	if lockTTL <= 0 {
		lockTTL = 15 * time.Minute
	}
	return &ABCampaignFlowImpl{
		campaignRepo: campaignRepo,
		subRepo:      subRepo,
		push:         push,
		partitioner:  partitioner,
		locker:       locker,
		lockTTL:      lockTTL,
		logger:       logger,
		now:          utils.UTCNow,
	}
}

// CreateCampaign stores a draft campaign. variant_b_percentage defaults to the complement of A.
func (f *ABCampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateABCampaignRequest) (*dto.ABCampaignDTO, error) {
	if req == nil {
		return nil, NewBusinessError("AB_CAMPAIGN_VALIDATION_FAILED", "Campaign is required", ErrValidation)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" ||
		strings.TrimSpace(req.VariantATitle) == "" || strings.TrimSpace(req.VariantABody) == "" ||
		strings.TrimSpace(req.VariantBTitle) == "" || strings.TrimSpace(req.VariantBBody) == "" {
		return nil, NewBusinessError("AB_CAMPAIGN_VALIDATION_FAILED", "Name and both variants' title and body are required", ErrValidation)
	}

	pA := req.VariantAPercentage
	pB := 100 - pA
	if req.VariantBPercentage != nil {
		pB = *req.VariantBPercentage
	}
	if pA <= 0 || pA >= 100 || pB <= 0 || pA+pB != 100 {
		return nil, NewBusinessErrorf("AB_CAMPAIGN_INVALID_SPLIT", "Invalid split %d/%d", ErrInvalidPercentageSplit, pA, pB)
	}

	campaign := &models.ABCampaign{
		Name:               name,
		VariantATitle:      req.VariantATitle,
		VariantABody:       req.VariantABody,
		VariantAPercentage: pA,
		VariantBTitle:      req.VariantBTitle,
		VariantBBody:       req.VariantBBody,
		VariantBPercentage: pB,
		Status:             models.ABCampaignStatusDraft,
	}
	if req.VariantAURL != nil {
		campaign.VariantAURL = utils.NilIfEmpty(*req.VariantAURL)
	}
	if req.VariantBURL != nil {
		campaign.VariantBURL = utils.NilIfEmpty(*req.VariantBURL)
	}

	if err := f.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, NewBusinessError("AB_CAMPAIGN_CREATE_FAILED", "Failed to create campaign", err)
	}

	out := ToABCampaignDTO(campaign)
	return &out, nil
}

// ListCampaigns returns every campaign, newest first
func (f *ABCampaignFlowImpl) ListCampaigns(ctx context.Context) (*dto.ABCampaignListResponse, error) {
	rows, err := f.campaignRepo.ByFilter(ctx, models.ABCampaignFilter{}, "created_at DESC, id DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("AB_CAMPAIGNS_LOAD_FAILED", "Failed to load campaigns", err)
	}
	items := make([]dto.ABCampaignDTO, 0, len(rows))
	for _, c := range rows {
		items = append(items, ToABCampaignDTO(c))
	}
	return &dto.ABCampaignListResponse{Campaigns: items}, nil
}

// SendCampaign partitions a snapshot of subscribers and delivers each variant to its segment.
// The campaign is claimed with a conditional update before any delivery, so at most one send
// ever reaches subscribers; a claimed campaign whose completion failed stays unsendable.
// Subscribers rejected by the push service are not pruned here.
func (f *ABCampaignFlowImpl) SendCampaign(ctx context.Context, id uint) (*dto.SendABCampaignResponse, error) {
	campaign, err := f.campaignRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("AB_CAMPAIGN_LOAD_FAILED", "Failed to load campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("AB_CAMPAIGN_NOT_FOUND", "Campaign not found", ErrABCampaignNotFound)
	}
	if campaign.IsCompleted() || campaign.IsClaimed() {
		return nil, NewBusinessError("AB_CAMPAIGN_ALREADY_SENT", "Campaign already sent", ErrABCampaignAlreadySent)
	}

	unlock, acquired, err := f.locker.TryLock(ctx, fmt.Sprintf("%s%d", utils.ABCampaignSendLockPrefix, id), f.lockTTL)
	if err != nil {
		// The store claim below still guards against a double send
		f.logger.Printf("ab_campaign: send lock for campaign %d unavailable: %v", id, err)
	} else if !acquired {
		return nil, NewBusinessError("AB_CAMPAIGN_SEND_IN_PROGRESS", "Campaign is already being sent", ErrABCampaignSendInProgress)
	}
	defer unlock()

	subs, err := f.subRepo.ListAll(ctx)
	if err != nil {
		return nil, NewBusinessError("SUBSCRIBERS_LOAD_FAILED", "Failed to load subscribers", err)
	}
	if len(subs) == 0 {
		return nil, NewBusinessError("NO_RECIPIENTS", "No subscribers found", ErrNoRecipients)
	}

	groupA, groupB := f.partitioner.Split(subs, campaign)

	payloadA, err := variantPayload(campaign, utils.VariantA)
	if err != nil {
		return nil, NewBusinessError("PAYLOAD_ENCODE_FAILED", "Failed to encode variant A", err)
	}
	payloadB, err := variantPayload(campaign, utils.VariantB)
	if err != nil {
		return nil, NewBusinessError("PAYLOAD_ENCODE_FAILED", "Failed to encode variant B", err)
	}

	err = f.campaignRepo.ClaimForSend(ctx, id, f.now())
	if errors.Is(err, repository.ErrCampaignAlreadyClaimed) {
		return nil, NewBusinessError("AB_CAMPAIGN_ALREADY_SENT", "Campaign was claimed by a concurrent send", ErrABCampaignAlreadySent)
	}
	if err != nil {
		return nil, NewBusinessError("AB_CAMPAIGN_CLAIM_FAILED", "Failed to claim campaign for sending", err)
	}

	jobs := make([]services.PushJob, 0, len(subs))
	for _, sub := range groupA {
		jobs = append(jobs, services.PushJob{Recipient: recipientOf(sub), Payload: payloadA, Mode: modeABCampaign})
	}
	for _, sub := range groupB {
		jobs = append(jobs, services.PushJob{Recipient: recipientOf(sub), Payload: payloadB, Mode: modeABCampaign})
	}
	results := f.push.DeliverAll(ctx, jobs)

	var aSent, bSent int
	for i, r := range results {
		if !r.Sent() {
			continue
		}
		if i < len(groupA) {
			aSent++
		} else {
			bSent++
		}
	}

	err = f.campaignRepo.MarkCompleted(context.WithoutCancel(ctx), id, aSent, bSent, f.now())
	if errors.Is(err, repository.ErrCampaignNotDraft) {
		return nil, NewBusinessError("AB_CAMPAIGN_ALREADY_SENT", "Campaign was completed elsewhere", ErrABCampaignAlreadySent)
	}
	if err != nil {
		return nil, NewBusinessError("AB_CAMPAIGN_COMPLETE_FAILED", "Campaign delivered but could not be marked completed", err)
	}

	f.logger.Printf("ab_campaign: campaign %d sent a=%d/%d b=%d/%d", id, aSent, len(groupA), bSent, len(groupB))

	return &dto.SendABCampaignResponse{
		VariantASent:     aSent,
		VariantBSent:     bSent,
		TotalSubscribers: len(subs),
	}, nil
}

// DeleteCampaign removes a campaign in any status
func (f *ABCampaignFlowImpl) DeleteCampaign(ctx context.Context, id uint) error {
	found, err := f.campaignRepo.Delete(ctx, id)
	if err != nil {
		return NewBusinessError("AB_CAMPAIGN_DELETE_FAILED", "Failed to delete campaign", err)
	}
	if !found {
		return NewBusinessError("AB_CAMPAIGN_NOT_FOUND", "Campaign not found", ErrABCampaignNotFound)
	}
	return nil
}

func variantPayload(c *models.ABCampaign, variant string) ([]byte, error) {
	id := c.ID
	p := services.PushPayload{
		CampaignID: &id,
		Variant:    variant,
	}
	switch variant {
	case utils.VariantA:
		p.Title, p.Body, p.URL = c.VariantATitle, c.VariantABody, c.VariantAURL
	default:
		p.Title, p.Body, p.URL = c.VariantBTitle, c.VariantBBody, c.VariantBURL
	}
	return p.Marshal()
}
