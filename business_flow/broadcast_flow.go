package businessflow

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	"github.com/amirphl/Kaminari/app/services"
	"github.com/amirphl/Kaminari/models"
	"github.com/amirphl/Kaminari/repository"
	"github.com/amirphl/Kaminari/utils"
)

// BroadcastFlow sends one message to every subscriber
type BroadcastFlow interface {
	Broadcast(ctx context.Context, req *dto.BroadcastRequest) (*dto.BroadcastResponse, error)
}

// BroadcastFlowImpl implements BroadcastFlow
type BroadcastFlowImpl struct {
	subRepo    repository.SubscriberRepository
	notifRepo  repository.NotificationRepository
	push       services.PushService
	countCache *SubscriberCountCache
	icon       string
	badge      string
	logger     *log.Logger
	now        func() time.Time
}

// NewBroadcastFlow creates a new broadcast flow. Empty icon or badge fall back to the defaults.
func NewBroadcastFlow(
	subRepo repository.SubscriberRepository,
	notifRepo repository.NotificationRepository,
	push services.PushService,
	countCache *SubscriberCountCache,
	icon, badge string,
	logger *log.Logger,
) BroadcastFlow {
	if logger == nil {
		logger = log.Default()
	}
	if icon == "" {
		icon = utils.DefaultNotificationIcon
	}
	if badge == "" {
		badge = utils.DefaultNotificationBadge
	}
	return &BroadcastFlowImpl{
		subRepo:    subRepo,
		notifRepo:  notifRepo,
		push:       push,
		countCache: countCache,
		icon:       icon,
		badge:      badge,
		logger:     logger,
		now:        utils.UTCNow,
	}
}

// Broadcast delivers to a snapshot of all subscribers, prunes endpoints the push
// service reported gone and appends one history record. Pruning and history are
// best effort: their failures are logged and do not fail the broadcast.
func (f *BroadcastFlowImpl) Broadcast(ctx context.Context, req *dto.BroadcastRequest) (*dto.BroadcastResponse, error) {
	if req == nil || strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Body) == "" {
		return nil, NewBusinessError("BROADCAST_VALIDATION_FAILED", "Title and body are required", ErrValidation)
	}

	subs, err := f.subRepo.ListAll(ctx)
	if err != nil {
		return nil, NewBusinessError("SUBSCRIBERS_LOAD_FAILED", "Failed to load subscribers", err)
	}
	if len(subs) == 0 {
		return nil, NewBusinessError("NO_RECIPIENTS", "No subscribers found", ErrNoRecipients)
	}

	now := f.now()
	url := utils.ValueOr(req.URL, utils.DefaultNotificationURL)
	payload, err := services.PushPayload{
		Title:     req.Title,
		Body:      req.Body,
		Icon:      f.icon,
		Badge:     f.badge,
		URL:       &url,
		Timestamp: utils.UnixMilli(now),
	}.Marshal()
	if err != nil {
		return nil, NewBusinessError("PAYLOAD_ENCODE_FAILED", "Failed to encode notification", err)
	}

	jobs := make([]services.PushJob, len(subs))
	for i, sub := range subs {
		jobs[i] = services.PushJob{Recipient: recipientOf(sub), Payload: payload, Mode: modeBroadcast}
	}
	results := f.push.DeliverAll(ctx, jobs)

	var sent, failed int
	var gone []string
	for _, r := range results {
		if r.Sent() {
			sent++
			continue
		}
		failed++
		if r.Outcome == services.DeliveryFailedPermanent {
			gone = append(gone, r.Recipient.Endpoint)
		}
	}

	// Deliveries already happened; bookkeeping must not be lost to a request timeout
	bookkeepingCtx := context.WithoutCancel(ctx)

	removed := 0
	if len(gone) > 0 {
		n, err := f.subRepo.DeleteByEndpoints(bookkeepingCtx, gone)
		if err != nil {
			f.logger.Printf("broadcast: failed to prune %d expired subscriptions: %v", len(gone), err)
		} else {
			removed = int(n)
			f.countCache.Invalidate(bookkeepingCtx)
		}
	}

	record := &models.NotificationRecord{
		Title:            req.Title,
		Body:             req.Body,
		TotalSubscribers: len(subs),
		TotalSent:        sent,
		TotalFailed:      failed,
		SentAt:           now,
	}
	if req.URL != nil {
		record.URL = utils.NilIfEmpty(*req.URL)
	}
	if err := f.notifRepo.Save(bookkeepingCtx, record); err != nil {
		f.logger.Printf("broadcast: failed to record notification history: %v", err)
	}

	f.logger.Printf("broadcast: subscribers=%d sent=%d failed=%d removed=%d", len(subs), sent, failed, removed)

	return &dto.BroadcastResponse{
		TotalSubscribers: len(subs),
		TotalSent:        sent,
		TotalFailed:      failed,
		RemovedInvalid:   removed,
	}, nil
}
