package businessflow

import (
	"context"
	"log"
	"strings"

	"github.com/amirphl/Kaminari/app/dto"
	"github.com/amirphl/Kaminari/models"
	"github.com/amirphl/Kaminari/repository"
)

// SubscriberFlow handles browser registration and subscriber statistics
type SubscriberFlow interface {
	Register(ctx context.Context, req *dto.SubscribeRequest, metadata *ClientMetadata) (*dto.SubscribeResponse, error)
	Count(ctx context.Context) (*dto.SubscriberCountResponse, error)
	VAPIDPublicKey() *dto.VAPIDPublicKeyResponse
}

// SubscriberFlowImpl implements SubscriberFlow
type SubscriberFlowImpl struct {
	subRepo        repository.SubscriberRepository
	countCache     *SubscriberCountCache
	vapidPublicKey string
	logger         *log.Logger
}

// NewSubscriberFlow creates a new subscriber flow
func NewSubscriberFlow(
	subRepo repository.SubscriberRepository,
	countCache *SubscriberCountCache,
	vapidPublicKey string,
	logger *log.Logger,
) SubscriberFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &SubscriberFlowImpl{
		subRepo:        subRepo,
		countCache:     countCache,
		vapidPublicKey: vapidPublicKey,
		logger:         logger,
	}
}

// Register stores the subscription; an already known endpoint gets its keys replaced
func (f *SubscriberFlowImpl) Register(ctx context.Context, req *dto.SubscribeRequest, metadata *ClientMetadata) (*dto.SubscribeResponse, error) {
	if req == nil {
		return nil, NewBusinessError("SUBSCRIPTION_VALIDATION_FAILED", "Subscription is required", ErrInvalidSubscription)
	}
	endpoint := strings.TrimSpace(req.Endpoint)
	p256dh := strings.TrimSpace(req.Keys.P256dh)
	auth := strings.TrimSpace(req.Keys.Auth)
	if endpoint == "" || p256dh == "" || auth == "" {
		return nil, NewBusinessError("SUBSCRIPTION_VALIDATION_FAILED", "Endpoint, p256dh and auth are required", ErrInvalidSubscription)
	}

	sub := &models.Subscriber{
		Endpoint: endpoint,
		P256dh:   p256dh,
		Auth:     auth,
	}
	if metadata != nil {
		sub.UserAgent = metadata.UserAgent
	}

	if err := f.subRepo.Upsert(ctx, sub); err != nil {
		return nil, NewBusinessError("SUBSCRIPTION_SAVE_FAILED", "Failed to save subscription", err)
	}
	f.countCache.Invalidate(ctx)

	return &dto.SubscribeResponse{ID: sub.ID}, nil
}

// Count returns the number of stored subscribers
func (f *SubscriberFlowImpl) Count(ctx context.Context) (*dto.SubscriberCountResponse, error) {
	if n, ok := f.countCache.Get(ctx); ok {
		return &dto.SubscriberCountResponse{Count: n}, nil
	}

	n, err := f.subRepo.Count(ctx, models.SubscriberFilter{})
	if err != nil {
		return nil, NewBusinessError("SUBSCRIBER_COUNT_FAILED", "Failed to count subscribers", err)
	}
	f.countCache.Set(ctx, n)

	return &dto.SubscriberCountResponse{Count: n}, nil
}

// VAPIDPublicKey returns the application server key browsers subscribe with
func (f *SubscriberFlowImpl) VAPIDPublicKey() *dto.VAPIDPublicKeyResponse {
	return &dto.VAPIDPublicKeyResponse{PublicKey: f.vapidPublicKey}
}
