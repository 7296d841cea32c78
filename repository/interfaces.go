// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/Kaminari/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

var (
	// ErrDuplicateMarker is returned when a (flow, subscriber) marker already exists
	ErrDuplicateMarker = errors.New("automation marker already exists")

	// ErrCampaignNotDraft is returned when a conditional completion finds no draft row
	ErrCampaignNotDraft = errors.New("campaign is not in draft status")

	// ErrCampaignAlreadyClaimed is returned when a send claim finds the campaign sent or being sent
	ErrCampaignAlreadyClaimed = errors.New("campaign send already claimed")

	// ErrFlowStatusConflict is returned when a conditional flow update matched no row
	ErrFlowStatusConflict = errors.New("automation flow status changed concurrently")
)

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// SubscriberRepository defines operations for push subscribers
type SubscriberRepository interface {
	Repository[models.Subscriber, models.SubscriberFilter]
	Upsert(ctx context.Context, sub *models.Subscriber) error
	ListAll(ctx context.Context) ([]*models.Subscriber, error)
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Subscriber, error)
	DeleteByEndpoints(ctx context.Context, endpoints []string) (int64, error)
}

// NotificationRepository defines operations for the broadcast history
type NotificationRepository interface {
	Repository[models.NotificationRecord, models.NotificationRecordFilter]
	ListRecent(ctx context.Context, limit int) ([]*models.NotificationRecord, error)
}

// ABCampaignRepository defines operations for A/B campaigns
type ABCampaignRepository interface {
	Repository[models.ABCampaign, models.ABCampaignFilter]
	ClaimForSend(ctx context.Context, id uint, at time.Time) error
	MarkCompleted(ctx context.Context, id uint, variantASent, variantBSent int, at time.Time) error
	Delete(ctx context.Context, id uint) (bool, error)
}

// AutomationFlowRepository defines operations for automation flows
type AutomationFlowRepository interface {
	Repository[models.AutomationFlow, models.AutomationFlowFilter]
	ListActive(ctx context.Context) ([]*models.AutomationFlow, error)
	UpdateContent(ctx context.Context, flow *models.AutomationFlow) error
	UpdateStatus(ctx context.Context, id uint, from, to models.AutomationFlowStatus) error
}

// AutomationSentMarkerRepository defines operations for automation sent markers
type AutomationSentMarkerRepository interface {
	Repository[models.AutomationSentMarker, models.AutomationSentMarkerFilter]
	HasMarker(ctx context.Context, flowID, subscriberID uint) (bool, error)
	InsertMarker(ctx context.Context, flowID, subscriberID uint) error
	DeleteMarker(ctx context.Context, flowID, subscriberID uint) error
	MarkedSubscriberIDs(ctx context.Context, flowID uint, subscriberIDs []uint) (map[uint]struct{}, error)
}

// AuditLogRepository defines operations for the operator audit trail
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListRecent(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
