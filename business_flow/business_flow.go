package businessflow

import (
	"github.com/amirphl/Kaminari/app/dto"
	"github.com/amirphl/Kaminari/app/services"
	"github.com/amirphl/Kaminari/models"
)

// Push delivery modes, used as metric labels
const (
	modeBroadcast  = "broadcast"
	modeABCampaign = "ab_campaign"
	modeAutomation = "automation"
)

// ClientMetadata holds request information recorded alongside writes
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func recipientOf(sub *models.Subscriber) services.PushRecipient {
	return services.PushRecipient{
		Endpoint: sub.Endpoint,
		P256dh:   sub.P256dh,
		Auth:     sub.Auth,
	}
}

// ToNotificationDTO converts a history row for API responses
func ToNotificationDTO(n *models.NotificationRecord) dto.NotificationDTO {
	return dto.NotificationDTO{
		ID:               n.ID,
		UUID:             n.UUID.String(),
		Title:            n.Title,
		Body:             n.Body,
		URL:              n.URL,
		TotalSubscribers: n.TotalSubscribers,
		TotalSent:        n.TotalSent,
		TotalFailed:      n.TotalFailed,
		SentAt:           n.SentAt,
	}
}

// ToABCampaignDTO converts a campaign for API responses
func ToABCampaignDTO(c *models.ABCampaign) dto.ABCampaignDTO {
	return dto.ABCampaignDTO{
		ID:                 c.ID,
		UUID:               c.UUID.String(),
		Name:               c.Name,
		VariantATitle:      c.VariantATitle,
		VariantABody:       c.VariantABody,
		VariantAURL:        c.VariantAURL,
		VariantAPercentage: c.VariantAPercentage,
		VariantBTitle:      c.VariantBTitle,
		VariantBBody:       c.VariantBBody,
		VariantBURL:        c.VariantBURL,
		VariantBPercentage: c.VariantBPercentage,
		Status:             c.Status.String(),
		VariantASent:       c.VariantASent,
		VariantBSent:       c.VariantBSent,
		CreatedAt:          c.CreatedAt,
		SentAt:             c.SentAt,
		CompletedAt:        c.CompletedAt,
	}
}

// ToAutomationFlowDTO converts a flow for API responses
func ToAutomationFlowDTO(f *models.AutomationFlow) dto.AutomationFlowDTO {
	return dto.AutomationFlowDTO{
		ID:                f.ID,
		UUID:              f.UUID.String(),
		Name:              f.Name,
		TriggerDelayHours: f.TriggerDelayHours,
		Title:             f.Title,
		Body:              f.Body,
		URL:               f.URL,
		Status:            f.Status.String(),
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}
