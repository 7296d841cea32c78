package dto

import "time"

// CreateABCampaignRequest creates a draft A/B campaign.
// VariantBPercentage may be omitted; it then defaults to 100 - VariantAPercentage.
type CreateABCampaignRequest struct {
	Name               string  `json:"name" validate:"required,max=255"`
	VariantATitle      string  `json:"variant_a_title" validate:"required,max=255"`
	VariantABody       string  `json:"variant_a_body" validate:"required,max=2000"`
	VariantAURL        *string `json:"variant_a_url,omitempty" validate:"omitempty,max=2048"`
	VariantAPercentage int     `json:"variant_a_percentage" validate:"gte=1,lte=99"`
	VariantBTitle      string  `json:"variant_b_title" validate:"required,max=255"`
	VariantBBody       string  `json:"variant_b_body" validate:"required,max=2000"`
	VariantBURL        *string `json:"variant_b_url,omitempty" validate:"omitempty,max=2048"`
	VariantBPercentage *int    `json:"variant_b_percentage,omitempty" validate:"omitempty,gte=1,lte=99"`
}

// ABCampaignDTO is the API view of a campaign
type ABCampaignDTO struct {
	ID                 uint       `json:"id"`
	UUID               string     `json:"uuid"`
	Name               string     `json:"name"`
	VariantATitle      string     `json:"variant_a_title"`
	VariantABody       string     `json:"variant_a_body"`
	VariantAURL        *string    `json:"variant_a_url,omitempty"`
	VariantAPercentage int        `json:"variant_a_percentage"`
	VariantBTitle      string     `json:"variant_b_title"`
	VariantBBody       string     `json:"variant_b_body"`
	VariantBURL        *string    `json:"variant_b_url,omitempty"`
	VariantBPercentage int        `json:"variant_b_percentage"`
	Status             string     `json:"status"`
	VariantASent       int        `json:"variant_a_sent"`
	VariantBSent       int        `json:"variant_b_sent"`
	CreatedAt          time.Time  `json:"created_at"`
	SentAt             *time.Time `json:"sent_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// ABCampaignListResponse wraps the campaign listing
type ABCampaignListResponse struct {
	Campaigns []ABCampaignDTO `json:"campaigns"`
}

// SendABCampaignResponse reports per-variant tallies
type SendABCampaignResponse struct {
	VariantASent     int `json:"variant_a_sent"`
	VariantBSent     int `json:"variant_b_sent"`
	TotalSubscribers int `json:"total_subscribers"`
}
