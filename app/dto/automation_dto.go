package dto

import "time"

// CreateAutomationFlowRequest creates an active automation flow
type CreateAutomationFlowRequest struct {
	Name              string  `json:"name" validate:"required,max=255"`
	TriggerDelayHours int     `json:"trigger_delay_hours" validate:"gte=1"`
	Title             string  `json:"title" validate:"required,max=255"`
	Body              string  `json:"body" validate:"required,max=2000"`
	URL               *string `json:"url,omitempty" validate:"omitempty,max=2048"`
}

// UpdateAutomationFlowRequest edits a live flow; nil fields are left untouched
type UpdateAutomationFlowRequest struct {
	Name              *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	TriggerDelayHours *int    `json:"trigger_delay_hours,omitempty" validate:"omitempty,gte=1"`
	Title             *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Body              *string `json:"body,omitempty" validate:"omitempty,min=1,max=2000"`
	URL               *string `json:"url,omitempty" validate:"omitempty,max=2048"`
}

// ToggleAutomationFlowRequest sets active or paused; empty flips the current state
type ToggleAutomationFlowRequest struct {
	Status string `json:"status,omitempty" validate:"omitempty,oneof=active paused"`
}

// AutomationFlowDTO is the API view of a flow
type AutomationFlowDTO struct {
	ID                uint       `json:"id"`
	UUID              string     `json:"uuid"`
	Name              string     `json:"name"`
	TriggerDelayHours int        `json:"trigger_delay_hours"`
	Title             string     `json:"title"`
	Body              string     `json:"body"`
	URL               *string    `json:"url,omitempty"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// AutomationFlowListResponse wraps the flow listing
type AutomationFlowListResponse struct {
	Flows []AutomationFlowDTO `json:"flows"`
}

// AutomationTickResponse reports one scheduler tick; never per-subscriber detail
type AutomationTickResponse struct {
	TotalSent   int       `json:"total_sent"`
	ProcessedAt time.Time `json:"processed_at"`
}
