package handlers

import (
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	businessflow "github.com/amirphl/Kaminari/business_flow"
	"github.com/gofiber/fiber/v3"
)

// ABCampaignHandlerInterface defines A/B campaign endpoints
type ABCampaignHandlerInterface interface {
	ListCampaigns(c fiber.Ctx) error
	CreateCampaign(c fiber.Ctx) error
	SendCampaign(c fiber.Ctx) error
	DeleteCampaign(c fiber.Ctx) error
}

// ABCampaignHandler implements ABCampaignHandlerInterface
type ABCampaignHandler struct {
	baseHandler
	flow businessflow.ABCampaignFlow
}

func NewABCampaignHandler(flow businessflow.ABCampaignFlow, timeout time.Duration) ABCampaignHandlerInterface {
	return &ABCampaignHandler{
		baseHandler: newBaseHandler(timeout),
		flow:        flow,
	}
}

// ListCampaigns lists all A/B campaigns
// @Summary List A/B campaigns
// @Tags Admin A/B Campaigns
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ABCampaignListResponse}
// @Router /api/v1/admin/ab-campaigns [get]
func (h *ABCampaignHandler) ListCampaigns(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/ab-campaigns")
	defer cancel()

	res, err := h.flow.ListCampaigns(ctx)
	if err != nil {
		return h.flowError(c, err, "Failed to list campaigns")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved", res)
}

// CreateCampaign creates a draft A/B campaign
// @Summary Create A/B campaign
// @Tags Admin A/B Campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateABCampaignRequest true "Campaign"
// @Success 201 {object} dto.APIResponse{data=dto.ABCampaignDTO}
// @Failure 400 {object} dto.APIResponse "Validation failed"
// @Router /api/v1/admin/ab-campaigns [post]
func (h *ABCampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateABCampaignRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/ab-campaigns")
	defer cancel()

	res, err := h.flow.CreateCampaign(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to create campaign")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created", res)
}

// SendCampaign partitions subscribers and sends both variants
// @Summary Send A/B campaign
// @Tags Admin A/B Campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.SendABCampaignResponse}
// @Failure 404 {object} dto.APIResponse "Campaign or subscribers not found"
// @Failure 409 {object} dto.APIResponse "Campaign already sent"
// @Router /api/v1/admin/ab-campaigns/{id}/send [post]
func (h *ABCampaignHandler) SendCampaign(c fiber.Ctx) error {
	id, ok, err := h.idParam(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/ab-campaigns/:id/send")
	defer cancel()

	res, err := h.flow.SendCampaign(ctx, id)
	if err != nil {
		return h.flowError(c, err, "Failed to send campaign")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign sent", res)
}

// DeleteCampaign removes a campaign
// @Summary Delete A/B campaign
// @Tags Admin A/B Campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/admin/ab-campaigns/{id} [delete]
func (h *ABCampaignHandler) DeleteCampaign(c fiber.Ctx) error {
	id, ok, err := h.idParam(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/ab-campaigns/:id")
	defer cancel()

	if err := h.flow.DeleteCampaign(ctx, id); err != nil {
		return h.flowError(c, err, "Failed to delete campaign")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign deleted", nil)
}
