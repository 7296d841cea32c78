package handlers

import (
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	businessflow "github.com/amirphl/Kaminari/business_flow"
	"github.com/amirphl/Kaminari/utils"
	"github.com/gofiber/fiber/v3"
)

// AutomationHandlerInterface defines automation flow endpoints and the tick trigger
type AutomationHandlerInterface interface {
	ListFlows(c fiber.Ctx) error
	CreateFlow(c fiber.Ctx) error
	UpdateFlow(c fiber.Ctx) error
	ToggleFlow(c fiber.Ctx) error
	DeleteFlow(c fiber.Ctx) error
	ProcessTick(c fiber.Ctx) error
}

// AutomationHandler implements AutomationHandlerInterface
type AutomationHandler struct {
	baseHandler
	flow businessflow.AutomationFlow
}

func NewAutomationHandler(flow businessflow.AutomationFlow, timeout time.Duration) AutomationHandlerInterface {
	return &AutomationHandler{
		baseHandler: newBaseHandler(timeout),
		flow:        flow,
	}
}

// ListFlows lists non-deleted automation flows
// @Summary List automation flows
// @Tags Admin Automations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.AutomationFlowListResponse}
// @Router /api/v1/admin/automations [get]
func (h *AutomationHandler) ListFlows(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/automations")
	defer cancel()

	res, err := h.flow.ListFlows(ctx)
	if err != nil {
		return h.flowError(c, err, "Failed to list automation flows")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Automation flows retrieved", res)
}

// CreateFlow creates an active automation flow
// @Summary Create automation flow
// @Tags Admin Automations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateAutomationFlowRequest true "Flow"
// @Success 201 {object} dto.APIResponse{data=dto.AutomationFlowDTO}
// @Failure 400 {object} dto.APIResponse "Validation failed"
// @Router /api/v1/admin/automations [post]
func (h *AutomationHandler) CreateFlow(c fiber.Ctx) error {
	var req dto.CreateAutomationFlowRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/automations")
	defer cancel()

	res, err := h.flow.CreateFlow(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to create automation flow")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Automation flow created", res)
}

// UpdateFlow edits a live automation flow
// @Summary Update automation flow
// @Tags Admin Automations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Flow ID"
// @Param request body dto.UpdateAutomationFlowRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.AutomationFlowDTO}
// @Failure 404 {object} dto.APIResponse "Flow not found"
// @Failure 409 {object} dto.APIResponse "Flow deleted"
// @Router /api/v1/admin/automations/{id} [put]
func (h *AutomationHandler) UpdateFlow(c fiber.Ctx) error {
	id, ok, err := h.idParam(c, "id")
	if !ok {
		return err
	}
	var req dto.UpdateAutomationFlowRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/automations/:id")
	defer cancel()

	res, err := h.flow.UpdateFlow(ctx, id, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to update automation flow")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Automation flow updated", res)
}

// ToggleFlow pauses or resumes a flow; an empty body flips the current state
// @Summary Toggle automation flow
// @Tags Admin Automations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Flow ID"
// @Param request body dto.ToggleAutomationFlowRequest false "Target status"
// @Success 200 {object} dto.APIResponse{data=dto.AutomationFlowDTO}
// @Failure 409 {object} dto.APIResponse "Flow deleted or invalid transition"
// @Router /api/v1/admin/automations/{id}/toggle [post]
func (h *AutomationHandler) ToggleFlow(c fiber.Ctx) error {
	id, ok, err := h.idParam(c, "id")
	if !ok {
		return err
	}
	var req dto.ToggleAutomationFlowRequest
	if len(c.Body()) > 0 {
		if ok, err := h.bindAndValidate(c, &req); !ok {
			return err
		}
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/automations/:id/toggle")
	defer cancel()

	res, err := h.flow.ToggleFlow(ctx, id, &req)
	if err != nil {
		return h.flowError(c, err, "Failed to toggle automation flow")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Automation flow status changed", res)
}

// DeleteFlow soft-deletes a flow
// @Summary Delete automation flow
// @Tags Admin Automations
// @Produce json
// @Security BearerAuth
// @Param id path int true "Flow ID"
// @Success 200 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse "Flow not found"
// @Router /api/v1/admin/automations/{id} [delete]
func (h *AutomationHandler) DeleteFlow(c fiber.Ctx) error {
	id, ok, err := h.idParam(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/automations/:id")
	defer cancel()

	if err := h.flow.DeleteFlow(ctx, id); err != nil {
		return h.flowError(c, err, "Failed to delete automation flow")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Automation flow deleted", nil)
}

// ProcessTick runs one automation tick; mounted for both the operator and the external cron
// @Summary Run automation tick
// @Tags Automations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.AutomationTickResponse}
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/cron/automation [get]
// @Router /api/v1/admin/automations/process [post]
func (h *AutomationHandler) ProcessTick(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, c.Path())
	defer cancel()

	res, err := h.flow.ProcessTick(ctx, utils.UTCNow())
	if err != nil {
		return h.flowError(c, err, "Automation tick failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Automation tick processed", res)
}
