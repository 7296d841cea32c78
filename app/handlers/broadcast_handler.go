package handlers

import (
	"strconv"
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	businessflow "github.com/amirphl/Kaminari/business_flow"
	"github.com/gofiber/fiber/v3"
)

// BroadcastHandlerInterface defines broadcast and history endpoints
type BroadcastHandlerInterface interface {
	Broadcast(c fiber.Ctx) error
	ListNotifications(c fiber.Ctx) error
	ExportNotifications(c fiber.Ctx) error
}

// BroadcastHandler implements BroadcastHandlerInterface
type BroadcastHandler struct {
	baseHandler
	broadcast businessflow.BroadcastFlow
	history   businessflow.NotificationHistoryFlow
}

func NewBroadcastHandler(broadcast businessflow.BroadcastFlow, history businessflow.NotificationHistoryFlow, timeout time.Duration) BroadcastHandlerInterface {
	return &BroadcastHandler{
		baseHandler: newBaseHandler(timeout),
		broadcast:   broadcast,
		history:     history,
	}
}

// Broadcast sends one notification to every subscriber
// @Summary Broadcast notification
// @Description Delivers to all subscribers, prunes expired subscriptions and records history
// @Tags Admin Push
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BroadcastRequest true "Notification"
// @Success 200 {object} dto.APIResponse{data=dto.BroadcastResponse}
// @Failure 400 {object} dto.APIResponse "Validation failed"
// @Failure 404 {object} dto.APIResponse "No subscribers"
// @Router /api/v1/admin/push/broadcast [post]
func (h *BroadcastHandler) Broadcast(c fiber.Ctx) error {
	var req dto.BroadcastRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/push/broadcast")
	defer cancel()

	res, err := h.broadcast.Broadcast(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "Broadcast failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Broadcast sent", res)
}

// ListNotifications returns recent broadcasts, newest first
// @Summary Notification history
// @Tags Admin Push
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max rows (capped at 50)"
// @Success 200 {object} dto.APIResponse{data=dto.NotificationListResponse}
// @Router /api/v1/admin/notifications [get]
func (h *BroadcastHandler) ListNotifications(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/notifications")
	defer cancel()

	res, err := h.history.ListRecent(ctx, limitQuery(c))
	if err != nil {
		return h.flowError(c, err, "Failed to load notification history")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Notification history", res)
}

// ExportNotifications downloads recent broadcasts as an xlsx workbook
// @Summary Export notification history
// @Tags Admin Push
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param limit query int false "Max rows (capped at 50)"
// @Success 200 {file} file
// @Router /api/v1/admin/notifications/export [get]
func (h *BroadcastHandler) ExportNotifications(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/notifications/export")
	defer cancel()

	filename, content, err := h.history.ExportRecent(ctx, limitQuery(c))
	if err != nil {
		return h.flowError(c, err, "Failed to export notification history")
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Status(fiber.StatusOK).Send(content)
}

func limitQuery(c fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}
