package handlers

import (
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	businessflow "github.com/amirphl/Kaminari/business_flow"
	"github.com/gofiber/fiber/v3"
)

// PushHandlerInterface defines the browser-facing subscription endpoints and subscriber stats
type PushHandlerInterface interface {
	VAPIDPublicKey(c fiber.Ctx) error
	Subscribe(c fiber.Ctx) error
	SubscriberCount(c fiber.Ctx) error
}

// PushHandler implements PushHandlerInterface
type PushHandler struct {
	baseHandler
	flow businessflow.SubscriberFlow
}

func NewPushHandler(flow businessflow.SubscriberFlow, timeout time.Duration) PushHandlerInterface {
	return &PushHandler{
		baseHandler: newBaseHandler(timeout),
		flow:        flow,
	}
}

// VAPIDPublicKey returns the application server key used by PushManager.subscribe
// @Summary VAPID public key
// @Tags Push
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.VAPIDPublicKeyResponse}
// @Router /api/v1/push/vapid-public-key [get]
func (h *PushHandler) VAPIDPublicKey(c fiber.Ctx) error {
	return h.SuccessResponse(c, fiber.StatusOK, "VAPID public key", h.flow.VAPIDPublicKey())
}

// Subscribe stores a browser PushSubscription
// @Summary Register push subscription
// @Description Stores the subscription; re-subscribing with a known endpoint replaces its keys
// @Tags Push
// @Accept json
// @Produce json
// @Param request body dto.SubscribeRequest true "PushSubscription JSON"
// @Success 201 {object} dto.APIResponse{data=dto.SubscribeResponse}
// @Failure 400 {object} dto.APIResponse "Invalid subscription"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/push/subscribe [post]
func (h *PushHandler) Subscribe(c fiber.Ctx) error {
	var req dto.SubscribeRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/push/subscribe")
	defer cancel()

	res, err := h.flow.Register(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to save subscription")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Subscribed", res)
}

// SubscriberCount reports the number of stored subscribers
// @Summary Subscriber count
// @Tags Admin Push
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.SubscriberCountResponse}
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/admin/subscribers/count [get]
func (h *PushHandler) SubscriberCount(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/subscribers/count")
	defer cancel()

	res, err := h.flow.Count(ctx)
	if err != nil {
		return h.flowError(c, err, "Failed to count subscribers")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Subscriber count", res)
}
