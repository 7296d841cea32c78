package handlers

import (
	"strings"
	"time"

	"github.com/amirphl/Kaminari/app/dto"
	businessflow "github.com/amirphl/Kaminari/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AdminHandlerInterface defines the contract for admin auth handlers
type AdminHandlerInterface interface {
	Login(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
}

// AdminHandler implements AdminHandlerInterface
type AdminHandler struct {
	baseHandler
	flow businessflow.AdminAuthFlow
}

func NewAdminHandler(flow businessflow.AdminAuthFlow, timeout time.Duration) AdminHandlerInterface {
	return &AdminHandler{
		baseHandler: newBaseHandler(timeout),
		flow:        flow,
	}
}

// Login exchanges the operator password for an access token
// @Summary Admin login
// @Tags Admin Authentication
// @Accept json
// @Produce json
// @Param request body dto.AdminLoginRequest true "Operator password"
// @Success 200 {object} dto.APIResponse{data=dto.AdminSessionDTO} "Login successful"
// @Failure 400 {object} dto.APIResponse "Invalid request"
// @Failure 401 {object} dto.APIResponse "Incorrect password"
// @Router /api/v1/admin/auth/login [post]
func (h *AdminHandler) Login(c fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/auth/login")
	defer cancel()

	session, err := h.flow.Login(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Login failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", session)
}

// Logout revokes the presented admin token
// @Summary Admin logout
// @Tags Admin Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse "Logged out"
// @Failure 401 {object} dto.APIResponse "Invalid token"
// @Router /api/v1/admin/auth/logout [post]
func (h *AdminHandler) Logout(c fiber.Ctx) error {
	token, ok := strings.CutPrefix(c.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Bearer token required", "MISSING_TOKEN", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/auth/logout")
	defer cancel()

	if err := h.flow.Logout(ctx, token); err != nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid token", "INVALID_TOKEN", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Logged out", nil)
}
