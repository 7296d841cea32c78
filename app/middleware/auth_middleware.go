// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/amirphl/Kaminari/app/dto"
	"github.com/amirphl/Kaminari/app/services"
	"github.com/gofiber/fiber/v3"
)

// AdminPasswordHeader lets scripts authenticate with the operator password instead of a token
const AdminPasswordHeader = "X-Admin-Password"

// PasswordChecker verifies the operator password
type PasswordChecker interface {
	CheckPassword(password string) error
}

// AuthMiddleware guards admin and cron endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
	passwords    PasswordChecker
	cronSecret   string
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService, passwords PasswordChecker, cronSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		passwords:    passwords,
		cronSecret:   cronSecret,
	}
}

// Guard names used as the "guard" label of auth rejections
const (
	guardAdmin = "admin"
	guardCron  = "cron"
)

func unauthorized(c fiber.Ctx, guard, message, code string) error {
	authRejectionsTotal.WithLabelValues(guard, code).Inc()
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// AdminAuthenticate accepts either a Bearer admin token or the X-Admin-Password header
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		if password := c.Get(AdminPasswordHeader); password != "" {
			if m.passwords == nil || m.passwords.CheckPassword(password) != nil {
				return unauthorized(c, guardAdmin, "Invalid admin password", "INVALID_ADMIN_PASSWORD")
			}
			c.Locals("admin_auth", "password")
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, guardAdmin, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}

		// Check Bearer format
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, guardAdmin, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return unauthorized(c, guardAdmin, "Access token is required", "MISSING_ACCESS_TOKEN")
		}

		claims, err := m.tokenService.ValidateAdminToken(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, guardAdmin, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenRevoked):
				return unauthorized(c, guardAdmin, "Access token has been revoked", "TOKEN_REVOKED")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, guardAdmin, "Invalid access token", "TOKEN_INVALID")
			default:
				return unauthorized(c, guardAdmin, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}

		c.Locals("admin_auth", "token")
		c.Locals("token_id", claims.TokenID)
		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// CronAuthenticate requires "Authorization: Bearer <CRON_SECRET>"
func (m *AuthMiddleware) CronAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		if m.cronSecret == "" {
			return unauthorized(c, guardCron, "Cron trigger is not configured", "CRON_NOT_CONFIGURED")
		}
		token, ok := strings.CutPrefix(c.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(m.cronSecret)) != 1 {
			return unauthorized(c, guardCron, "Invalid cron secret", "INVALID_CRON_SECRET")
		}
		return c.Next()
	}
}
