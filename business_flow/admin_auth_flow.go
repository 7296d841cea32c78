package businessflow

import (
	"context"
	"crypto/subtle"
	"log"

	"github.com/amirphl/Kaminari/app/dto"
	"github.com/amirphl/Kaminari/app/services"
	"github.com/amirphl/Kaminari/config"
	"github.com/amirphl/Kaminari/models"
	"github.com/amirphl/Kaminari/utils"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthFlow exchanges the operator shared secret for a session token
type AdminAuthFlow interface {
	Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminSessionDTO, error)
	Logout(ctx context.Context, token string) error
	CheckPassword(password string) error
}

// AdminAuthFlowImpl implements AdminAuthFlow
type AdminAuthFlowImpl struct {
	adminConfig  config.AdminConfig
	tokenService services.TokenService
	auditor      *Auditor
	logger       *log.Logger
}

// NewAdminAuthFlow creates a new admin auth flow
func NewAdminAuthFlow(adminConfig config.AdminConfig, tokenService services.TokenService, auditor *Auditor, logger *log.Logger) AdminAuthFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &AdminAuthFlowImpl{
		adminConfig:  adminConfig,
		tokenService: tokenService,
		auditor:      auditor,
		logger:       logger,
	}
}

// CheckPassword compares against the bcrypt hash when configured, else the plaintext secret
func (af *AdminAuthFlowImpl) CheckPassword(password string) error {
	if password == "" {
		return ErrIncorrectPassword
	}
	if af.adminConfig.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(af.adminConfig.PasswordHash), []byte(password)); err != nil {
			return ErrIncorrectPassword
		}
		return nil
	}
	if af.adminConfig.Password == "" {
		return ErrAdminAuthNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(af.adminConfig.Password), []byte(password)) != 1 {
		return ErrIncorrectPassword
	}
	return nil
}

// Login verifies the password and issues an admin access token
func (af *AdminAuthFlowImpl) Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminSessionDTO, error) {
	if req == nil {
		return nil, NewBusinessError("ADMIN_LOGIN_VALIDATION_FAILED", "Password is required", ErrIncorrectPassword)
	}

	if err := af.CheckPassword(req.Password); err != nil {
		if metadata != nil {
			af.logger.Printf("admin: failed login from %s (%s)", metadata.IPAddress, metadata.RequestID)
		}
		af.auditor.Record(ctx, models.AuditActionAdminLoginFailed, "admin login failed", err, nil, metadata)
		if IsAdminAuthNotConfigured(err) {
			return nil, NewBusinessError("ADMIN_AUTH_NOT_CONFIGURED", "Admin authentication is not configured", err)
		}
		return nil, NewBusinessError("ADMIN_LOGIN_FAILED", "Incorrect password", err)
	}

	token, expiresAt, err := af.tokenService.GenerateAdminToken()
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate admin token", err)
	}
	af.auditor.Record(ctx, models.AuditActionAdminLoginSuccess, "admin login", nil, nil, metadata)

	return &dto.AdminSessionDTO{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(expiresAt.Sub(utils.UTCNow()).Seconds()),
		ExpiresAt:   expiresAt,
	}, nil
}

// Logout revokes the given admin token
func (af *AdminAuthFlowImpl) Logout(ctx context.Context, token string) error {
	if err := af.tokenService.RevokeToken(token); err != nil {
		return NewBusinessError("ADMIN_LOGOUT_FAILED", "Failed to revoke token", err)
	}
	af.auditor.Record(ctx, models.AuditActionAdminLogout, "admin logout", nil, nil, nil)
	return nil
}
