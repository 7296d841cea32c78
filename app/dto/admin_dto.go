package dto

import "time"

// AdminLoginRequest exchanges the operator shared secret for a session token
type AdminLoginRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

// AdminSessionDTO is the issued session
type AdminSessionDTO struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}
