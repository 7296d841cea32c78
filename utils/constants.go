package utils

import (
	"time"
)

type contextKey string

// Request-scoped context keys set by handlers
const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	TimeoutKey    contextKey = "timeout"
)

// Token time constants
const (
	// AdminAccessTokenTTL is the time-to-live for admin access tokens (12 hours)
	AdminAccessTokenTTL = 12 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// API surface constants
const (
	APIPrefix        = "/api/v1"
	MetricsNamespace = "kaminari"
)

// Push delivery constants
const (
	DefaultNotificationIcon  = "/logo.webp"
	DefaultNotificationBadge = "/logo.webp"
	DefaultNotificationURL   = "/"

	// RecentNotificationsLimit caps the history listing
	RecentNotificationsLimit = 50

	VariantA = "A"
	VariantB = "B"
)

// Redis key prefixes
const (
	AutomationTickLockKey    = "lock:automation:tick"
	ABCampaignSendLockPrefix = "lock:ab_campaign:send:"
	SubscriberCountCacheKey  = "cache:subscribers:count"
)
