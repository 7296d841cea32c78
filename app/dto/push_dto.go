package dto

import "time"

// SubscriptionKeys mirrors PushSubscription.toJSON().keys in the browser
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}

// SubscribeRequest is the browser's PushSubscription JSON
type SubscribeRequest struct {
	Endpoint string           `json:"endpoint" validate:"required,url"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscribeResponse confirms a stored subscription
type SubscribeResponse struct {
	ID uint `json:"id"`
}

// VAPIDPublicKeyResponse exposes the application server key for PushManager.subscribe
type VAPIDPublicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

// SubscriberCountResponse reports the number of subscribers
type SubscriberCountResponse struct {
	Count int64 `json:"count"`
}

// BroadcastRequest sends one message to every subscriber
type BroadcastRequest struct {
	Title string  `json:"title" validate:"required,max=255"`
	Body  string  `json:"body" validate:"required,max=2000"`
	URL   *string `json:"url,omitempty" validate:"omitempty,max=2048"`
}

// BroadcastResponse reports broadcast tallies
type BroadcastResponse struct {
	TotalSubscribers int `json:"total_subscribers"`
	TotalSent        int `json:"total_sent"`
	TotalFailed      int `json:"total_failed"`
	RemovedInvalid   int `json:"removed_invalid"`
}

// NotificationDTO is one history row
type NotificationDTO struct {
	ID               uint      `json:"id"`
	UUID             string    `json:"uuid"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	URL              *string   `json:"url,omitempty"`
	TotalSubscribers int       `json:"total_subscribers"`
	TotalSent        int       `json:"total_sent"`
	TotalFailed      int       `json:"total_failed"`
	SentAt           time.Time `json:"sent_at"`
}

// NotificationListResponse wraps recent history
type NotificationListResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
}
