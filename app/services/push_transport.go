package services

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/amirphl/Kaminari/config"
)

// PushRecipient is the addressing and encryption material of one browser subscription
type PushRecipient struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// PushTransport sends an encrypted payload to one push endpoint and reports the HTTP status
// the push service answered with. A non-nil error means no status was obtained.
type PushTransport interface {
	Send(ctx context.Context, recipient PushRecipient, payload []byte) (int, error)
}

// WebPushTransport implements PushTransport with VAPID-signed web push requests
type WebPushTransport struct {
	cfg    config.PushConfig
	client *http.Client
}

// NewWebPushTransport creates a transport bound to the configured VAPID key pair
func NewWebPushTransport(cfg config.PushConfig) *WebPushTransport {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebPushTransport{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: max(cfg.Workers, 2),
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Send implements PushTransport
func (t *WebPushTransport) Send(ctx context.Context, recipient PushRecipient, payload []byte) (int, error) {
	sub := &webpush.Subscription{
		Endpoint: recipient.Endpoint,
		Keys: webpush.Keys{
			P256dh: recipient.P256dh,
			Auth:   recipient.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
		HTTPClient:      t.client,
		Subscriber:      t.cfg.Subject,
		VAPIDPublicKey:  t.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: t.cfg.VAPIDPrivateKey,
		TTL:             t.cfg.TTL,
		Urgency:         webpush.Urgency(t.cfg.Urgency),
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	return resp.StatusCode, nil
}
