// Package services provides external service integrations and technical concerns like push delivery and tokens
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/amirphl/Kaminari/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DeliveryOutcome classifies the result of one push attempt
type DeliveryOutcome int

const (
	DeliverySent DeliveryOutcome = iota
	DeliveryFailedTransient
	DeliveryFailedPermanent
)

// String returns the metric label of the outcome
func (o DeliveryOutcome) String() string {
	switch o {
	case DeliverySent:
		return "sent"
	case DeliveryFailedPermanent:
		return "failed_permanent"
	default:
		return "failed_transient"
	}
}

// ClassifyDelivery maps a transport answer onto an outcome. Only "gone" and
// "not found" are permanent; every other failure may succeed on a later attempt.
func ClassifyDelivery(statusCode int, err error) DeliveryOutcome {
	if err != nil {
		return DeliveryFailedTransient
	}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return DeliverySent
	case statusCode == http.StatusGone, statusCode == http.StatusNotFound:
		return DeliveryFailedPermanent
	default:
		return DeliveryFailedTransient
	}
}

// PushPayload is the JSON document the service worker receives
type PushPayload struct {
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	Icon       string  `json:"icon,omitempty"`
	Badge      string  `json:"badge,omitempty"`
	URL        *string `json:"url"`
	Timestamp  int64   `json:"timestamp,omitempty"`
	CampaignID *uint   `json:"campaign_id,omitempty"`
	Variant    string  `json:"variant,omitempty"`
	FlowID     *uint   `json:"flow_id,omitempty"`
}

// Marshal encodes the payload
func (p PushPayload) Marshal() ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push payload: %w", err)
	}
	return b, nil
}

// PushJob is one payload addressed to one recipient
type PushJob struct {
	Recipient PushRecipient
	Payload   []byte
	Mode      string // metrics label: broadcast, ab_campaign, automation
}

// DeliveryResult is the classified outcome of one PushJob
type DeliveryResult struct {
	Recipient  PushRecipient
	Outcome    DeliveryOutcome
	StatusCode int
	Err        error
}

// Sent reports whether the push service accepted the message
func (r DeliveryResult) Sent() bool {
	return r.Outcome == DeliverySent
}

// PushService delivers payloads to recipients and classifies each outcome
type PushService interface {
	Deliver(ctx context.Context, job PushJob) DeliveryResult
	DeliverAll(ctx context.Context, jobs []PushJob) []DeliveryResult
}

// PushServiceOptions tunes the delivery worker pool
type PushServiceOptions struct {
	Workers        int
	RatePerSecond  float64
	RateBurst      int
	RequestTimeout time.Duration
}

// PushServiceImpl implements PushService on top of a PushTransport
type PushServiceImpl struct {
	transport PushTransport
	limiter   *rate.Limiter
	workers   int
	timeout   time.Duration
	logger    *log.Logger
}

// NewPushService creates a delivery engine; a nil logger falls back to log.Default()
func NewPushService(transport PushTransport, opts PushServiceOptions, logger *log.Logger) PushService {
	if logger == nil {
		logger = log.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 16
	}
	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return &PushServiceImpl{
		transport: transport,
		limiter:   limiter,
		workers:   workers,
		timeout:   opts.RequestTimeout,
		logger:    logger,
	}
}

// Deliver sends one job and classifies the result. It never returns an error;
// failures are part of the result so callers can tally them.
func (s *PushServiceImpl) Deliver(ctx context.Context, job PushJob) DeliveryResult {
	start := time.Now()
	result := DeliveryResult{Recipient: job.Recipient}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			result.Outcome = DeliveryFailedTransient
			result.Err = err
			observeDelivery(job.Mode, result.Outcome, time.Since(start))
			return result
		}
	}

	sendCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result.StatusCode, result.Err = s.transport.Send(sendCtx, job.Recipient, job.Payload)
	result.Outcome = ClassifyDelivery(result.StatusCode, result.Err)
	observeDelivery(job.Mode, result.Outcome, time.Since(start))

	if !result.Sent() {
		s.logger.Printf("push: delivery to %s failed (%s): status=%d err=%v",
			utils.ShortEndpoint(job.Recipient.Endpoint), result.Outcome, result.StatusCode, result.Err)
	}
	return result
}

// DeliverAll fans jobs out over the worker pool and returns one result per job, in job order
func (s *PushServiceImpl) DeliverAll(ctx context.Context, jobs []PushJob) []DeliveryResult {
	results := make([]DeliveryResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range jobs {
		g.Go(func() error {
			results[i] = s.Deliver(ctx, jobs[i])
			return nil
		})
	}
	_ = g.Wait()

	return results
}
