package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Webhook delivery headers. Receivers verify the signature against the raw
// request body using their subscription secret.
const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-Id"
)

// HTTPClient abstracts the outbound HTTP client for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// dispatcherService implements ports.Dispatcher. One Deliver call is one
// attempt: no retries, and every attempt is recorded before the health
// monitor runs.
type dispatcherService struct {
	client        HTTPClient
	encSvc        ports.EncryptionService
	sigSvc        ports.SignatureService
	deliveryRepo  ports.DeliveryLogRepository
	healthMonitor ports.HealthMonitor
	timeout       time.Duration
	log           zerolog.Logger
}

// NewDispatcher creates the delivery dispatcher. The timeout bounds each
// outbound request independently of the caller's context.
func NewDispatcher(
	client HTTPClient,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	deliveryRepo ports.DeliveryLogRepository,
	healthMonitor ports.HealthMonitor,
	timeout time.Duration,
	log zerolog.Logger,
) ports.Dispatcher {
	return &dispatcherService{
		client:        client,
		encSvc:        encSvc,
		sigSvc:        sigSvc,
		deliveryRepo:  deliveryRepo,
		healthMonitor: healthMonitor,
		timeout:       timeout,
		log:           log,
	}
}

// Deliver sends one signed POST to the subscription's target URL. Any HTTP
// response, success or error status, counts as a completed request; only
// transport-level failures leave the status empty. The attempt is always
// recorded and the subscription's health re-evaluated, whatever the outcome.
func (s *dispatcherService) Deliver(ctx context.Context, sub *domain.Subscription, eventType string, data map[string]any) ports.DeliveryResult {
	// WebhookID identifies the subscription so receivers with several
	// registrations can pick the right secret for signature verification.
	envelope := domain.Envelope{
		Event:     eventType,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
		WebhookID: sub.ID.String(),
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return s.finish(ctx, sub, eventType, "", ports.DeliveryResult{
			Error: fmt.Sprintf("marshaling envelope: %v", err),
		})
	}
	payload := string(body)

	secret, err := s.encSvc.Decrypt(sub.SecretEnc)
	if err != nil {
		return s.finish(ctx, sub, eventType, payload, ports.DeliveryResult{
			Error: fmt.Sprintf("decrypting subscription secret: %v", err),
		})
	}
	signature := s.sigSvc.Sign(secret, payload)

	// Delivery outlives the publishing request; only the per-attempt timeout
	// applies.
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, sub.TargetURL, bytes.NewReader(body))
	if err != nil {
		return s.finish(ctx, sub, eventType, payload, ports.DeliveryResult{
			Error: fmt.Sprintf("building request: %v", err),
		})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(envelope.Timestamp, 10))
	req.Header.Set(HeaderID, envelope.WebhookID)

	resp, err := s.client.Do(req)
	if err != nil {
		return s.finish(ctx, sub, eventType, payload, ports.DeliveryResult{
			Error: fmt.Sprintf("request failed: %v", err),
		})
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	status := resp.StatusCode
	result := ports.DeliveryResult{Status: &status, Success: status < 400}
	if !result.Success {
		result.Error = fmt.Sprintf("endpoint returned status %d", status)
	}
	return s.finish(ctx, sub, eventType, payload, result)
}

// finish records the attempt and triggers a health evaluation. A failed log
// write is logged and swallowed; it never affects the delivery result.
func (s *dispatcherService) finish(ctx context.Context, sub *domain.Subscription, eventType, payload string, result ports.DeliveryResult) ports.DeliveryResult {
	attempt := &domain.DeliveryAttempt{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		EventType:      eventType,
		Payload:        payload,
		ResponseStatus: result.Status,
		CreatedAt:      time.Now().UTC(),
	}
	if result.Error != "" {
		attempt.ErrorMessage = &result.Error
	}

	logCtx := context.WithoutCancel(ctx)
	if err := s.deliveryRepo.Create(logCtx, attempt); err != nil {
		s.log.Error().Err(err).
			Str("subscription_id", sub.ID.String()).
			Str("event_type", eventType).
			Msg("failed to record delivery attempt")
	}

	if result.Success {
		s.log.Debug().
			Str("subscription_id", sub.ID.String()).
			Str("event_type", eventType).
			Int("status", *result.Status).
			Msg("webhook delivered")
	} else {
		s.log.Warn().
			Str("subscription_id", sub.ID.String()).
			Str("event_type", eventType).
			Str("error", result.Error).
			Msg("webhook delivery failed")
	}

	s.healthMonitor.Evaluate(logCtx, sub.ID)
	return result
}
