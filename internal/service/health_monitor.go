package service

import (
	"context"

	"webhook-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// healthMonitor implements ports.HealthMonitor. It inspects a bounded window
// of recent delivery attempts and disables a subscription once the newest
// attempts are all failures with no success in between.
type healthMonitor struct {
	subRepo          ports.SubscriptionRepository
	deliveryRepo     ports.DeliveryLogRepository
	failureThreshold int
	recentWindow     int
	log              zerolog.Logger
}

// NewHealthMonitor creates the endpoint health monitor. With the default
// settings a subscription is disabled after 10 consecutive failed attempts.
func NewHealthMonitor(
	subRepo ports.SubscriptionRepository,
	deliveryRepo ports.DeliveryLogRepository,
	failureThreshold int,
	recentWindow int,
	log zerolog.Logger,
) ports.HealthMonitor {
	return &healthMonitor{
		subRepo:          subRepo,
		deliveryRepo:     deliveryRepo,
		failureThreshold: failureThreshold,
		recentWindow:     recentWindow,
		log:              log,
	}
}

// Evaluate counts consecutive failures from the most recent attempt backward,
// stopping at the first success. At the threshold the subscription is
// deactivated. Errors are logged and swallowed: health evaluation never
// disturbs the delivery path.
func (s *healthMonitor) Evaluate(ctx context.Context, subscriptionID uuid.UUID) {
	attempts, err := s.deliveryRepo.RecentBySubscription(ctx, subscriptionID, s.recentWindow)
	if err != nil {
		s.log.Error().Err(err).
			Str("subscription_id", subscriptionID.String()).
			Msg("health check could not load delivery history")
		return
	}

	consecutive := 0
	for _, attempt := range attempts { // newest first
		if !attempt.IsFailure() {
			break
		}
		consecutive++
	}
	if consecutive < s.failureThreshold {
		return
	}

	if err := s.subRepo.Deactivate(ctx, subscriptionID); err != nil {
		s.log.Error().Err(err).
			Str("subscription_id", subscriptionID.String()).
			Msg("failed to deactivate unhealthy subscription")
		return
	}

	s.log.Warn().
		Str("subscription_id", subscriptionID.String()).
		Int("consecutive_failures", consecutive).
		Msg("subscription auto-disabled after repeated delivery failures")
}
