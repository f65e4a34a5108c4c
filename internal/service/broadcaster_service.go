package service

import (
	"context"
	"sync"

	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"
	"webhook-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BroadcasterService implements ports.Broadcaster. Publish returns as soon
// as the matching subscriptions are known; deliveries run in their own
// goroutines and report only through the delivery log.
type BroadcasterService struct {
	subRepo    ports.SubscriptionRepository
	dispatcher ports.Dispatcher
	bus        *EventBus
	inflight   sync.WaitGroup
	log        zerolog.Logger
}

// NewBroadcaster creates the fan-out broadcaster.
func NewBroadcaster(
	subRepo ports.SubscriptionRepository,
	dispatcher ports.Dispatcher,
	bus *EventBus,
	log zerolog.Logger,
) *BroadcasterService {
	return &BroadcasterService{
		subRepo:    subRepo,
		dispatcher: dispatcher,
		bus:        bus,
		log:        log,
	}
}

// Publish looks up active subscriptions matching the event type and tenant
// scope, starts one delivery goroutine per match and returns the match count.
// A slow or hanging receiver cannot delay any other receiver, nor the caller.
func (s *BroadcasterService) Publish(ctx context.Context, eventType string, data map[string]any, companyID *uuid.UUID) (int, error) {
	subs, err := s.subRepo.FindActiveMatching(ctx, eventType, companyID)
	if err != nil {
		return 0, apperror.ErrDatabaseError(err)
	}

	// Deliveries outlive the publishing request.
	deliveryCtx := context.WithoutCancel(ctx)
	for i := range subs {
		sub := subs[i]
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.dispatcher.Deliver(deliveryCtx, &sub, eventType, data)
		}()
	}

	s.bus.Publish(domain.Event{Type: eventType, Data: data, CompanyID: companyID})

	s.log.Info().
		Str("event_type", eventType).
		Int("matched", len(subs)).
		Msg("event published")

	return len(subs), nil
}

// Drain blocks until in-flight deliveries finish or the context expires.
// Used during graceful shutdown.
func (s *BroadcasterService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
