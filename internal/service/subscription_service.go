package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"
	"webhook-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// secretBytes gives subscribers a 256-bit signing secret.
	secretBytes = 32

	defaultDeliveryHistoryLimit = 10
	maxDeliveryHistoryLimit     = 100
)

// subscriptionService implements ports.SubscriptionService.
type subscriptionService struct {
	subRepo      ports.SubscriptionRepository
	deliveryRepo ports.DeliveryLogRepository
	encSvc       ports.EncryptionService
	log          zerolog.Logger
}

// NewSubscriptionService creates the subscription management service.
func NewSubscriptionService(
	subRepo ports.SubscriptionRepository,
	deliveryRepo ports.DeliveryLogRepository,
	encSvc ports.EncryptionService,
	log zerolog.Logger,
) ports.SubscriptionService {
	return &subscriptionService{
		subRepo:      subRepo,
		deliveryRepo: deliveryRepo,
		encSvc:       encSvc,
		log:          log,
	}
}

// Register creates a subscription with a fresh signing secret. The plaintext
// secret is returned exactly once; only the encrypted form is persisted.
func (s *subscriptionService) Register(ctx context.Context, principal *domain.Principal, targetURL string, events []string) (*ports.RegisteredSubscription, error) {
	events = domain.NormalizeEvents(events)
	if len(events) == 0 {
		return nil, apperror.ErrEmptyEventList()
	}
	if !isValidTargetURL(targetURL) {
		return nil, apperror.ErrInvalidTargetURL()
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	secretEnc, err := s.encSvc.Encrypt(secret)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	now := time.Now().UTC()
	sub := &domain.Subscription{
		ID:               uuid.New(),
		OwnerUserID:      principal.UserID,
		CompanyID:        principal.CompanyID,
		TargetURL:        targetURL,
		SubscribedEvents: events,
		SecretEnc:        secretEnc,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("subscription_id", sub.ID.String()).
		Str("owner_user_id", sub.OwnerUserID.String()).
		Strs("events", sub.SubscribedEvents).
		Msg("webhook subscription registered")

	return &ports.RegisteredSubscription{Subscription: *sub, Secret: secret}, nil
}

// ListForOwner returns the caller's subscriptions. Secrets stay encrypted
// and are never serialized.
func (s *subscriptionService) ListForOwner(ctx context.Context, ownerUserID uuid.UUID) ([]domain.Subscription, error) {
	subs, err := s.subRepo.ListByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return subs, nil
}

// Deactivate disables a subscription. Idempotent: disabling an inactive
// subscription is a no-op.
func (s *subscriptionService) Deactivate(ctx context.Context, ownerUserID, id uuid.UUID) error {
	if _, err := s.getOwned(ctx, ownerUserID, id); err != nil {
		return err
	}
	if err := s.subRepo.Deactivate(ctx, id); err != nil {
		return apperror.ErrDatabaseError(err)
	}
	return nil
}

// Activate re-enables a subscription. This is the only path back from an
// auto-disable; the health monitor never reactivates on its own.
func (s *subscriptionService) Activate(ctx context.Context, ownerUserID, id uuid.UUID) error {
	if _, err := s.getOwned(ctx, ownerUserID, id); err != nil {
		return err
	}
	if err := s.subRepo.Activate(ctx, id); err != nil {
		return apperror.ErrDatabaseError(err)
	}
	return nil
}

// RecentDeliveries returns the most recent delivery attempts for an owned
// subscription, newest first.
func (s *subscriptionService) RecentDeliveries(ctx context.Context, ownerUserID, id uuid.UUID, limit int) ([]domain.DeliveryAttempt, error) {
	if _, err := s.getOwned(ctx, ownerUserID, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultDeliveryHistoryLimit
	}
	if limit > maxDeliveryHistoryLimit {
		limit = maxDeliveryHistoryLimit
	}

	attempts, err := s.deliveryRepo.RecentBySubscription(ctx, id, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return attempts, nil
}

// getOwned fetches a subscription and verifies ownership. Foreign and
// missing subscriptions are indistinguishable to the caller.
func (s *subscriptionService) getOwned(ctx context.Context, ownerUserID, id uuid.UUID) (*domain.Subscription, error) {
	sub, err := s.subRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if sub == nil || sub.OwnerUserID != ownerUserID {
		return nil, apperror.ErrSubscriptionNotFound()
	}
	return sub, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func isValidTargetURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
