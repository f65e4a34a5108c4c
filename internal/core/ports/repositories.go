package ports

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

import (
	"context"

	"webhook-engine/internal/core/domain"

	"github.com/google/uuid"
)

// SubscriptionRepository defines persistence operations for webhook
// subscriptions. Implementations must tolerate concurrent writers;
// Deactivate and Activate are idempotent (last write wins).
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)
	ListByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]domain.Subscription, error)
	// FindActiveMatching returns active subscriptions whose event set
	// contains eventType. A non-nil companyID restricts the result to
	// subscriptions scoped to exactly that company; nil returns all active
	// matches regardless of scope.
	FindActiveMatching(ctx context.Context, eventType string, companyID *uuid.UUID) ([]domain.Subscription, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Activate(ctx context.Context, id uuid.UUID) error
}

// DeliveryLogRepository is the append-only log of delivery attempts.
// Attempts are never edited or deleted, and outlive their subscription.
type DeliveryLogRepository interface {
	Create(ctx context.Context, attempt *domain.DeliveryAttempt) error
	// RecentBySubscription returns up to limit attempts, most recent first.
	RecentBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]domain.DeliveryAttempt, error)
}
