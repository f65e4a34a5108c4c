package ports

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

import (
	"context"

	"webhook-engine/internal/core/domain"

	"github.com/google/uuid"
)

// SignatureService handles HMAC-SHA256 signing and verification of webhook
// payloads.
type SignatureService interface {
	Sign(secret string, payload string) string
	// Verify returns false on any mismatch or malformed signature; it uses a
	// constant-time comparison and never panics.
	Verify(secret string, payload string, signature string) bool
}

// EncryptionService handles AES-256-GCM encryption of subscription secrets
// at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// TokenVerifier validates platform-issued bearer tokens. The engine never
// issues tokens; identity lives outside this service.
type TokenVerifier interface {
	Validate(tokenString string) (*domain.Principal, error)
}

// RegisteredSubscription is the registration result. Secret is the plaintext
// signing secret, shown exactly once at creation.
type RegisteredSubscription struct {
	Subscription domain.Subscription
	Secret       string
}

// SubscriptionService defines subscription management business logic. All
// mutating operations check ownership.
type SubscriptionService interface {
	Register(ctx context.Context, principal *domain.Principal, targetURL string, events []string) (*RegisteredSubscription, error)
	ListForOwner(ctx context.Context, ownerUserID uuid.UUID) ([]domain.Subscription, error)
	Deactivate(ctx context.Context, ownerUserID, id uuid.UUID) error
	// Activate is the explicit owner action that re-enables a subscription,
	// including one switched off by the health monitor.
	Activate(ctx context.Context, ownerUserID, id uuid.UUID) error
	RecentDeliveries(ctx context.Context, ownerUserID, id uuid.UUID, limit int) ([]domain.DeliveryAttempt, error)
}

// DeliveryResult is the outcome of a single dispatch attempt.
type DeliveryResult struct {
	Success bool
	Status  *int // nil when the request never completed
	Error   string
}

// Dispatcher performs one signed HTTP delivery to one subscription, records
// the attempt and feeds the health monitor. It never returns an error:
// delivery failures are absorbed into the result and the log.
type Dispatcher interface {
	Deliver(ctx context.Context, sub *domain.Subscription, eventType string, data map[string]any) DeliveryResult
}

// HealthMonitor inspects recent delivery history for a subscription and
// deactivates it after too many consecutive failures.
type HealthMonitor interface {
	Evaluate(ctx context.Context, subscriptionID uuid.UUID)
}

// Broadcaster is the public entry point for event publication. Publish fans
// out one concurrent delivery per matching active subscription and returns
// without waiting for delivery completion; it reports only the number of
// matched subscriptions. Delivery outcomes are observable via the delivery
// log, never via Publish.
type Broadcaster interface {
	Publish(ctx context.Context, eventType string, data map[string]any, companyID *uuid.UUID) (int, error)
}
