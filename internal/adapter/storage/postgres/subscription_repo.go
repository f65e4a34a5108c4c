package postgres

import (
	"context"
	"errors"
	"fmt"

	"webhook-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SubscriptionRepo implements ports.SubscriptionRepository.
type SubscriptionRepo struct {
	pool Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepo.
func NewSubscriptionRepo(pool Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, owner_user_id, company_id, target_url, subscribed_events, secret_enc, active, created_at, updated_at`

// Create inserts a new webhook subscription.
func (r *SubscriptionRepo) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `INSERT INTO webhook_subscriptions (id, owner_user_id, company_id, target_url, subscribed_events, secret_enc, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		sub.ID, sub.OwnerUserID, sub.CompanyID, sub.TargetURL,
		sub.SubscribedEvents, sub.SecretEnc, sub.Active,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// GetByID fetches a subscription by its UUID. Returns nil when absent.
func (r *SubscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions WHERE id = $1`

	sub := &domain.Subscription{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sub.ID, &sub.OwnerUserID, &sub.CompanyID, &sub.TargetURL,
		&sub.SubscribedEvents, &sub.SecretEnc, &sub.Active,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get subscription by id: %w", err)
	}
	return sub, nil
}

// ListByOwner returns all subscriptions registered by a user, newest first.
func (r *SubscriptionRepo) ListByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions
		WHERE owner_user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions by owner: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

// FindActiveMatching returns active subscriptions whose event list contains
// eventType. A non-nil companyID narrows the result to subscriptions scoped
// to exactly that company.
func (r *SubscriptionRepo) FindActiveMatching(ctx context.Context, eventType string, companyID *uuid.UUID) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions
		WHERE active AND $1 = ANY(subscribed_events)`
	args := []any{eventType}

	if companyID != nil {
		query += ` AND company_id = $2`
		args = append(args, *companyID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find matching subscriptions: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

// Deactivate switches a subscription off. Idempotent.
func (r *SubscriptionRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE webhook_subscriptions SET active = FALSE, updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	return nil
}

// Activate switches a subscription back on. Idempotent.
func (r *SubscriptionRepo) Activate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE webhook_subscriptions SET active = TRUE, updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}
	return nil
}

func scanSubscriptions(rows pgx.Rows) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		if err := rows.Scan(
			&sub.ID, &sub.OwnerUserID, &sub.CompanyID, &sub.TargetURL,
			&sub.SubscribedEvents, &sub.SecretEnc, &sub.Active,
			&sub.CreatedAt, &sub.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}
