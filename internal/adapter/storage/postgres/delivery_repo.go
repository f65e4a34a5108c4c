package postgres

import (
	"context"
	"fmt"

	"webhook-engine/internal/core/domain"

	"github.com/google/uuid"
)

// DeliveryLogRepo implements ports.DeliveryLogRepository. The log is
// append-only; nothing here updates or deletes rows.
type DeliveryLogRepo struct {
	pool Pool
}

// NewDeliveryLogRepo creates a new DeliveryLogRepo.
func NewDeliveryLogRepo(pool Pool) *DeliveryLogRepo {
	return &DeliveryLogRepo{pool: pool}
}

// Create appends a delivery attempt.
func (r *DeliveryLogRepo) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	query := `INSERT INTO webhook_delivery_log (id, subscription_id, event_type, payload, response_status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		attempt.ID, attempt.SubscriptionID, attempt.EventType,
		attempt.Payload, attempt.ResponseStatus, attempt.ErrorMessage,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery attempt: %w", err)
	}
	return nil
}

// RecentBySubscription returns up to limit attempts for a subscription,
// most recent first.
func (r *DeliveryLogRepo) RecentBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]domain.DeliveryAttempt, error) {
	query := `SELECT id, subscription_id, event_type, payload, response_status, error_message, created_at
		FROM webhook_delivery_log WHERE subscription_id = $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, subscriptionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.DeliveryAttempt
	for rows.Next() {
		var a domain.DeliveryAttempt
		if err := rows.Scan(
			&a.ID, &a.SubscriptionID, &a.EventType,
			&a.Payload, &a.ResponseStatus, &a.ErrorMessage,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery attempts: %w", err)
	}
	return attempts, nil
}
