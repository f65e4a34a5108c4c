package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryAttempt records one attempt to deliver one envelope to one
// subscription. Rows are append-only: never edited or deleted by the engine,
// and retained after the owning subscription is deactivated.
type DeliveryAttempt struct {
	ID             uuid.UUID `json:"id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	EventType      string    `json:"event_type"`
	Payload        string    `json:"payload"` // Exact serialized body sent
	ResponseStatus *int      `json:"response_status"`
	ErrorMessage   *string   `json:"error_message"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsFailure reports whether the attempt counts as a failure for health
// evaluation: the request never completed, or the endpoint answered >= 400.
func (a *DeliveryAttempt) IsFailure() bool {
	return a.ResponseStatus == nil || *a.ResponseStatus >= 400
}
