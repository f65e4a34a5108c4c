package postgres

import (
	"context"
	"testing"
	"time"

	"webhook-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func newTestAttempt(subscriptionID uuid.UUID) *domain.DeliveryAttempt {
	return &domain.DeliveryAttempt{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		EventType:      "invoice.paid",
		Payload:        `{"event":"invoice.paid","timestamp":1756684800000,"data":{},"webhookId":"wh"}`,
		ResponseStatus: intPtr(200),
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func attemptCols() []string {
	return []string{"id", "subscription_id", "event_type", "payload", "response_status", "error_message", "created_at"}
}

func TestDeliveryLogRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDeliveryLogRepo(mock)
	attempt := newTestAttempt(uuid.New())

	mock.ExpectExec("INSERT INTO webhook_delivery_log").
		WithArgs(attempt.ID, attempt.SubscriptionID, attempt.EventType,
			attempt.Payload, attempt.ResponseStatus, attempt.ErrorMessage,
			attempt.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), attempt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryLogRepo_Create_TransportFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDeliveryLogRepo(mock)
	attempt := newTestAttempt(uuid.New())
	attempt.ResponseStatus = nil
	attempt.ErrorMessage = strPtr("request failed: connection refused")

	mock.ExpectExec("INSERT INTO webhook_delivery_log").
		WithArgs(attempt.ID, attempt.SubscriptionID, attempt.EventType,
			attempt.Payload, attempt.ResponseStatus, attempt.ErrorMessage, attempt.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), attempt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryLogRepo_RecentBySubscription(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDeliveryLogRepo(mock)
	subID := uuid.New()

	newer := newTestAttempt(subID)
	older := newTestAttempt(subID)
	older.ResponseStatus = intPtr(502)
	older.ErrorMessage = strPtr("endpoint returned status 502")
	older.CreatedAt = newer.CreatedAt.Add(-time.Minute)

	rows := pgxmock.NewRows(attemptCols()).
		AddRow(newer.ID, newer.SubscriptionID, newer.EventType, newer.Payload, newer.ResponseStatus, newer.ErrorMessage, newer.CreatedAt).
		AddRow(older.ID, older.SubscriptionID, older.EventType, older.Payload, older.ResponseStatus, older.ErrorMessage, older.CreatedAt)

	mock.ExpectQuery("SELECT .+ FROM webhook_delivery_log WHERE subscription_id .+ ORDER BY created_at DESC LIMIT").
		WithArgs(subID, 10).
		WillReturnRows(rows)

	result, err := repo.RecentBySubscription(context.Background(), subID, 10)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, newer.ID, result[0].ID)
	assert.False(t, result[0].IsFailure())
	assert.True(t, result[1].IsFailure())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryLogRepo_RecentBySubscription_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDeliveryLogRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM webhook_delivery_log").
		WithArgs(pgxmock.AnyArg(), 10).
		WillReturnRows(pgxmock.NewRows(attemptCols()))

	result, err := repo.RecentBySubscription(context.Background(), uuid.New(), 10)
	assert.NoError(t, err)
	assert.Empty(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
