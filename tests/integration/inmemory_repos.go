package integration

import (
	"context"
	"sync"

	"webhook-engine/internal/core/domain"

	"github.com/google/uuid"
)

// In-memory repository implementations backing the integration stack. They
// mirror the PostgreSQL repositories' semantics, including newest-first
// delivery history and exact company scoping.

type inMemorySubscriptionRepo struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]domain.Subscription
}

func newInMemorySubscriptionRepo() *inMemorySubscriptionRepo {
	return &inMemorySubscriptionRepo{subs: make(map[uuid.UUID]domain.Subscription)}
}

func (r *inMemorySubscriptionRepo) Create(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.ID] = *sub
	return nil
}

func (r *inMemorySubscriptionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (r *inMemorySubscriptionRepo) ListByOwner(_ context.Context, ownerUserID uuid.UUID) ([]domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Subscription
	for _, sub := range r.subs {
		if sub.OwnerUserID == ownerUserID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (r *inMemorySubscriptionRepo) FindActiveMatching(_ context.Context, eventType string, companyID *uuid.UUID) ([]domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Subscription
	for _, sub := range r.subs {
		if !sub.Active || !sub.Subscribes(eventType) {
			continue
		}
		if companyID != nil {
			if sub.CompanyID == nil || *sub.CompanyID != *companyID {
				continue
			}
		}
		out = append(out, sub)
	}
	return out, nil
}

func (r *inMemorySubscriptionRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	return r.setActive(id, false)
}

func (r *inMemorySubscriptionRepo) Activate(_ context.Context, id uuid.UUID) error {
	return r.setActive(id, true)
}

func (r *inMemorySubscriptionRepo) setActive(id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[id]; ok {
		sub.Active = active
		r.subs[id] = sub
	}
	return nil
}

type inMemoryDeliveryLogRepo struct {
	mu       sync.RWMutex
	attempts map[uuid.UUID][]domain.DeliveryAttempt // append order = chronological
}

func newInMemoryDeliveryLogRepo() *inMemoryDeliveryLogRepo {
	return &inMemoryDeliveryLogRepo{attempts: make(map[uuid.UUID][]domain.DeliveryAttempt)}
}

func (r *inMemoryDeliveryLogRepo) Create(_ context.Context, attempt *domain.DeliveryAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[attempt.SubscriptionID] = append(r.attempts[attempt.SubscriptionID], *attempt)
	return nil
}

func (r *inMemoryDeliveryLogRepo) RecentBySubscription(_ context.Context, subscriptionID uuid.UUID, limit int) ([]domain.DeliveryAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.attempts[subscriptionID]
	if limit > len(all) {
		limit = len(all)
	}
	out := make([]domain.DeliveryAttempt, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (r *inMemoryDeliveryLogRepo) count(subscriptionID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attempts[subscriptionID])
}
