package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Subscription is a registered webhook endpoint plus the set of event types
// it wants to receive. CompanyID is nil for platform-level subscriptions.
type Subscription struct {
	ID               uuid.UUID  `json:"id"`
	OwnerUserID      uuid.UUID  `json:"owner_user_id"`
	CompanyID        *uuid.UUID `json:"company_id,omitempty"`
	TargetURL        string     `json:"target_url"`
	SubscribedEvents []string   `json:"subscribed_events"`
	SecretEnc        string     `json:"-"` // Encrypted, never expose
	Active           bool       `json:"active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Subscribes reports whether the subscription listens for eventType.
func (s *Subscription) Subscribes(eventType string) bool {
	for _, e := range s.SubscribedEvents {
		if e == eventType {
			return true
		}
	}
	return false
}

// NormalizeEvents trims whitespace, drops empty names and collapses
// duplicates while preserving first-seen order.
func NormalizeEvents(events []string) []string {
	seen := make(map[string]struct{}, len(events))
	out := make([]string, 0, len(events))
	for _, e := range events {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
