package domain

import "github.com/google/uuid"

// Envelope is the signed JSON body posted to a subscriber for one event.
// Timestamp is Unix milliseconds; WebhookID is the subscription id.
type Envelope struct {
	Event     string         `json:"event"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data"`
	WebhookID string         `json:"webhookId"`
}

// Event is a domain event as published by business code. Data is
// schema-agnostic: producers are numerous and uncoordinated.
type Event struct {
	Type      string
	Data      map[string]any
	CompanyID *uuid.UUID
}
