package dto

// CreateWebhookRequest is the request body for registering a webhook
// subscription.
type CreateWebhookRequest struct {
	TargetURL string   `json:"target_url" binding:"required,safe_url,max=2048"`
	Events    []string `json:"events" binding:"required,min=1,dive,required,max=100"`
}

// WebhookResponse is the public view of a subscription. The signing secret
// is never part of it.
type WebhookResponse struct {
	ID        string   `json:"id"`
	TargetURL string   `json:"target_url"`
	Events    []string `json:"events"`
	CompanyID *string  `json:"company_id,omitempty"`
	Active    bool     `json:"active"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// RegisteredWebhookResponse is returned once at registration. Secret is the
// plaintext signing secret; it cannot be retrieved again.
type RegisteredWebhookResponse struct {
	WebhookResponse
	Secret string `json:"secret"`
}

// PublishEventRequest is the request body for publishing an event to all
// matching subscriptions.
type PublishEventRequest struct {
	EventType string         `json:"event_type" binding:"required,max=100"`
	Data      map[string]any `json:"data"`
	CompanyID *string        `json:"company_id,omitempty" binding:"omitempty,uuid"`
}

// PublishAcceptedResponse reports how many subscriptions matched. Delivery
// outcomes surface in the delivery log, not here.
type PublishAcceptedResponse struct {
	EventType string `json:"event_type"`
	Matched   int    `json:"matched"`
}

// DeliveryAttemptResponse is one row of a subscription's delivery history.
type DeliveryAttemptResponse struct {
	ID             string  `json:"id"`
	EventType      string  `json:"event_type"`
	ResponseStatus *int    `json:"response_status,omitempty"`
	ErrorMessage   *string `json:"error_message,omitempty"`
	Success        bool    `json:"success"`
	CreatedAt      string  `json:"created_at"`
}
