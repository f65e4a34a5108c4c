package handler

import (
	"context"
	"strconv"
	"time"

	"webhook-engine/internal/adapter/http/dto"
	"webhook-engine/internal/adapter/http/middleware"
	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"
	"webhook-engine/pkg/apperror"
	"webhook-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WebhookHandler handles subscription management endpoints.
type WebhookHandler struct {
	subSvc ports.SubscriptionService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(subSvc ports.SubscriptionService) *WebhookHandler {
	return &WebhookHandler{subSvc: subSvc}
}

// Register handles POST /api/v1/webhooks. The response includes the signing
// secret; this is the only time it is ever shown.
func (h *WebhookHandler) Register(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.subSvc.Register(c.Request.Context(), principal, req.TargetURL, req.Events)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.RegisteredWebhookResponse{
		WebhookResponse: toWebhookResponse(&result.Subscription),
		Secret:          result.Secret,
	})
}

// List handles GET /api/v1/webhooks.
func (h *WebhookHandler) List(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	subs, err := h.subSvc.ListForOwner(c.Request.Context(), principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.WebhookResponse, 0, len(subs))
	for i := range subs {
		out = append(out, toWebhookResponse(&subs[i]))
	}
	response.OK(c, out)
}

// Deactivate handles POST /api/v1/webhooks/:id/deactivate.
func (h *WebhookHandler) Deactivate(c *gin.Context) {
	h.toggle(c, h.subSvc.Deactivate)
}

// Activate handles POST /api/v1/webhooks/:id/activate.
func (h *WebhookHandler) Activate(c *gin.Context) {
	h.toggle(c, h.subSvc.Activate)
}

// Deliveries handles GET /api/v1/webhooks/:id/deliveries.
func (h *WebhookHandler) Deliveries(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrSubscriptionNotFound())
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			response.Error(c, apperror.Validation("limit must be a non-negative integer"))
			return
		}
	}

	attempts, err := h.subSvc.RecentDeliveries(c.Request.Context(), principal.UserID, id, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.DeliveryAttemptResponse, 0, len(attempts))
	for i := range attempts {
		out = append(out, toDeliveryAttemptResponse(&attempts[i]))
	}
	response.OK(c, out)
}

type toggleFn func(ctx context.Context, ownerUserID, id uuid.UUID) error

func (h *WebhookHandler) toggle(c *gin.Context, fn toggleFn) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrSubscriptionNotFound())
		return
	}

	if err := fn(c.Request.Context(), principal.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id.String()})
}

func toWebhookResponse(sub *domain.Subscription) dto.WebhookResponse {
	resp := dto.WebhookResponse{
		ID:        sub.ID.String(),
		TargetURL: sub.TargetURL,
		Events:    sub.SubscribedEvents,
		Active:    sub.Active,
		CreatedAt: sub.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: sub.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if sub.CompanyID != nil {
		s := sub.CompanyID.String()
		resp.CompanyID = &s
	}
	return resp
}

func toDeliveryAttemptResponse(a *domain.DeliveryAttempt) dto.DeliveryAttemptResponse {
	return dto.DeliveryAttemptResponse{
		ID:             a.ID.String(),
		EventType:      a.EventType,
		ResponseStatus: a.ResponseStatus,
		ErrorMessage:   a.ErrorMessage,
		Success:        !a.IsFailure(),
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
