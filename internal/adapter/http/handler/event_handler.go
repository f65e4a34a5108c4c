package handler

import (
	"net/http"

	"webhook-engine/internal/adapter/http/dto"
	"webhook-engine/internal/adapter/http/middleware"
	"webhook-engine/internal/core/ports"
	"webhook-engine/pkg/apperror"
	"webhook-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventHandler handles event publication.
type EventHandler struct {
	broadcaster ports.Broadcaster
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(broadcaster ports.Broadcaster) *EventHandler {
	return &EventHandler{broadcaster: broadcaster}
}

// Publish handles POST /api/v1/events. Admin and service principals only.
// Returns 202: deliveries run in the background and report through the
// delivery log.
func (h *EventHandler) Publish(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	if !principal.CanPublish() {
		response.Error(c, apperror.ErrForbidden())
		return
	}

	var req dto.PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	var companyID *uuid.UUID
	if req.CompanyID != nil {
		id, err := uuid.Parse(*req.CompanyID)
		if err != nil {
			response.Error(c, apperror.Validation("company_id must be a UUID"))
			return
		}
		companyID = &id
	}

	matched, err := h.broadcaster.Publish(c.Request.Context(), req.EventType, req.Data, companyID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, dto.PublishAcceptedResponse{
		EventType: req.EventType,
		Matched:   matched,
	})
}

// HealthCheck performs a deep health check against all registered
// dependencies.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
