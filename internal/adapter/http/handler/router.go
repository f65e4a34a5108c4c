package handler

import (
	"webhook-engine/internal/adapter/http/middleware"
	redisStore "webhook-engine/internal/adapter/storage/redis"
	"webhook-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SubscriptionSvc ports.SubscriptionService
	Broadcaster     ports.Broadcaster
	TokenVerifier   ports.TokenVerifier
	RateLimitStore  *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers  []ports.HealthChecker
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes, all bearer-authenticated
	auth := middleware.BearerAuth(deps.TokenVerifier, deps.Logger)
	v1 := r.Group("/api/v1", auth)

	webhookHandler := NewWebhookHandler(deps.SubscriptionSvc)
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("", rl("webhooks_register"), webhookHandler.Register)
		webhooks.GET("", rl("webhooks_manage"), webhookHandler.List)
		webhooks.POST("/:id/deactivate", rl("webhooks_manage"), webhookHandler.Deactivate)
		webhooks.POST("/:id/activate", rl("webhooks_manage"), webhookHandler.Activate)
		webhooks.GET("/:id/deliveries", rl("webhooks_manage"), webhookHandler.Deliveries)
	}

	eventHandler := NewEventHandler(deps.Broadcaster)
	events := v1.Group("/events")
	{
		events.POST("", rl("events_publish"), eventHandler.Publish)
	}

	return r
}
