package handler

import (
	"time"

	"acoruss-gateway/internal/adapter/http/middleware"
	"acoruss-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	TenantRepo      ports.TenantRepository
	PaymentRepo     ports.PaymentRepository
	PaymentSvc      ports.PaymentService
	Verifier        ports.InboundWebhookVerifier
	RateLimiter     ports.RateLimiter // nil = rate limiting disabled
	RateLimitMax    int
	RateLimitWindow time.Duration
	PublicPageURL   string
	HealthCheckers  []ports.HealthChecker
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rateLimitMax := deps.RateLimitMax
	if rateLimitMax == 0 {
		rateLimitMax = middleware.DefaultRateLimitMax
	}
	rateLimitWindow := deps.RateLimitWindow
	if rateLimitWindow == 0 {
		rateLimitWindow = middleware.DefaultRateLimitWindow
	}

	rl := func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		rl = middleware.RateLimiter(deps.RateLimiter, rateLimitMax, rateLimitWindow)
	}

	bearerAuth := middleware.BearerAuth(deps.TenantRepo, deps.Logger)

	// --- C7 public API surface: bearer-auth + rate-limited ---
	paymentHandler := NewPaymentHandler(deps.PaymentSvc, deps.PaymentRepo)
	payments := r.Group("/payments", bearerAuth, rl)
	{
		payments.POST("/initiate/", paymentHandler.Initiate)
		payments.GET("/:reference/", paymentHandler.Status)
		payments.GET("/", paymentHandler.List)
		payments.POST("/:reference/refund/", paymentHandler.Refund)
	}

	// --- C8 callback endpoints: no C5 auth, no rate limit ---
	callbackHandler := NewCallbackHandler(deps.PaymentSvc, deps.Verifier, deps.PublicPageURL, deps.Logger)
	r.GET("/payments/verify/", callbackHandler.Verify)
	r.POST("/payments/webhook/", callbackHandler.Webhook)

	return r
}
