package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"acoruss-gateway/internal/adapter/http/middleware"
	"acoruss-gateway/internal/core/ports"
	"acoruss-gateway/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupRateLimitRouter(limiter ports.RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.GET("/test", middleware.RateLimiter(limiter, 3, time.Minute), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return r
}

func TestRateLimiterMiddleware_AllowsWithinLimit(t *testing.T) {
	router := setupRateLimitRouter(service.NewRateLimiter())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiterMiddleware_BlocksOverLimit(t *testing.T) {
	router := setupRateLimitRouter(service.NewRateLimiter())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, 429, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimiterMiddleware_UsesAPIKey(t *testing.T) {
	router := setupRateLimitRouter(service.NewRateLimiter())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer ak_tenantA")
		router.ServeHTTP(w, req)
		assert.Equal(t, 200, w.Code)
	}

	// A different tenant key has its own independent counter.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer ak_tenantB")
	router.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
}
