package middleware

import (
	"net/http"
	"strings"
	"time"

	"acoruss-gateway/internal/core/domain"
	"acoruss-gateway/internal/core/ports"
	"acoruss-gateway/pkg/apperror"
	"acoruss-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// HeaderAPIKey carries the tenant's bearer API key.
	HeaderAPIKey = "Authorization"

	// CtxTenant holds the resolved *domain.Tenant for downstream handlers.
	CtxTenant = "tenant"
)

// BearerAuth resolves the tenant from the "Authorization: Bearer <api_key>"
// header, rejects inactive tenants, and enforces the tenant's IP allowlist
// (C5). Only the first 12 characters of the key are ever logged.
func BearerAuth(tenants ports.TenantRepository, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := bearerToken(c.GetHeader(HeaderAPIKey))
		if apiKey == "" {
			response.Error(c, apperror.ErrInvalidAPIKey())
			c.Abort()
			return
		}

		tenant, err := tenants.GetByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			log.Error().Err(err).Str("api_key_prefix", truncateKey(apiKey)).Msg("failed to resolve tenant")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}
		if tenant == nil {
			log.Warn().Str("api_key_prefix", truncateKey(apiKey)).Msg("unknown api key")
			response.Error(c, apperror.ErrInvalidAPIKey())
			c.Abort()
			return
		}
		if !tenant.IsActive {
			response.Error(c, apperror.ErrTenantInactive())
			c.Abort()
			return
		}
		if !tenant.AllowsIP(c.ClientIP()) {
			log.Warn().Str("tenant_id", tenant.ID.String()).Str("client_ip", c.ClientIP()).Msg("IP not allowed")
			response.Error(c, apperror.ErrIPNotAllowed())
			c.Abort()
			return
		}

		c.Set(CtxTenant, tenant)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func truncateKey(key string) string {
	const n = 12
	if len(key) <= n {
		return key
	}
	return key[:n]
}

// TenantFromContext retrieves the authenticated Tenant set by BearerAuth.
func TenantFromContext(c *gin.Context) *domain.Tenant {
	v, ok := c.Get(CtxTenant)
	if !ok {
		return nil
	}
	tenant, ok := v.(*domain.Tenant)
	if !ok {
		return nil
	}
	return tenant
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
