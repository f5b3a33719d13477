package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"acoruss-gateway/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubTenantRepository is a hand-written fake, not a generated mock.
type stubTenantRepository struct {
	byAPIKey map[string]*domain.Tenant
}

func (s *stubTenantRepository) Create(ctx context.Context, t *domain.Tenant) error { return nil }
func (s *stubTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return nil, nil
}
func (s *stubTenantRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Tenant, error) {
	return s.byAPIKey[apiKey], nil
}
func (s *stubTenantRepository) RegenerateCredentials(ctx context.Context, id uuid.UUID, apiKey, apiSecretEnc string) error {
	return nil
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	repo := &stubTenantRepository{}
	log := zerolog.Nop()

	router := gin.New()
	router.GET("/test", BearerAuth(repo, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuth_UnknownKey(t *testing.T) {
	repo := &stubTenantRepository{}
	log := zerolog.Nop()

	router := gin.New()
	router.GET("/test", BearerAuth(repo, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer ak_unknown")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuth_InactiveTenant(t *testing.T) {
	tenant := &domain.Tenant{ID: uuid.New(), APIKey: "ak_inactive", IsActive: false}
	repo := &stubTenantRepository{byAPIKey: map[string]*domain.Tenant{tenant.APIKey: tenant}}
	log := zerolog.Nop()

	router := gin.New()
	router.GET("/test", BearerAuth(repo, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer ak_inactive")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBearerAuth_IPNotAllowed(t *testing.T) {
	tenant := &domain.Tenant{ID: uuid.New(), APIKey: "ak_restricted", IsActive: true, AllowedIPs: []string{"10.0.0.1"}}
	repo := &stubTenantRepository{byAPIKey: map[string]*domain.Tenant{tenant.APIKey: tenant}}
	log := zerolog.Nop()

	router := gin.New()
	router.GET("/test", BearerAuth(repo, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer ak_restricted")
	req.RemoteAddr = "203.0.113.5:12345"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBearerAuth_Success(t *testing.T) {
	tenant := &domain.Tenant{ID: uuid.New(), APIKey: "ak_valid", IsActive: true}
	repo := &stubTenantRepository{byAPIKey: map[string]*domain.Tenant{tenant.APIKey: tenant}}
	log := zerolog.Nop()

	var captured *domain.Tenant
	router := gin.New()
	router.GET("/test", BearerAuth(repo, log), func(c *gin.Context) {
		captured = TenantFromContext(c)
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer ak_valid")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured)
	assert.Equal(t, tenant.ID, captured.ID)
}

func TestRecovery_PanicRecovered(t *testing.T) {
	log := zerolog.Nop()

	router := gin.New()
	router.Use(Recovery(log))
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SYS_001", resp["error_code"])
}
