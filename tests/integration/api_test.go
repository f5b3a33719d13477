package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "acoruss-gateway/internal/adapter/http/handler"
	"acoruss-gateway/internal/core/domain"
	"acoruss-gateway/internal/service"
	"acoruss-gateway/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds a full application stack against in-memory repositories
// and a fake upstream processor. This exercises the real HTTP layer,
// middleware, handlers and C6/C3/C4 services end-to-end.
type testApp struct {
	server    *httptest.Server
	tenants   *inMemoryTenantRepo
	payments  *inMemoryPaymentRepo
	processor *fakeProcessorClient

	upstreamSecret string
	sigSvc         *service.HMACSignatureService
}

const testAESKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	tenants := newInMemoryTenantRepo()
	payments := newInMemoryPaymentRepo()
	webhookLogs := newInMemoryWebhookDeliveryLogRepo()
	processor := newFakeProcessorClient()

	encSvc, err := service.NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	outboundSigSvc := service.NewHMACSHA256SignatureService()
	inboundSigSvc := service.NewHMACSHA512SignatureService()
	upstreamSecret := "test-upstream-secret"

	log := logger.New("error", false)

	dispatcher := service.NewWebhookDispatcher(webhookLogs, payments, outboundSigSvc, encSvc, http.DefaultClient, 3, []time.Duration{1 * time.Second, 5 * time.Second, 25 * time.Second}, 15*time.Second, log)
	engine := service.NewPaymentEngine(payments, tenants, nil, processor, dispatcher, "https://gateway.example.com", log)
	verifier := service.NewInboundWebhookVerifier(inboundSigSvc, upstreamSecret, engine, nil, log)
	rateLimiter := service.NewRateLimiter()

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TenantRepo:      tenants,
		PaymentRepo:     payments,
		PaymentSvc:      engine,
		Verifier:        verifier,
		RateLimiter:     rateLimiter,
		RateLimitMax:    1000,
		RateLimitWindow: time.Minute,
		PublicPageURL:   "https://gateway.example.com/pay",
		HealthCheckers:  nil,
		Logger:          log,
	})

	server := httptest.NewServer(router)

	return &testApp{
		server:         server,
		tenants:        tenants,
		payments:       payments,
		processor:      processor,
		upstreamSecret: upstreamSecret,
		sigSvc:         inboundSigSvc,
	}
}

func (a *testApp) close() {
	a.server.Close()
}

// registerTenant seeds an active tenant directly in the in-memory store and
// returns it along with its plaintext API key.
func (a *testApp) registerTenant(t *testing.T, slug string) (*domain.Tenant, string) {
	t.Helper()
	apiKey, err := service.NewAPIKey()
	require.NoError(t, err)

	tenant := &domain.Tenant{
		ID:                 uuid.New(),
		Slug:               slug,
		APIKey:             apiKey,
		IsActive:           true,
		DefaultCallbackURL: "https://" + slug + ".example.com/callback",
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	require.NoError(t, a.tenants.Create(context.Background(), tenant))
	return tenant, apiKey
}

func (a *testApp) initiate(t *testing.T, apiKey string, body map[string]any) (*http.Response, map[string]any) {
	t.Helper()
	raw, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, a.server.URL+"/payments/initiate/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// --- Integration Tests ---

func TestIntegration_InitiatePayment(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	_, apiKey := app.registerTenant(t, "acme")

	resp, body := app.initiate(t, apiKey, map[string]any{
		"email":           "buyer@example.com",
		"amount":          "100.00",
		"currency":        "KES",
		"idempotency_key": "order-1",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["reference"])
	assert.Contains(t, data["authorization_url"], "https://upstream.example.com/authorize/")
}

func TestIntegration_InitiatePayment_IdempotentReplay(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	_, apiKey := app.registerTenant(t, "acme")
	reqBody := map[string]any{
		"email":           "buyer@example.com",
		"amount":          "50.00",
		"currency":        "KES",
		"idempotency_key": "order-replay-1",
	}

	_, first := app.initiate(t, apiKey, reqBody)
	_, second := app.initiate(t, apiKey, reqBody)

	firstRef := first["data"].(map[string]any)["reference"]
	secondRef := second["data"].(map[string]any)["reference"]
	assert.Equal(t, firstRef, secondRef, "replaying the same idempotency key must return the same payment")
}

func TestIntegration_InitiatePayment_UnsupportedCurrency(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	_, apiKey := app.registerTenant(t, "acme")
	resp, body := app.initiate(t, apiKey, map[string]any{
		"email":           "buyer@example.com",
		"amount":          "10.00",
		"currency":        "XYZ",
		"idempotency_key": "order-bad-currency",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VAL_001", body["error_code"])
}

func TestIntegration_MissingBearerToken(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/payments/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_InactiveTenantRejected(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	tenant, apiKey := app.registerTenant(t, "suspended")
	tenant.IsActive = false
	require.NoError(t, app.tenants.Create(context.Background(), tenant))

	resp, _ := app.initiate(t, apiKey, map[string]any{
		"email":           "buyer@example.com",
		"amount":          "10.00",
		"currency":        "KES",
		"idempotency_key": "order-inactive",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestIntegration_StatusCrossTenantIsolation(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	_, ownerKey := app.registerTenant(t, "owner")
	_, intruderKey := app.registerTenant(t, "intruder")

	_, created := app.initiate(t, ownerKey, map[string]any{
		"email":           "buyer@example.com",
		"amount":          "20.00",
		"currency":        "KES",
		"idempotency_key": "order-isolation",
	})
	reference := created["data"].(map[string]any)["reference"].(string)

	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/payments/"+reference+"/", nil)
	req.Header.Set("Authorization", "Bearer "+intruderKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "a tenant must never see another tenant's payment")
}

func TestIntegration_RefundFlow(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	_, apiKey := app.registerTenant(t, "refunder")
	_, created := app.initiate(t, apiKey, map[string]any{
		"email":           "buyer@example.com",
		"amount":          "300.00",
		"currency":        "KES",
		"idempotency_key": "order-refund-1",
	})
	reference := created["data"].(map[string]any)["reference"].(string)

	// Drive the payment to success via the redirect-back verify endpoint.
	verifyResp, err := http.Get(app.server.URL + "/payments/verify/?reference=" + reference)
	require.NoError(t, err)
	verifyResp.Body.Close()
	assert.Equal(t, http.StatusFound, verifyResp.StatusCode)

	refundBody, _ := json.Marshal(map[string]any{"amount": "100.00", "reason": "customer request"})
	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/payments/"+reference+"/refund/", bytes.NewReader(refundBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var refunded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&refunded))
	data := refunded["data"].(map[string]any)
	assert.Equal(t, "partial", data["refund_status"])
}

func TestIntegration_InboundWebhook_ChargeSuccess(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	_, apiKey := app.registerTenant(t, "webhook-tenant")
	_, created := app.initiate(t, apiKey, map[string]any{
		"email":           "buyer@example.com",
		"amount":          "75.00",
		"currency":        "KES",
		"idempotency_key": "order-webhook-1",
	})
	reference := created["data"].(map[string]any)["reference"].(string)

	payload := fmt.Sprintf(`{"event":"charge.success","data":{"reference":"%s","id":123,"channel":"card","fees":150}}`, reference)
	sig := app.sigSvc.Sign(app.upstreamSecret, []byte(payload))

	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/payments/webhook/", bytes.NewReader([]byte(payload)))
	req.Header.Set("X-Paystack-Signature", sig)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	payment, err := app.payments.GetByReference(context.Background(), reference)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, payment.Status)
}

func TestIntegration_InboundWebhook_BadSignatureRejected(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/payments/webhook/", bytes.NewReader([]byte(`{"event":"charge.success","data":{}}`)))
	req.Header.Set("X-Paystack-Signature", "not-a-signature")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_ListPayments(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	_, apiKey := app.registerTenant(t, "lister")
	for i := 0; i < 3; i++ {
		app.initiate(t, apiKey, map[string]any{
			"email":           "buyer@example.com",
			"amount":          "10.00",
			"currency":        "KES",
			"idempotency_key": fmt.Sprintf("order-list-%d", i),
		})
	}

	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/payments/?page=1&per_page=10", nil)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	data := body["data"].(map[string]any)
	meta := data["meta"].(map[string]any)
	assert.Equal(t, float64(3), meta["total"])
}

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
