package ports

import (
	"context"
	"errors"
	"time"

	"acoruss-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EncryptionService handles AES-256-GCM encryption/decryption, used to
// encrypt Tenant.APISecret at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService computes and verifies HMAC signatures. The same
// implementation backs both the outbound dispatcher (HMAC-SHA256, tenant
// secret) and the inbound verifier (HMAC-SHA512, shared upstream secret).
type SignatureService interface {
	Sign(secretKey string, payload []byte) string
	Verify(secretKey string, payload []byte, signatureHex string) bool
}

// RateLimiter implements the sliding-window check described in §4.1/§5:
// at most `limit` admissions per `window` for a given key, backed by a
// process-local structure.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) (allowed bool, remaining int, resetAt time.Time)
}

// IdempotencyCache is the Redis-layer fast-path cache in front of the
// PaymentRepository's authoritative (tenant, idempotency_key) uniqueness
// constraint.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil if absent
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ReplayCache deduplicates inbound webhook deliveries keyed by a hash of
// (event, signature), so a replayed body+signature causes no additional
// state change (§8 property 8).
type ReplayCache interface {
	// CheckAndSet returns true if this key has not been seen before
	// (valid, should process), false if it is a replay.
	CheckAndSet(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// --- Service ports (business logic) ---

// ProcessorClient is the narrow façade over the upstream processor's
// initiate/verify/refund/fetch REST endpoints (C2). Business failures are
// returned as ProcessorResult{Status:false}, not as Go errors, and so are
// transport failures; Go errors are reserved for programmer failures such
// as a request that cannot be encoded or built.
type ProcessorClient interface {
	Initiate(ctx context.Context, req InitiateRequest) (ProcessorResult, error)
	Verify(ctx context.Context, reference string) (ProcessorResult, error)
	Refund(ctx context.Context, reference string, amountMinor *int64, reason string) (ProcessorResult, error)
	Fetch(ctx context.Context, transactionID string) (ProcessorResult, error)
}

// InitiateRequest holds the fields the upstream initiate endpoint needs.
type InitiateRequest struct {
	Reference   string
	Email       string
	AmountMinor int64
	Currency    string
	CallbackURL string
}

// ProcessorResult is the uniform result shape for every ProcessorClient
// call: either Status=true with the endpoint-specific data populated, or
// Status=false with Message explaining why (HTTP non-2xx, parse failure,
// or a network error — all collapsed to this shape per §4.5).
type ProcessorResult struct {
	Status bool
	Message string

	AuthorizationURL string
	TransactionID    string
	Channel          string
	FeesMinor        int64
	ProcessorStatus  string // upstream's own status string: success|abandoned|...
	RefundID         string
	RefundedMinor    int64
}

// WebhookDispatcher delivers a signed event notification to a tenant's
// webhook_url with bounded retries (C4).
type WebhookDispatcher interface {
	// Dispatch is fire-and-forget from the caller's perspective: it
	// returns immediately once the delivery goroutine has been started
	// (or immediately, starting nothing, if the tenant has no webhook_url
	// configured, in which case no log row is created). It returns no
	// value; delivery outcomes are recorded only in the log rows.
	Dispatch(ctx context.Context, tenant *domain.Tenant, payment *domain.Payment, event string)
}

// PaymentService is the payment lifecycle engine (C6).
type PaymentService interface {
	Initiate(ctx context.Context, req InitiatePaymentInput) (*domain.Payment, error)
	Verify(ctx context.Context, reference string) (*domain.Payment, error)
	Refund(ctx context.Context, tenantID uuid.UUID, reference string, amount *decimal.Decimal, reason string) (*domain.Payment, error)
	HandleInboundChargeSuccess(ctx context.Context, reference, processorTransactionID, channel string, feesMinor int64) error
	HandleInboundRefundProcessed(ctx context.Context, reference string, amountMinor int64, processorRefundID string) error
}

// ErrInvalidSignature is returned by InboundWebhookVerifier.Handle when the
// computed HMAC-SHA512 over the raw body does not match the signature
// header; the HTTP adapter maps this to 400.
var ErrInvalidSignature = errors.New("invalid signature")

// InboundWebhookVerifier is the sole component that trusts server-to-server
// notifications from the upstream processor (C3). Handle must be called
// with the exact raw request bytes, before any JSON normalisation.
type InboundWebhookVerifier interface {
	Handle(ctx context.Context, rawBody []byte, signatureHex string) error
}

// InitiatePaymentInput holds validated input for Initiate.
type InitiatePaymentInput struct {
	Tenant         *domain.Tenant
	Email          string
	Name           string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	ServiceRef     string
	CallbackURL    string
	IdempotencyKey string
	Metadata       map[string]any
	ClientIP       string
}
