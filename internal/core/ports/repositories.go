package ports

import (
	"context"
	"time"

	"acoruss-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenantRepository defines persistence operations for tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Tenant, error)
	// RegenerateCredentials atomically replaces apiKey and apiSecretEnc
	// together, invalidating the prior key.
	RegenerateCredentials(ctx context.Context, id uuid.UUID, apiKey, apiSecretEnc string) error
}

// PaymentRepository defines persistence operations for payments.
type PaymentRepository interface {
	// Create inserts a new pending Payment. If idempotencyKey is set and a
	// Payment already exists for (tenantID, idempotencyKey), Create returns
	// ErrIdempotencyConflict and the caller should look the existing row up
	// via GetByIdempotencyKey — the uniqueness constraint is the single
	// serialisable operation required by §5.
	Create(ctx context.Context, p *domain.Payment) error
	GetByReference(ctx context.Context, reference string) (*domain.Payment, error)
	GetByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*domain.Payment, error)

	// SetAuthorizationURL atomically publishes the authorization_url once
	// the upstream initiate call has succeeded.
	SetAuthorizationURL(ctx context.Context, reference, authorizationURL string) error

	// TransitionToSuccess performs the conditional
	// UPDATE ... WHERE reference=? AND status='pending' required by §5 to
	// resolve the callback/webhook race. ok=false means the row was not in
	// pending state (the other racing transition already won, or the
	// Payment never existed) and the caller must take no further action.
	TransitionToSuccess(ctx context.Context, reference, processorTransactionID, channel string, fees decimal.Decimal) (ok bool, p *domain.Payment, err error)
	TransitionToAbandoned(ctx context.Context, reference string) (ok bool, p *domain.Payment, err error)
	TransitionToFailed(ctx context.Context, reference string) (ok bool, p *domain.Payment, err error)

	// ApplyRefund mutates refund fields only; status never changes.
	ApplyRefund(ctx context.Context, reference string, refundedAmount decimal.Decimal, refundStatus domain.RefundStatus, processorRefundID string) (*domain.Payment, error)

	// MarkWebhookDelivered sets the advisory delivered flag; it never
	// suppresses future dispatch attempts.
	MarkWebhookDelivered(ctx context.Context, reference string, at time.Time) error

	List(ctx context.Context, params PaymentListParams) ([]domain.Payment, int64, error)
}

// ErrIdempotencyConflict is returned by PaymentRepository.Create when a
// Payment already exists for (tenant, idempotency_key).
var ErrIdempotencyConflict = idempotencyConflictError{}

type idempotencyConflictError struct{}

func (idempotencyConflictError) Error() string { return "payment already exists for idempotency key" }

// PaymentListParams holds filter and pagination for listing a tenant's
// payments.
type PaymentListParams struct {
	TenantID uuid.UUID
	Status   *domain.PaymentStatus
	Email    *string
	Page     int
	PerPage  int
}

// WebhookDeliveryLogRepository defines persistence for outbound delivery
// attempts. Append-only: Create inserts a new attempt row, Update records
// its outcome.
type WebhookDeliveryLogRepository interface {
	Create(ctx context.Context, log *domain.WebhookDeliveryLog) error
	Update(ctx context.Context, log *domain.WebhookDeliveryLog) error
}

