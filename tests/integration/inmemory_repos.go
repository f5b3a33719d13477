package integration

import (
	"context"
	"sync"
	"time"

	"acoruss-gateway/internal/core/domain"
	"acoruss-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// inMemoryTenantRepo implements ports.TenantRepository over a guarded map,
// standing in for the postgres adapter in the end-to-end tests.
type inMemoryTenantRepo struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*domain.Tenant
	byAPIKey map[string]uuid.UUID
}

func newInMemoryTenantRepo() *inMemoryTenantRepo {
	return &inMemoryTenantRepo{
		byID:     make(map[uuid.UUID]*domain.Tenant),
		byAPIKey: make(map[string]uuid.UUID),
	}
}

func (r *inMemoryTenantRepo) Create(ctx context.Context, tenant *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tenant
	r.byID[tenant.ID] = &cp
	r.byAPIKey[tenant.APIKey] = tenant.ID
	return nil
}

func (r *inMemoryTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTenantRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAPIKey[apiKey]
	if !ok {
		return nil, nil
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *inMemoryTenantRepo) RegenerateCredentials(ctx context.Context, id uuid.UUID, apiKey, apiSecretEnc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return ports.ErrIdempotencyConflict // unused path in these tests, any error sentinel rejects silently
	}
	delete(r.byAPIKey, t.APIKey)
	t.APIKey = apiKey
	t.APISecretEnc = apiSecretEnc
	t.UpdatedAt = time.Now()
	r.byAPIKey[apiKey] = id
	return nil
}

// inMemoryPaymentRepo implements ports.PaymentRepository, reproducing the
// conditional "only transition out of pending" semantics the postgres
// adapter enforces with a WHERE clause, so the callback-vs-webhook race
// tests exercise the same guarantee.
type inMemoryPaymentRepo struct {
	mu          sync.Mutex
	byReference map[string]*domain.Payment
	idemIndex   map[string]string // tenantID:key -> reference
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{
		byReference: make(map[string]*domain.Payment),
		idemIndex:   make(map[string]string),
	}
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Tenant != nil && p.IdempotencyKey != "" {
		key := p.Tenant.String() + ":" + p.IdempotencyKey
		if _, exists := r.idemIndex[key]; exists {
			return ports.ErrIdempotencyConflict
		}
		r.idemIndex[key] = p.Reference
	}

	cp := *p
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.byReference[p.Reference] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byReference[reference]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) GetByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.idemIndex[tenantID.String()+":"+key]
	if !ok {
		return nil, nil
	}
	cp := *r.byReference[ref]
	return &cp, nil
}

func (r *inMemoryPaymentRepo) SetAuthorizationURL(ctx context.Context, reference, authorizationURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byReference[reference]
	if !ok {
		return nil
	}
	p.AuthorizationURL = authorizationURL
	p.UpdatedAt = time.Now()
	return nil
}

func (r *inMemoryPaymentRepo) TransitionToSuccess(ctx context.Context, reference, processorTransactionID, channel string, fees decimal.Decimal) (bool, *domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byReference[reference]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil, nil
	}
	p.Status = domain.PaymentStatusSuccess
	p.ProcessorTransactionID = processorTransactionID
	p.Channel = channel
	p.Fees = fees
	p.UpdatedAt = time.Now()
	cp := *p
	return true, &cp, nil
}

func (r *inMemoryPaymentRepo) TransitionToAbandoned(ctx context.Context, reference string) (bool, *domain.Payment, error) {
	return r.transitionSimple(reference, domain.PaymentStatusAbandoned)
}

func (r *inMemoryPaymentRepo) TransitionToFailed(ctx context.Context, reference string) (bool, *domain.Payment, error) {
	return r.transitionSimple(reference, domain.PaymentStatusFailed)
}

func (r *inMemoryPaymentRepo) transitionSimple(reference string, status domain.PaymentStatus) (bool, *domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byReference[reference]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil, nil
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	cp := *p
	return true, &cp, nil
}

func (r *inMemoryPaymentRepo) ApplyRefund(ctx context.Context, reference string, refundedAmount decimal.Decimal, refundStatus domain.RefundStatus, processorRefundID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byReference[reference]
	if !ok {
		return nil, nil
	}
	p.RefundedAmount = refundedAmount
	p.RefundStatus = refundStatus
	p.ProcessorRefundID = processorRefundID
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) MarkWebhookDelivered(ctx context.Context, reference string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byReference[reference]
	if !ok {
		return nil
	}
	p.WebhookDelivered = true
	p.WebhookDeliveredAt = &at
	return nil
}

func (r *inMemoryPaymentRepo) List(ctx context.Context, params ports.PaymentListParams) ([]domain.Payment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []domain.Payment
	for _, p := range r.byReference {
		if !p.HasOwningTenant() || *p.Tenant != params.TenantID {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		if params.Email != nil && p.Email != *params.Email {
			continue
		}
		matched = append(matched, *p)
	}

	total := int64(len(matched))
	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage < 1 {
		perPage = 20
	}

	start := (page - 1) * perPage
	if start >= len(matched) {
		return []domain.Payment{}, total, nil
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// inMemoryWebhookDeliveryLogRepo implements ports.WebhookDeliveryLogRepository.
type inMemoryWebhookDeliveryLogRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*domain.WebhookDeliveryLog
}

func newInMemoryWebhookDeliveryLogRepo() *inMemoryWebhookDeliveryLogRepo {
	return &inMemoryWebhookDeliveryLogRepo{byID: make(map[uuid.UUID]*domain.WebhookDeliveryLog)}
}

func (r *inMemoryWebhookDeliveryLogRepo) Create(ctx context.Context, log *domain.WebhookDeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	cp.CreatedAt = time.Now()
	r.byID[log.ID] = &cp
	return nil
}

func (r *inMemoryWebhookDeliveryLogRepo) Update(ctx context.Context, log *domain.WebhookDeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[log.ID]
	if !ok {
		return nil
	}
	existing.ResponseStatusCode = log.ResponseStatusCode
	existing.ResponseBody = log.ResponseBody
	existing.Success = log.Success
	existing.ErrorMessage = log.ErrorMessage
	existing.DurationMS = log.DurationMS
	return nil
}
