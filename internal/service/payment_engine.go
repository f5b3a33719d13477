package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"acoruss-gateway/internal/core/domain"
	"acoruss-gateway/internal/core/ports"
	"acoruss-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// idempotencyCacheTTL bounds how long a repeat Initiate call may be served
// from cache before falling back to the authoritative DB lookup.
const idempotencyCacheTTL = 24 * time.Hour

type cachedIdempotentResult struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// paymentEngine implements ports.PaymentService (C6), the payment lifecycle
// engine: initiation, verification, and refund.
type paymentEngine struct {
	payments   ports.PaymentRepository
	tenants    ports.TenantRepository
	idemCache  ports.IdempotencyCache
	processor  ports.ProcessorClient
	dispatcher ports.WebhookDispatcher
	siteURL    string
	log        zerolog.Logger
}

// NewPaymentEngine creates the C6 payment lifecycle engine. siteURL is used
// to build the upstream's redirect-back target (the gateway's own verify
// endpoint, never the tenant's callback_url directly). tenants resolves a
// Payment's owning Tenant for outbound webhook dispatch.
func NewPaymentEngine(payments ports.PaymentRepository, tenants ports.TenantRepository, idemCache ports.IdempotencyCache, processor ports.ProcessorClient, dispatcher ports.WebhookDispatcher, siteURL string, log zerolog.Logger) ports.PaymentService {
	return &paymentEngine{
		payments:   payments,
		tenants:    tenants,
		idemCache:  idemCache,
		processor:  processor,
		dispatcher: dispatcher,
		siteURL:    siteURL,
		log:        log,
	}
}

func validateInitiateInput(req ports.InitiatePaymentInput) *apperror.AppError {
	fields := map[string]string{}

	if req.Email == "" {
		fields["email"] = "must not be empty"
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		fields["amount"] = "must be greater than zero"
	} else if req.Amount.Exponent() < -2 {
		fields["amount"] = "must have at most two fractional digits"
	}
	if !domain.SupportedCurrencies[req.Currency] {
		fields["currency"] = "unsupported currency"
	} else if req.Tenant != nil && !req.Tenant.AcceptsCurrency(req.Currency) {
		fields["currency"] = "not enabled for this tenant"
	}

	if len(fields) > 0 {
		return apperror.ValidationFields(fields)
	}
	return nil
}

// Initiate starts a new Payment. Idempotent on (tenant, idempotency_key):
// a repeat call with the same key returns the existing Payment without
// contacting upstream again (§4.2).
func (e *paymentEngine) Initiate(ctx context.Context, req ports.InitiatePaymentInput) (*domain.Payment, error) {
	if verr := validateInitiateInput(req); verr != nil {
		return nil, verr
	}

	var idemCacheKey string
	if req.IdempotencyKey != "" && req.Tenant != nil {
		idemCacheKey = req.Tenant.ID.String() + ":" + req.IdempotencyKey

		if cached := e.lookupIdempotencyCache(ctx, idemCacheKey); cached != nil {
			return cached, nil
		}

		existing, err := e.payments.GetByIdempotencyKey(ctx, req.Tenant.ID, req.IdempotencyKey)
		if err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	reference, err := MintUniqueReference(ctx, func(ctx context.Context, ref string) (bool, error) {
		p, err := e.payments.GetByReference(ctx, ref)
		if err != nil {
			return false, err
		}
		return p != nil, nil
	})
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	callbackURL := req.CallbackURL
	if callbackURL == "" && req.Tenant != nil {
		callbackURL = req.Tenant.DefaultCallbackURL
	}

	payment := &domain.Payment{
		ID:             uuid.New(),
		Reference:      reference,
		ServiceRef:     req.ServiceRef,
		IdempotencyKey: req.IdempotencyKey,
		Email:          req.Email,
		Name:           req.Name,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Fees:           decimal.Zero,
		RefundedAmount: decimal.Zero,
		Status:         domain.PaymentStatusPending,
		RefundStatus:   domain.RefundStatusNone,
		Description:    req.Description,
		Metadata:       req.Metadata,
		CallbackURL:    callbackURL,
		ClientIP:       req.ClientIP,
	}
	if req.Tenant != nil {
		payment.Tenant = &req.Tenant.ID
	}

	if err := e.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, ports.ErrIdempotencyConflict) && req.Tenant != nil {
			existing, lookupErr := e.payments.GetByIdempotencyKey(ctx, req.Tenant.ID, req.IdempotencyKey)
			if lookupErr != nil {
				return nil, apperror.ErrDatabaseError(lookupErr)
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, apperror.ErrDatabaseError(err)
	}

	result, err := e.processor.Initiate(ctx, ports.InitiateRequest{
		Reference:   payment.Reference,
		Email:       payment.Email,
		AmountMinor: payment.AmountInMinorUnits(),
		Currency:    payment.Currency,
		CallbackURL: e.verifyCallbackURL(payment.Reference),
	})
	if err != nil {
		return nil, apperror.ErrUpstreamFailure("could not reach payment processor")
	}
	if !result.Status {
		return nil, apperror.ErrUpstreamFailure(result.Message)
	}

	if err := e.payments.SetAuthorizationURL(ctx, payment.Reference, result.AuthorizationURL); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	payment.AuthorizationURL = result.AuthorizationURL

	if idemCacheKey != "" {
		e.storeIdempotencyCache(ctx, idemCacheKey, payment)
	}
	return payment, nil
}

func (e *paymentEngine) verifyCallbackURL(reference string) string {
	return fmt.Sprintf("%s/payments/verify/?reference=%s", e.siteURL, reference)
}

// lookupIdempotencyCache consults the Redis-layer fast path in front of the
// authoritative (tenant, idempotency_key) uniqueness constraint. A cache
// miss or any cache error falls through silently to the DB lookup.
func (e *paymentEngine) lookupIdempotencyCache(ctx context.Context, key string) *domain.Payment {
	if e.idemCache == nil {
		return nil
	}
	raw, err := e.idemCache.Get(ctx, key)
	if err != nil || raw == nil {
		return nil
	}
	var cached cachedIdempotentResult
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil
	}
	return &domain.Payment{
		Reference:        cached.Reference,
		AuthorizationURL: cached.AuthorizationURL,
		Status:           domain.PaymentStatusPending,
	}
}

func (e *paymentEngine) storeIdempotencyCache(ctx context.Context, key string, p *domain.Payment) {
	if e.idemCache == nil {
		return
	}
	raw, err := json.Marshal(cachedIdempotentResult{Reference: p.Reference, AuthorizationURL: p.AuthorizationURL})
	if err != nil {
		return
	}
	if err := e.idemCache.Set(ctx, key, raw, idempotencyCacheTTL); err != nil {
		e.log.Warn().Err(err).Str("reference", p.Reference).Msg("payment engine: failed to write idempotency cache")
	}
}

// Verify queries upstream by reference and applies the resulting state
// transition. Idempotent: a second call for an already-terminal Payment
// performs the conditional update, observes ok=false, and dispatches
// nothing further (§4.2, §5).
func (e *paymentEngine) Verify(ctx context.Context, reference string) (*domain.Payment, error) {
	payment, err := e.payments.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if payment == nil {
		return nil, apperror.ErrPaymentNotFound()
	}

	result, err := e.processor.Verify(ctx, reference)
	if err != nil {
		return nil, apperror.ErrUpstreamFailure("could not reach payment processor")
	}
	if !result.Status {
		return nil, apperror.ErrUpstreamFailure(result.Message)
	}

	switch result.ProcessorStatus {
	case "success":
		return e.applySuccessTransition(ctx, reference, result.TransactionID, result.Channel, domain.MinorUnitsToAmount(result.FeesMinor))
	case "abandoned":
		ok, p, err := e.payments.TransitionToAbandoned(ctx, reference)
		if err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		if !ok {
			return payment, nil
		}
		return p, nil
	default:
		ok, p, err := e.payments.TransitionToFailed(ctx, reference)
		if err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		if !ok {
			return payment, nil
		}
		return p, nil
	}
}

func (e *paymentEngine) applySuccessTransition(ctx context.Context, reference, processorTransactionID, channel string, fees decimal.Decimal) (*domain.Payment, error) {
	ok, p, err := e.payments.TransitionToSuccess(ctx, reference, processorTransactionID, channel, fees)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if !ok {
		// The row had already left "pending" — either a racing verification
		// path won, or it was already terminal. No duplicate dispatch.
		existing, lookupErr := e.payments.GetByReference(ctx, reference)
		if lookupErr != nil {
			return nil, apperror.ErrDatabaseError(lookupErr)
		}
		return existing, nil
	}

	if p.HasOwningTenant() {
		e.dispatchIfTenantResolvable(ctx, p, "payment.success")
	}
	return p, nil
}

// dispatchIfTenantResolvable resolves p's owning Tenant and hands off to the
// outbound dispatcher (C4). Resolution failure only logs: a webhook never
// blocks or fails the caller's request (§4.4, §7).
func (e *paymentEngine) dispatchIfTenantResolvable(ctx context.Context, p *domain.Payment, event string) {
	if e.tenants == nil || e.dispatcher == nil || p.Tenant == nil {
		return
	}
	tenant, err := e.tenants.GetByID(ctx, *p.Tenant)
	if err != nil || tenant == nil {
		e.log.Warn().Err(err).Str("reference", p.Reference).Msg("payment engine: could not resolve tenant for webhook dispatch")
		return
	}
	e.dispatcher.Dispatch(ctx, tenant, p, event)
}

// HandleInboundChargeSuccess applies the success transition driven by an
// inbound processor webhook rather than a user-redirect verify call (C3).
func (e *paymentEngine) HandleInboundChargeSuccess(ctx context.Context, reference, processorTransactionID, channel string, feesMinor int64) error {
	payment, err := e.payments.GetByReference(ctx, reference)
	if err != nil {
		return err
	}
	if payment == nil {
		e.log.Warn().Str("reference", reference).Msg("inbound charge.success: unknown reference")
		return nil
	}
	_, err = e.applySuccessTransition(ctx, reference, processorTransactionID, channel, domain.MinorUnitsToAmount(feesMinor))
	return err
}

// HandleInboundRefundProcessed applies a refund confirmation driven by an
// inbound processor webhook (C3).
func (e *paymentEngine) HandleInboundRefundProcessed(ctx context.Context, reference string, amountMinor int64, processorRefundID string) error {
	payment, err := e.payments.GetByReference(ctx, reference)
	if err != nil {
		return err
	}
	if payment == nil {
		e.log.Warn().Str("reference", reference).Msg("inbound refund.processed: unknown reference")
		return nil
	}

	newRefunded := payment.RefundedAmount.Add(domain.MinorUnitsToAmount(amountMinor))
	refundStatus := domain.RefundStatusPartial
	if newRefunded.GreaterThanOrEqual(payment.Amount) {
		refundStatus = domain.RefundStatusFull
	}

	updated, err := e.payments.ApplyRefund(ctx, reference, newRefunded, refundStatus, processorRefundID)
	if err != nil {
		return err
	}

	if updated.HasOwningTenant() {
		e.dispatchIfTenantResolvable(ctx, updated, "payment.refunded")
	}
	return nil
}

// Refund requests a full or partial refund of an already-successful Payment
// scoped to tenantID. Amount nil means a full refund of the remaining
// refundable balance.
func (e *paymentEngine) Refund(ctx context.Context, tenantID uuid.UUID, reference string, amount *decimal.Decimal, reason string) (*domain.Payment, error) {
	payment, err := e.payments.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if payment == nil || !payment.HasOwningTenant() || *payment.Tenant != tenantID {
		return nil, apperror.ErrPaymentNotFound()
	}
	if !payment.IsRefundable() {
		return nil, apperror.ErrNotRefundable()
	}

	refundable := payment.RefundableAmount()
	requested := refundable
	if amount != nil {
		requested = *amount
		if requested.LessThanOrEqual(decimal.Zero) || requested.GreaterThan(refundable) {
			return nil, apperror.ErrRefundAmountExceedsRefundable()
		}
	}

	amountMinor := domain.DecimalToMinorUnits(requested)
	result, err := e.processor.Refund(ctx, payment.ProcessorTransactionID, &amountMinor, reason)
	if err != nil {
		return nil, apperror.ErrUpstreamFailure("could not reach payment processor")
	}
	if !result.Status {
		return nil, apperror.ErrUpstreamFailure(result.Message)
	}

	newRefunded := payment.RefundedAmount.Add(domain.MinorUnitsToAmount(result.RefundedMinor))
	refundStatus := domain.RefundStatusPartial
	if newRefunded.GreaterThanOrEqual(payment.Amount) {
		refundStatus = domain.RefundStatusFull
	}

	updated, err := e.payments.ApplyRefund(ctx, reference, newRefunded, refundStatus, result.RefundID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	if updated.HasOwningTenant() {
		e.dispatchIfTenantResolvable(ctx, updated, "payment.refunded")
	}
	return updated, nil
}
