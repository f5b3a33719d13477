package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a Payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusAbandoned PaymentStatus = "abandoned"
)

// RefundStatus represents the cumulative refund state of a Payment.
type RefundStatus string

const (
	RefundStatusNone    RefundStatus = "none"
	RefundStatusPending RefundStatus = "pending"
	RefundStatusPartial RefundStatus = "partial"
	RefundStatusFull    RefundStatus = "full"
	RefundStatusFailed  RefundStatus = "failed"
)

// SupportedCurrencies is the set of ISO-4217 codes the gateway accepts.
var SupportedCurrencies = map[string]bool{
	"KES": true,
	"USD": true,
	"NGN": true,
}

// Payment is one attempt to collect money from a user for a tenant.
type Payment struct {
	ID     uuid.UUID  `json:"id"`
	Tenant *uuid.UUID `json:"tenant_id,omitempty"` // nil = direct payment, no owning tenant

	Reference       string  `json:"reference"`
	ServiceRef      string  `json:"service_reference,omitempty"`
	IdempotencyKey  string  `json:"-"`
	Email           string  `json:"email"`
	Name            string  `json:"name,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string  `json:"currency"`
	Fees            decimal.Decimal `json:"fees"`
	RefundedAmount  decimal.Decimal `json:"refunded_amount"`
	Status          PaymentStatus   `json:"status"`
	RefundStatus    RefundStatus    `json:"refund_status"`
	Channel         string          `json:"channel,omitempty"`
	Description     string          `json:"description,omitempty"`

	ProcessorTransactionID string `json:"processor_transaction_id,omitempty"`
	ProcessorRefundID      string `json:"processor_refund_id,omitempty"`
	AuthorizationURL       string `json:"authorization_url,omitempty"`

	WebhookDelivered   bool       `json:"webhook_delivered"`
	WebhookDeliveredAt *time.Time `json:"webhook_delivered_at,omitempty"`

	Metadata    map[string]any `json:"metadata,omitempty"`
	CallbackURL string         `json:"-"`
	ClientIP    string         `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRefundable reports whether this Payment may currently accept a refund.
// status = success ∧ refund_status ∈ {none, partial} ∧ (amount − refunded_amount) > 0
func (p *Payment) IsRefundable() bool {
	if p.Status != PaymentStatusSuccess {
		return false
	}
	if p.RefundStatus != RefundStatusNone && p.RefundStatus != RefundStatusPartial {
		return false
	}
	return p.RefundableAmount().GreaterThan(decimal.Zero)
}

// RefundableAmount returns the amount still available for refund.
func (p *Payment) RefundableAmount() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}

// RecomputeRefundStatus derives RefundStatus from RefundedAmount per §3:
// full ⇔ refunded_amount = amount; partial ⇔ 0 < refunded_amount < amount;
// none ⇔ refunded_amount = 0 ∧ status ≠ refund-failed.
func (p *Payment) RecomputeRefundStatus() {
	switch {
	case p.RefundedAmount.GreaterThanOrEqual(p.Amount) && p.RefundedAmount.GreaterThan(decimal.Zero):
		p.RefundStatus = RefundStatusFull
	case p.RefundedAmount.GreaterThan(decimal.Zero):
		p.RefundStatus = RefundStatusPartial
	default:
		if p.RefundStatus != RefundStatusFailed {
			p.RefundStatus = RefundStatusNone
		}
	}
}

// AmountInMinorUnits returns round(amount * 100), the integer upstream APIs use.
func (p *Payment) AmountInMinorUnits() int64 {
	return amountToMinorUnits(p.Amount)
}

// RefundableAmountInMinorUnits returns round(refundable_amount * 100).
func (p *Payment) RefundableAmountInMinorUnits() int64 {
	return amountToMinorUnits(p.RefundableAmount())
}

func amountToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// DecimalToMinorUnits returns round(amount * 100), exported for components
// (e.g. the refund flow) that convert an arbitrary decimal amount rather
// than a Payment's own Amount field.
func DecimalToMinorUnits(amount decimal.Decimal) int64 {
	return amountToMinorUnits(amount)
}

// MinorUnitsToAmount converts an upstream-reported minor-unit integer back
// to a major-unit decimal amount with 2 fractional digits.
func MinorUnitsToAmount(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).DivRound(decimal.NewFromInt(100), 2)
}

// HasOwningTenant reports whether this Payment belongs to a Tenant, as
// opposed to a direct payment initiated through the operator's own page.
func (p *Payment) HasOwningTenant() bool {
	return p.Tenant != nil
}
