package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"acoruss-gateway/internal/core/domain"
	"acoruss-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolationCode = "23505"

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a new pending Payment. A conflict on (tenant_id,
// idempotency_key) is translated into ports.ErrIdempotencyConflict.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (id, tenant_id, reference, service_reference, idempotency_key,
		email, name, amount, currency, fees, refunded_amount, status, refund_status, channel,
		description, processor_transaction_id, processor_refund_id, authorization_url,
		webhook_delivered, webhook_delivered_at, metadata, callback_url, client_ip, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Tenant, p.Reference, p.ServiceRef, p.IdempotencyKey,
		p.Email, p.Name, p.Amount, p.Currency, p.Fees, p.RefundedAmount,
		p.Status, p.RefundStatus, p.Channel, p.Description,
		p.ProcessorTransactionID, p.ProcessorRefundID, p.AuthorizationURL,
		p.WebhookDelivered, p.WebhookDeliveredAt, p.Metadata, p.CallbackURL,
		p.ClientIP, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode && strings.Contains(pgErr.ConstraintName, "idempotency") {
			return ports.ErrIdempotencyConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByReference fetches a payment by its public reference.
func (r *PaymentRepo) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	query := paymentSelectColumns + `FROM payments WHERE reference = $1`
	return r.scanPayment(r.pool.QueryRow(ctx, query, reference))
}

// GetByIdempotencyKey fetches a payment by (tenant, idempotency key).
func (r *PaymentRepo) GetByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*domain.Payment, error) {
	query := paymentSelectColumns + `FROM payments WHERE tenant_id = $1 AND idempotency_key = $2`
	return r.scanPayment(r.pool.QueryRow(ctx, query, tenantID, key))
}

// SetAuthorizationURL publishes the authorization_url once the upstream
// initiate call has succeeded.
func (r *PaymentRepo) SetAuthorizationURL(ctx context.Context, reference, authorizationURL string) error {
	query := `UPDATE payments SET authorization_url = $1, updated_at = NOW() WHERE reference = $2`
	tag, err := r.pool.Exec(ctx, query, authorizationURL, reference)
	if err != nil {
		return fmt.Errorf("set authorization url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set authorization url: payment %s not found", reference)
	}
	return nil
}

// TransitionToSuccess performs the conditional
// UPDATE ... WHERE reference=? AND status='pending' that resolves the
// callback/webhook race. ok=false means some other transition already won.
func (r *PaymentRepo) TransitionToSuccess(ctx context.Context, reference, processorTransactionID, channel string, fees decimal.Decimal) (bool, *domain.Payment, error) {
	query := `UPDATE payments SET status = $1, processor_transaction_id = $2, channel = $3, fees = $4, updated_at = NOW()
		WHERE reference = $5 AND status = $6`
	tag, err := r.pool.Exec(ctx, query, domain.PaymentStatusSuccess, processorTransactionID, channel, fees, reference, domain.PaymentStatusPending)
	if err != nil {
		return false, nil, fmt.Errorf("transition payment to success: %w", err)
	}
	p, err := r.GetByReference(ctx, reference)
	if err != nil {
		return false, nil, err
	}
	return tag.RowsAffected() > 0, p, nil
}

// TransitionToAbandoned conditionally moves a pending payment to abandoned.
func (r *PaymentRepo) TransitionToAbandoned(ctx context.Context, reference string) (bool, *domain.Payment, error) {
	return r.transitionSimple(ctx, reference, domain.PaymentStatusAbandoned)
}

// TransitionToFailed conditionally moves a pending payment to failed.
func (r *PaymentRepo) TransitionToFailed(ctx context.Context, reference string) (bool, *domain.Payment, error) {
	return r.transitionSimple(ctx, reference, domain.PaymentStatusFailed)
}

func (r *PaymentRepo) transitionSimple(ctx context.Context, reference string, to domain.PaymentStatus) (bool, *domain.Payment, error) {
	query := `UPDATE payments SET status = $1, updated_at = NOW() WHERE reference = $2 AND status = $3`
	tag, err := r.pool.Exec(ctx, query, to, reference, domain.PaymentStatusPending)
	if err != nil {
		return false, nil, fmt.Errorf("transition payment to %s: %w", to, err)
	}
	p, err := r.GetByReference(ctx, reference)
	if err != nil {
		return false, nil, err
	}
	return tag.RowsAffected() > 0, p, nil
}

// ApplyRefund mutates refund fields only; status never changes.
func (r *PaymentRepo) ApplyRefund(ctx context.Context, reference string, refundedAmount decimal.Decimal, refundStatus domain.RefundStatus, processorRefundID string) (*domain.Payment, error) {
	query := `UPDATE payments SET refunded_amount = $1, refund_status = $2, processor_refund_id = $3, updated_at = NOW()
		WHERE reference = $4`
	tag, err := r.pool.Exec(ctx, query, refundedAmount, refundStatus, processorRefundID, reference)
	if err != nil {
		return nil, fmt.Errorf("apply refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("apply refund: payment %s not found", reference)
	}
	return r.GetByReference(ctx, reference)
}

// MarkWebhookDelivered sets the advisory delivered flag.
func (r *PaymentRepo) MarkWebhookDelivered(ctx context.Context, reference string, at time.Time) error {
	query := `UPDATE payments SET webhook_delivered = true, webhook_delivered_at = $1, updated_at = NOW() WHERE reference = $2`
	_, err := r.pool.Exec(ctx, query, at, reference)
	if err != nil {
		return fmt.Errorf("mark webhook delivered: %w", err)
	}
	return nil
}

// List fetches a tenant's payments with filtering and pagination.
func (r *PaymentRepo) List(ctx context.Context, params ports.PaymentListParams) ([]domain.Payment, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argIdx))
	args = append(args, params.TenantID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Email != nil {
		conditions = append(conditions, fmt.Sprintf("email = $%d", argIdx))
		args = append(args, *params.Email)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM payments %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	page, perPage := params.Page, params.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	dataQuery := fmt.Sprintf("%sFROM payments %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", paymentSelectColumns, where, argIdx, argIdx+1)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPaymentRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, total, nil
}

const paymentSelectColumns = `SELECT id, tenant_id, reference, service_reference, idempotency_key,
	email, name, amount, currency, fees, refunded_amount, status, refund_status, channel,
	description, processor_transaction_id, processor_refund_id, authorization_url,
	webhook_delivered, webhook_delivered_at, metadata, callback_url, client_ip, created_at, updated_at
	`

type scanner interface {
	Scan(dest ...any) error
}

func (r *PaymentRepo) scanPayment(row pgx.Row) (*domain.Payment, error) {
	p, err := scanPaymentRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}

func scanPaymentRow(row scanner) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(
		&p.ID, &p.Tenant, &p.Reference, &p.ServiceRef, &p.IdempotencyKey,
		&p.Email, &p.Name, &p.Amount, &p.Currency, &p.Fees, &p.RefundedAmount,
		&p.Status, &p.RefundStatus, &p.Channel, &p.Description,
		&p.ProcessorTransactionID, &p.ProcessorRefundID, &p.AuthorizationURL,
		&p.WebhookDelivered, &p.WebhookDeliveredAt, &p.Metadata, &p.CallbackURL,
		&p.ClientIP, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
