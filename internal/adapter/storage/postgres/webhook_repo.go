package postgres

import (
	"context"
	"fmt"

	"acoruss-gateway/internal/core/domain"
)

// WebhookDeliveryLogRepo implements ports.WebhookDeliveryLogRepository.
type WebhookDeliveryLogRepo struct {
	pool Pool
}

// NewWebhookDeliveryLogRepo creates a new WebhookDeliveryLogRepo.
func NewWebhookDeliveryLogRepo(pool Pool) *WebhookDeliveryLogRepo {
	return &WebhookDeliveryLogRepo{pool: pool}
}

// Create inserts a new delivery attempt row.
func (r *WebhookDeliveryLogRepo) Create(ctx context.Context, log *domain.WebhookDeliveryLog) error {
	query := `INSERT INTO webhook_delivery_logs
		(id, tenant_id, payment_id, target_url, event, request_headers, request_body,
		 response_status_code, response_body, attempt, success, error_message, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		log.ID, log.TenantID, log.PaymentID, log.TargetURL, log.Event,
		log.RequestHeaders, log.RequestBody,
		log.ResponseStatusCode, log.ResponseBody, log.Attempt, log.Success,
		log.ErrorMessage, log.DurationMS, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery log: %w", err)
	}
	return nil
}

// Update records the final outcome of a delivery attempt row.
func (r *WebhookDeliveryLogRepo) Update(ctx context.Context, log *domain.WebhookDeliveryLog) error {
	query := `UPDATE webhook_delivery_logs
		SET response_status_code = $1, response_body = $2, success = $3, error_message = $4, duration_ms = $5
		WHERE id = $6`

	tag, err := r.pool.Exec(ctx, query,
		log.ResponseStatusCode, log.ResponseBody, log.Success, log.ErrorMessage, log.DurationMS, log.ID,
	)
	if err != nil {
		return fmt.Errorf("update webhook delivery log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update webhook delivery log: %s not found", log.ID)
	}
	return nil
}
