package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"acoruss-gateway/internal/core/domain"
	"acoruss-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const webhookUserAgent = "Acoruss-Payments/1.0"

// webhookPayload is the structured body of an outbound event notification.
type webhookPayload struct {
	Event string             `json:"event"`
	Data  webhookPayloadData `json:"data"`
}

type webhookPayloadData struct {
	Reference      string `json:"reference"`
	ServiceRef     string `json:"service_reference"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	Channel        string `json:"channel"`
	Fees           string `json:"fees"`
	Description    string `json:"description"`
	RefundStatus   string `json:"refund_status"`
	RefundedAmount string `json:"refunded_amount"`
	Metadata       any    `json:"metadata,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// httpDoer is implemented by *http.Client; narrowed for testability.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// webhookDispatcher implements ports.WebhookDispatcher (C4).
type webhookDispatcher struct {
	logRepo        ports.WebhookDeliveryLogRepository
	payments       ports.PaymentRepository
	sigSvc         ports.SignatureService
	encSvc         ports.EncryptionService
	httpClient     httpDoer
	log            zerolog.Logger
	maxAttempts    int
	retryDelays    []time.Duration
	attemptTimeout time.Duration
}

// NewWebhookDispatcher creates a new outbound webhook dispatcher. encSvc
// decrypts Tenant.APISecretEnc so the signature is computed with the
// tenant's plaintext API secret, never the ciphertext stored at rest.
// maxAttempts/retryDelays/attemptTimeout come from config.WebhookConfig
// (§6); retryDelays[i] is the wait after attempt i+1. Delays apply only
// between attempts, so entries beyond the first maxAttempts-1 are unused,
// and a missing entry means no wait. payments records delivery against the Payment on the
// first successful attempt via MarkWebhookDelivered (§4.4).
func NewWebhookDispatcher(logRepo ports.WebhookDeliveryLogRepository, payments ports.PaymentRepository, sigSvc ports.SignatureService, encSvc ports.EncryptionService, httpClient httpDoer, maxAttempts int, retryDelays []time.Duration, attemptTimeout time.Duration, log zerolog.Logger) ports.WebhookDispatcher {
	return &webhookDispatcher{
		logRepo:        logRepo,
		payments:       payments,
		sigSvc:         sigSvc,
		encSvc:         encSvc,
		httpClient:     httpClient,
		maxAttempts:    maxAttempts,
		retryDelays:    retryDelays,
		attemptTimeout: attemptTimeout,
		log:            log,
	}
}

func buildWebhookPayload(payment *domain.Payment, event string) webhookPayload {
	return webhookPayload{
		Event: event,
		Data: webhookPayloadData{
			Reference:      payment.Reference,
			ServiceRef:     payment.ServiceRef,
			Email:          payment.Email,
			Name:           payment.Name,
			Amount:         payment.Amount.String(),
			Currency:       payment.Currency,
			Status:         string(payment.Status),
			Channel:        payment.Channel,
			Fees:           payment.Fees.String(),
			Description:    payment.Description,
			RefundStatus:   string(payment.RefundStatus),
			RefundedAmount: payment.RefundedAmount.String(),
			Metadata:       payment.Metadata,
			CreatedAt:      payment.CreatedAt.Format(time.RFC3339),
		},
	}
}

// Dispatch delivers event for payment to tenant.webhook_url. Fire-and-forget:
// it starts the retry goroutine and returns immediately. No webhook_url
// means no delivery and no log row is created (§4.4).
func (d *webhookDispatcher) Dispatch(ctx context.Context, tenant *domain.Tenant, payment *domain.Payment, event string) {
	if tenant == nil || !tenant.HasWebhook() {
		d.log.Debug().Str("reference", payment.Reference).Msg("webhook: tenant has no webhook_url, skipping")
		return
	}

	secretKey, err := d.encSvc.Decrypt(tenant.APISecretEnc)
	if err != nil {
		d.log.Error().Err(err).Str("tenant_id", tenant.ID.String()).Msg("webhook: failed to decrypt tenant secret")
		return
	}

	payload := buildWebhookPayload(payment, event)
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		d.log.Error().Err(err).Str("reference", payment.Reference).Msg("webhook: failed to marshal payload")
		return
	}

	go d.deliverWithRetries(tenant, payment, event, secretKey, payloadBytes)
}

func (d *webhookDispatcher) deliverWithRetries(tenant *domain.Tenant, payment *domain.Payment, event, secretKey string, payloadBytes []byte) {
	signature := d.sigSvc.Sign(secretKey, payloadBytes)
	headers := map[string]string{
		"Content-Type":      "application/json",
		"X-Acoruss-Signature": signature,
		"X-Acoruss-Event":     event,
		"User-Agent":          webhookUserAgent,
	}

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		logEntry := &domain.WebhookDeliveryLog{
			ID:             uuid.New(),
			TenantID:       tenant.ID,
			PaymentID:      payment.ID,
			TargetURL:      tenant.WebhookURL,
			Event:          event,
			RequestHeaders: headers,
			RequestBody:    string(payloadBytes),
			Attempt:        attempt,
			Success:        false,
			CreatedAt:      time.Now(),
		}
		if err := d.logRepo.Create(context.Background(), logEntry); err != nil {
			d.log.Warn().Err(err).Str("reference", payment.Reference).Msg("webhook: failed to persist attempt log")
		}

		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), d.attemptTimeout)
		status, respBody, reqErr := d.attemptOnce(ctx, tenant.WebhookURL, payloadBytes, headers)
		cancel()
		logEntry.DurationMS = time.Since(start).Milliseconds()

		if reqErr != nil {
			logEntry.ErrorMessage = domain.TruncateErrorMessage(reqErr.Error())
			d.updateLog(logEntry)
			d.log.Warn().Err(reqErr).Str("reference", payment.Reference).Int("attempt", attempt).Msg("webhook: delivery error")
		} else {
			logEntry.ResponseStatusCode = status
			logEntry.ResponseBody = domain.TruncateResponseBody(respBody)
			logEntry.Success = status >= 200 && status < 300
			d.updateLog(logEntry)

			if logEntry.Success {
				d.log.Info().Str("reference", payment.Reference).Int("attempt", attempt).Msg("webhook: delivered")
				if err := d.payments.MarkWebhookDelivered(context.Background(), payment.Reference, time.Now()); err != nil {
					d.log.Warn().Err(err).Str("reference", payment.Reference).Msg("webhook: failed to mark delivered")
				}
				return
			}
			d.log.Warn().Str("reference", payment.Reference).Int("attempt", attempt).Int("status", status).Msg("webhook: non-2xx response")
		}

		if attempt < d.maxAttempts && attempt-1 < len(d.retryDelays) {
			time.Sleep(d.retryDelays[attempt-1])
		}
	}

	d.log.Error().Str("reference", payment.Reference).Msg("webhook: all retry attempts exhausted")
}

func (d *webhookDispatcher) attemptOnce(ctx context.Context, url string, payloadBytes []byte, headers map[string]string) (status int, body string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return 0, "", fmt.Errorf("building request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, "", nil
	}
	return resp.StatusCode, buf.String(), nil
}

func (d *webhookDispatcher) updateLog(entry *domain.WebhookDeliveryLog) {
	if err := d.logRepo.Update(context.Background(), entry); err != nil {
		d.log.Warn().Err(err).Str("log_id", entry.ID.String()).Msg("webhook: failed to persist delivery outcome")
	}
}
