package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"acoruss-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWebhookLogRepo is a hand-written in-memory fake, not a generated mock.
type fakeWebhookLogRepo struct {
	mu      sync.Mutex
	entries []*domain.WebhookDeliveryLog
}

func (f *fakeWebhookLogRepo) Create(ctx context.Context, log *domain.WebhookDeliveryLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, log)
	return nil
}

func (f *fakeWebhookLogRepo) Update(ctx context.Context, log *domain.WebhookDeliveryLog) error {
	return nil
}

func (f *fakeWebhookLogRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeEncryptionService struct{}

func (fakeEncryptionService) Encrypt(plaintext string) (string, error) { return plaintext, nil }
func (fakeEncryptionService) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

func testPayment() *domain.Payment {
	return &domain.Payment{
		ID:         uuid.New(),
		Reference:  "acoruss-test123",
		Email:      "buyer@example.com",
		Amount:     decimal.NewFromFloat(100.50),
		Currency:   "KES",
		Status:     domain.PaymentStatusSuccess,
		RefundStatus: domain.RefundStatusNone,
		CreatedAt:  time.Now(),
	}
}

var testRetryDelays = []time.Duration{1 * time.Second, 5 * time.Second, 25 * time.Second}

func TestWebhookDispatcher_SkipsWhenNoWebhookURL(t *testing.T) {
	logRepo := &fakeWebhookLogRepo{}
	payments := newFakePaymentRepository()
	d := NewWebhookDispatcher(logRepo, payments, NewHMACSHA256SignatureService(), fakeEncryptionService{}, http.DefaultClient, 3, testRetryDelays, 15*time.Second, zerolog.Nop())

	tenant := &domain.Tenant{ID: uuid.New(), APISecretEnc: "secret"}
	d.Dispatch(context.Background(), tenant, testPayment(), "payment.success")

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, logRepo.count())
}

func TestWebhookDispatcher_DeliversAndSigns(t *testing.T) {
	var receivedSig, receivedEvent string
	var receivedBody []byte
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSig = r.Header.Get("X-Acoruss-Signature")
		receivedEvent = r.Header.Get("X-Acoruss-Event")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		receivedBody = buf
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	logRepo := &fakeWebhookLogRepo{}
	payments := newFakePaymentRepository()
	sigSvc := NewHMACSHA256SignatureService()
	d := NewWebhookDispatcher(logRepo, payments, sigSvc, fakeEncryptionService{}, srv.Client(), 3, testRetryDelays, 15*time.Second, zerolog.Nop())

	tenant := &domain.Tenant{ID: uuid.New(), APISecretEnc: "tenant-secret", WebhookURL: srv.URL}
	payment := testPayment()
	require.NoError(t, payments.Create(context.Background(), payment))
	d.Dispatch(context.Background(), tenant, payment, "payment.success")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered in time")
	}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, "payment.success", receivedEvent)
	assert.True(t, sigSvc.Verify("tenant-secret", receivedBody, receivedSig))

	var payload webhookPayload
	require.NoError(t, json.Unmarshal(receivedBody, &payload))
	assert.Equal(t, payment.Reference, payload.Data.Reference)
	assert.Equal(t, "100.5", payload.Data.Amount)

	assert.Equal(t, 1, logRepo.count())

	stored, err := payments.GetByReference(context.Background(), payment.Reference)
	require.NoError(t, err)
	assert.True(t, stored.WebhookDelivered, "successful delivery must be recorded against the payment")
}

func TestWebhookDispatcher_RetriesOnFailureThenSucceeds(t *testing.T) {
	var attempts int32
	var mu sync.Mutex
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		close(done)
	}))
	defer srv.Close()

	logRepo := &fakeWebhookLogRepo{}
	payments := newFakePaymentRepository()
	d := NewWebhookDispatcher(logRepo, payments, NewHMACSHA256SignatureService(), fakeEncryptionService{}, srv.Client(), 3, testRetryDelays, 15*time.Second, zerolog.Nop())

	tenant := &domain.Tenant{ID: uuid.New(), APISecretEnc: "s", WebhookURL: srv.URL}
	payment := testPayment()
	require.NoError(t, payments.Create(context.Background(), payment))
	d.Dispatch(context.Background(), tenant, payment, "payment.success")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("webhook not delivered after retry")
	}
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(2), attempts)
	assert.Equal(t, 2, logRepo.count())
}
