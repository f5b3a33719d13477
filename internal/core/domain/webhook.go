package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	maxResponseBodyLen = 2000
	maxErrorMessageLen = 500
)

// WebhookDeliveryLog is an append-only audit record of one outbound
// delivery attempt. One row per attempt, ordered by CreatedAt.
type WebhookDeliveryLog struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	PaymentID uuid.UUID

	TargetURL      string
	Event          string
	RequestHeaders map[string]string
	RequestBody    string // structured JSON, as sent

	ResponseStatusCode int
	ResponseBody       string
	Attempt            int // 1-based
	Success            bool
	ErrorMessage       string
	DurationMS         int64

	CreatedAt time.Time
}

// TruncateResponseBody truncates s to the logged field's max length.
func TruncateResponseBody(s string) string {
	if len(s) <= maxResponseBodyLen {
		return s
	}
	return s[:maxResponseBodyLen]
}

// TruncateErrorMessage truncates s to the logged field's max length.
func TruncateErrorMessage(s string) string {
	if len(s) <= maxErrorMessageLen {
		return s
	}
	return s[:maxErrorMessageLen]
}
