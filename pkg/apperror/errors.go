package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string            `json:"error_code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"` // per-field validation errors
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"` // wrapped internal error, never exposed to the client
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

// ValidationFields returns a 400 with a per-field error map, per §7.
func ValidationFields(fields map[string]string) *AppError {
	return &AppError{
		Code:       "VAL_001",
		Message:    "validation failed",
		Fields:     fields,
		HTTPStatus: http.StatusBadRequest,
	}
}

// ErrInvalidAmount reports a non-positive amount or one with more than two
// fractional digits.
func ErrInvalidAmount() *AppError {
	return New("VAL_002", "amount must be positive with at most two fractional digits", http.StatusBadRequest)
}

// ErrUnsupportedCurrency reports a currency outside the supported set, or
// outside the tenant's allowed_currencies.
func ErrUnsupportedCurrency() *AppError {
	return New("VAL_003", "currency is not supported", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidAPIKey() *AppError {
	return New("AUTH_001", "invalid API key", http.StatusUnauthorized)
}

func ErrTenantInactive() *AppError {
	return New("AUTH_002", "tenant account is inactive", http.StatusForbidden)
}

func ErrIPNotAllowed() *AppError {
	return New("AUTH_003", "IP address not allowed", http.StatusForbidden)
}

func ErrInvalidSignature() *AppError {
	return New("AUTH_004", "invalid signature", http.StatusBadRequest)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Payment business logic (PAY) ----

func ErrPaymentNotFound() *AppError {
	return New("PAY_001", "payment not found", http.StatusNotFound)
}

func ErrNotRefundable() *AppError {
	return New("PAY_002", "payment is not eligible for refund", http.StatusBadRequest)
}

func ErrRefundAmountExceedsRefundable() *AppError {
	return New("PAY_003", "refund amount exceeds the refundable balance", http.StatusBadRequest)
}

// ---- Upstream processor (UPSTREAM) ----

// ErrUpstreamFailure wraps a ports.ProcessorResult failure message as a 502.
// No Payment state mutation may accompany this error (§7).
func ErrUpstreamFailure(message string) *AppError {
	return New("UPSTREAM_001", message, http.StatusBadGateway)
}

// ---- System & infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_002", "encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a generic 500.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "internal server error", http.StatusInternalServerError, err)
}
