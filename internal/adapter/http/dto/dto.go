package dto

// InitiatePaymentRequest is the request body for POST /payments/initiate/.
type InitiatePaymentRequest struct {
	Email          string         `json:"email" binding:"required,email"`
	Name           string         `json:"name,omitempty"`
	Amount         string         `json:"amount" binding:"required"`
	Currency       string         `json:"currency" binding:"required,len=3"`
	Description    string         `json:"description,omitempty"`
	ServiceRef     string         `json:"service_reference,omitempty" binding:"omitempty,safe_id,max=100"`
	CallbackURL    string         `json:"callback_url,omitempty" binding:"omitempty,safe_url"`
	IdempotencyKey string         `json:"idempotency_key,omitempty" binding:"omitempty,max=200"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// InitiatePaymentResponse is the success body for POST /payments/initiate/.
type InitiatePaymentResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	CallbackURL      string `json:"callback_url,omitempty"`
}

// RefundRequest is the request body for POST /payments/<ref>/refund/.
type RefundRequest struct {
	Amount *string `json:"amount,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

// PaymentResponse is the full data block returned for a single payment.
type PaymentResponse struct {
	Reference          string `json:"reference"`
	ServiceReference   string `json:"service_reference,omitempty"`
	Email              string `json:"email"`
	Name               string `json:"name,omitempty"`
	Amount             string `json:"amount"`
	Currency           string `json:"currency"`
	Fees               string `json:"fees"`
	RefundedAmount     string `json:"refunded_amount"`
	Status             string `json:"status"`
	RefundStatus       string `json:"refund_status"`
	Channel            string `json:"channel,omitempty"`
	Description        string `json:"description,omitempty"`
	AuthorizationURL   string `json:"authorization_url,omitempty"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

// PaymentListMeta carries pagination metadata for GET /payments/.
type PaymentListMeta struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Pages   int64 `json:"pages"`
}

// PaymentListResponse wraps a page of payments.
type PaymentListResponse struct {
	Data []PaymentResponse `json:"data"`
	Meta PaymentListMeta   `json:"meta"`
}
