package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"acoruss-gateway/internal/core/ports"
)

const (
	processorTimeout = 30 * time.Second
	processorBaseURL  = "https://api.paystack.co"
)

// paystackClient implements ports.ProcessorClient (C2) over the upstream
// processor's REST endpoints. Non-2xx HTTP responses are not treated as Go
// errors: the body is parsed and surfaced as ProcessorResult{Status:false}
// so the caller (C6) can make a policy decision. Transport, read and parse
// failures take the same Status:false shape; Go errors are returned only
// when the request body cannot be encoded or the request cannot be built.
type paystackClient struct {
	secretKey  string
	httpClient *http.Client
	baseURL    string
}

// NewProcessorClient creates a new upstream processor client. secretKey is
// the gateway's own credential with the upstream processor; no per-tenant
// secret is ever sent upstream.
func NewProcessorClient(secretKey string) ports.ProcessorClient {
	return &paystackClient{
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: processorTimeout},
		baseURL:    processorBaseURL,
	}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *paystackClient) do(ctx context.Context, method, path string, body any) (paystackEnvelope, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return paystackEnvelope{}, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return paystackEnvelope{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return paystackEnvelope{Status: false, Message: "upstream request failed"}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return paystackEnvelope{Status: false, Message: "upstream response unreadable"}, nil
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return paystackEnvelope{Status: false, Message: fmt.Sprintf("upstream error %d", resp.StatusCode)}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if env.Message == "" {
			env.Message = fmt.Sprintf("upstream error %d", resp.StatusCode)
		}
		env.Status = false
	}
	return env, nil
}

type initiateData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

func (c *paystackClient) Initiate(ctx context.Context, req ports.InitiateRequest) (ports.ProcessorResult, error) {
	body := map[string]any{
		"email":       req.Email,
		"amount":      req.AmountMinor,
		"reference":   req.Reference,
		"currency":    req.Currency,
		"callback_url": req.CallbackURL,
	}
	env, err := c.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return ports.ProcessorResult{}, err
	}
	if !env.Status {
		return ports.ProcessorResult{Status: false, Message: env.Message}, nil
	}
	var data initiateData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return ports.ProcessorResult{Status: false, Message: "malformed upstream response"}, nil
	}
	return ports.ProcessorResult{Status: true, AuthorizationURL: data.AuthorizationURL}, nil
}

type verifyData struct {
	Status    string `json:"status"`
	ID        int64  `json:"id"`
	Channel   string `json:"channel"`
	Fees      int64  `json:"fees"`
	Reference string `json:"reference"`
}

func (c *paystackClient) Verify(ctx context.Context, reference string) (ports.ProcessorResult, error) {
	env, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return ports.ProcessorResult{}, err
	}
	if !env.Status {
		return ports.ProcessorResult{Status: false, Message: env.Message}, nil
	}
	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return ports.ProcessorResult{Status: false, Message: "malformed upstream response"}, nil
	}
	return ports.ProcessorResult{
		Status:          true,
		TransactionID:   fmt.Sprintf("%d", data.ID),
		Channel:         data.Channel,
		FeesMinor:       data.Fees,
		ProcessorStatus: data.Status,
	}, nil
}

type refundData struct {
	ID     int64 `json:"id"`
	Amount int64 `json:"amount"`
}

func (c *paystackClient) Refund(ctx context.Context, reference string, amountMinor *int64, reason string) (ports.ProcessorResult, error) {
	body := map[string]any{"transaction": reference}
	if amountMinor != nil {
		body["amount"] = *amountMinor
	}
	if reason != "" {
		body["customer_note"] = reason
	}
	env, err := c.do(ctx, http.MethodPost, "/refund", body)
	if err != nil {
		return ports.ProcessorResult{}, err
	}
	if !env.Status {
		return ports.ProcessorResult{Status: false, Message: env.Message}, nil
	}
	var data refundData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return ports.ProcessorResult{Status: false, Message: "malformed upstream response"}, nil
	}
	return ports.ProcessorResult{
		Status:        true,
		RefundID:      fmt.Sprintf("%d", data.ID),
		RefundedMinor: data.Amount,
	}, nil
}

type fetchData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Channel   string `json:"channel"`
	Fees      int64  `json:"fees"`
}

func (c *paystackClient) Fetch(ctx context.Context, transactionID string) (ports.ProcessorResult, error) {
	env, err := c.do(ctx, http.MethodGet, "/transaction/"+transactionID, nil)
	if err != nil {
		return ports.ProcessorResult{}, err
	}
	if !env.Status {
		return ports.ProcessorResult{Status: false, Message: env.Message}, nil
	}
	var data fetchData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return ports.ProcessorResult{Status: false, Message: "malformed upstream response"}, nil
	}
	return ports.ProcessorResult{
		Status:          true,
		TransactionID:   transactionID,
		Channel:         data.Channel,
		FeesMinor:       data.Fees,
		ProcessorStatus: data.Status,
	}, nil
}
