package integration

import (
	"context"
	"sync"

	"acoruss-gateway/internal/core/ports"
)

// fakeProcessorClient implements ports.ProcessorClient without reaching the
// network, standing in for the upstream processor in the end-to-end tests.
// By default every call succeeds; individual references can be pre-loaded
// with a specific verify outcome via setVerifyStatus.
type fakeProcessorClient struct {
	mu           sync.Mutex
	verifyStatus map[string]string // reference -> processor status (default "success")
}

func newFakeProcessorClient() *fakeProcessorClient {
	return &fakeProcessorClient{verifyStatus: make(map[string]string)}
}

func (f *fakeProcessorClient) setVerifyStatus(reference, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyStatus[reference] = status
}

func (f *fakeProcessorClient) Initiate(ctx context.Context, req ports.InitiateRequest) (ports.ProcessorResult, error) {
	return ports.ProcessorResult{
		Status:           true,
		AuthorizationURL: "https://upstream.example.com/authorize/" + req.Reference,
	}, nil
}

func (f *fakeProcessorClient) Verify(ctx context.Context, reference string) (ports.ProcessorResult, error) {
	f.mu.Lock()
	status, ok := f.verifyStatus[reference]
	f.mu.Unlock()
	if !ok {
		status = "success"
	}
	return ports.ProcessorResult{
		Status:          true,
		TransactionID:   "txn_" + reference,
		Channel:         "card",
		FeesMinor:       100,
		ProcessorStatus: status,
	}, nil
}

func (f *fakeProcessorClient) Refund(ctx context.Context, reference string, amountMinor *int64, reason string) (ports.ProcessorResult, error) {
	refunded := int64(0)
	if amountMinor != nil {
		refunded = *amountMinor
	}
	return ports.ProcessorResult{Status: true, RefundID: "rfd_" + reference, RefundedMinor: refunded}, nil
}

func (f *fakeProcessorClient) Fetch(ctx context.Context, transactionID string) (ports.ProcessorResult, error) {
	return ports.ProcessorResult{Status: true, TransactionID: transactionID, ProcessorStatus: "success"}, nil
}
