package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"acoruss-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// replayWindow bounds how long a (event, signature) pair is remembered for
// dedup purposes (§8 property 8).
const replayWindow = 24 * time.Hour

// inboundEvent is the shape common to every upstream notification; only the
// fields this verifier dispatches on are parsed, the rest pass through
// untouched inside Data for the per-event structs below.
type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type chargeSuccessData struct {
	Reference string `json:"reference"`
	ID        int64  `json:"id"`
	Channel   string `json:"channel"`
	Fees      int64  `json:"fees"`
}

type refundProcessedData struct {
	ID          int64 `json:"id"`
	Amount      int64 `json:"amount"`
	Transaction struct {
		Reference string `json:"reference"`
	} `json:"transaction"`
}

// inboundWebhookVerifier implements ports.InboundWebhookVerifier (C3).
type inboundWebhookVerifier struct {
	sigSvc         ports.SignatureService
	upstreamSecret string
	payments       ports.PaymentService
	replay         ports.ReplayCache
	log            zerolog.Logger
}

// NewInboundWebhookVerifier creates the C3 verifier. upstreamSecret is the
// shared secret configured with the upstream processor for signing webhook
// bodies — distinct from any per-tenant outbound secret. replay may be nil,
// in which case no dedup is performed.
func NewInboundWebhookVerifier(sigSvc ports.SignatureService, upstreamSecret string, payments ports.PaymentService, replay ports.ReplayCache, log zerolog.Logger) ports.InboundWebhookVerifier {
	return &inboundWebhookVerifier{sigSvc: sigSvc, upstreamSecret: upstreamSecret, payments: payments, replay: replay, log: log}
}

// Handle verifies rawBody against signatureHex, then dispatches by event
// type. It always returns nil (signalling "respond 200") once the signature
// has checked out, regardless of what happens during resolution, so the
// upstream does not spuriously retry on business-logic gaps (§4.3).
func (v *inboundWebhookVerifier) Handle(ctx context.Context, rawBody []byte, signatureHex string) error {
	if !v.sigSvc.Verify(v.upstreamSecret, rawBody, signatureHex) {
		return ports.ErrInvalidSignature
	}

	var evt inboundEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		v.log.Warn().Err(err).Msg("inbound webhook: unparseable body after valid signature")
		return nil
	}

	if v.replay != nil {
		fresh, err := v.replay.CheckAndSet(ctx, replayKey(evt.Event, signatureHex), replayWindow)
		if err != nil {
			v.log.Warn().Err(err).Msg("inbound webhook: replay cache unavailable, processing anyway")
		} else if !fresh {
			v.log.Debug().Str("event", evt.Event).Msg("inbound webhook: duplicate delivery ignored")
			return nil
		}
	}

	switch evt.Event {
	case "charge.success":
		v.handleChargeSuccess(ctx, evt.Data)
	case "refund.processed":
		v.handleRefundProcessed(ctx, evt.Data)
	default:
		v.log.Debug().Str("event", evt.Event).Msg("inbound webhook: no-op event")
	}
	return nil
}

func (v *inboundWebhookVerifier) handleChargeSuccess(ctx context.Context, raw json.RawMessage) {
	var data chargeSuccessData
	if err := json.Unmarshal(raw, &data); err != nil || data.Reference == "" {
		v.log.Warn().Err(err).Msg("inbound webhook: charge.success missing reference")
		return
	}

	err := v.payments.HandleInboundChargeSuccess(ctx, data.Reference, strconv.FormatInt(data.ID, 10), data.Channel, data.Fees)
	if err != nil {
		v.log.Warn().Err(err).Str("reference", data.Reference).Msg("inbound webhook: charge.success resolution failed")
	}
}

func (v *inboundWebhookVerifier) handleRefundProcessed(ctx context.Context, raw json.RawMessage) {
	var data refundProcessedData
	if err := json.Unmarshal(raw, &data); err != nil || data.Transaction.Reference == "" {
		v.log.Warn().Err(err).Msg("inbound webhook: refund.processed missing transaction reference")
		return
	}

	err := v.payments.HandleInboundRefundProcessed(ctx, data.Transaction.Reference, data.Amount, strconv.FormatInt(data.ID, 10))
	if err != nil {
		v.log.Warn().Err(err).Str("reference", data.Transaction.Reference).Msg("inbound webhook: refund.processed resolution failed")
	}
}

func replayKey(event, signatureHex string) string {
	sum := sha256.Sum256([]byte(event + ":" + signatureHex))
	return hex.EncodeToString(sum[:])
}
