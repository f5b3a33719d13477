package handler

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"acoruss-gateway/internal/core/ports"
	"acoruss-gateway/pkg/apperror"
	"acoruss-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CallbackHandler serves the two unauthenticated endpoints the upstream
// processor talks to directly (C8): the browser redirect-back and the
// server-to-server webhook. Neither goes through C5 rate limiting.
type CallbackHandler struct {
	payments      ports.PaymentService
	verifier      ports.InboundWebhookVerifier
	publicPageURL string
	log           zerolog.Logger
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(payments ports.PaymentService, verifier ports.InboundWebhookVerifier, publicPageURL string, log zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{payments: payments, verifier: verifier, publicPageURL: publicPageURL, log: log}
}

// Verify handles GET /payments/verify/?reference=<ref> — the browser
// redirect-back target. It re-runs verification then redirects the user
// to the Payment's callback_url (or the public payment page).
func (h *CallbackHandler) Verify(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		c.Redirect(http.StatusFound, h.publicPageURL)
		return
	}

	payment, err := h.payments.Verify(c.Request.Context(), reference)
	if err != nil {
		h.log.Error().Err(err).Str("reference", reference).Msg("verification failed during redirect callback")
		c.Redirect(http.StatusFound, h.publicPageURL)
		return
	}

	target := h.publicPageURL
	if payment.CallbackURL != "" {
		target = appendQuery(payment.CallbackURL, "reference", payment.Reference)
		target = appendQuery(target, "status", string(payment.Status))
	}
	c.Redirect(http.StatusFound, target)
}

// Webhook handles POST /payments/webhook/ — the processor's
// server-to-server notification. Bypasses C5; secured entirely by C3's
// signature verification.
func (h *CallbackHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	signature := c.GetHeader("X-Paystack-Signature")
	if err := h.verifier.Handle(c.Request.Context(), body, signature); err != nil {
		if err == ports.ErrInvalidSignature {
			response.Error(c, apperror.ErrInvalidSignature())
			return
		}
		response.Error(c, apperror.InternalError(err))
		return
	}

	c.Status(http.StatusOK)
}

func appendQuery(rawURL, key, value string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + key + "=" + url.QueryEscape(value)
}
