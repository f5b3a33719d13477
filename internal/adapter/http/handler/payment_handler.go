package handler

import (
	"strconv"

	"acoruss-gateway/internal/adapter/http/dto"
	"acoruss-gateway/internal/adapter/http/middleware"
	"acoruss-gateway/internal/core/domain"
	"acoruss-gateway/internal/core/ports"
	"acoruss-gateway/pkg/apperror"
	"acoruss-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// PaymentHandler serves the public payment API surface (C7). Reads go
// straight to the repository; writes go through the lifecycle engine.
type PaymentHandler struct {
	payments ports.PaymentService
	repo     ports.PaymentRepository
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payments ports.PaymentService, repo ports.PaymentRepository) *PaymentHandler {
	return &PaymentHandler{payments: payments, repo: repo}
}

// Initiate handles POST /payments/initiate/.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	tenant := middleware.TenantFromContext(c)
	if tenant == nil {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}

	var req dto.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ValidationFields(map[string]string{"body": err.Error()}))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = tenant.DefaultCallbackURL
	}

	payment, err := h.payments.Initiate(c.Request.Context(), ports.InitiatePaymentInput{
		Tenant:         tenant,
		Email:          req.Email,
		Name:           req.Name,
		Amount:         amount,
		Currency:       req.Currency,
		Description:    req.Description,
		ServiceRef:     req.ServiceRef,
		CallbackURL:    callbackURL,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
		ClientIP:       c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.InitiatePaymentResponse{
		Reference:        payment.Reference,
		AuthorizationURL: payment.AuthorizationURL,
		CallbackURL:      payment.CallbackURL,
	})
}

// Status handles GET /payments/<ref>/. Cross-tenant access returns 404,
// never 403, so as not to leak the existence of another tenant's payment.
func (h *PaymentHandler) Status(c *gin.Context) {
	tenant := middleware.TenantFromContext(c)
	if tenant == nil {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}

	payment, err := h.repo.GetByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}
	if payment == nil || !payment.HasOwningTenant() || *payment.Tenant != tenant.ID {
		response.Error(c, apperror.ErrPaymentNotFound())
		return
	}

	response.OK(c, toPaymentResponse(payment))
}

// List handles GET /payments/.
func (h *PaymentHandler) List(c *gin.Context) {
	tenant := middleware.TenantFromContext(c)
	if tenant == nil {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}

	page := atoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	perPage := atoiDefault(c.Query("per_page"), defaultPerPage)
	if perPage < 1 || perPage > maxPerPage {
		perPage = defaultPerPage
	}

	params := ports.PaymentListParams{
		TenantID: tenant.ID,
		Page:     page,
		PerPage:  perPage,
	}
	if s := c.Query("status"); s != "" {
		status := domain.PaymentStatus(s)
		params.Status = &status
	}
	if e := c.Query("email"); e != "" {
		params.Email = &e
	}

	payments, total, err := h.repo.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	items := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		items = append(items, toPaymentResponse(&payments[i]))
	}

	pages := total / int64(perPage)
	if total%int64(perPage) != 0 {
		pages++
	}

	response.OK(c, dto.PaymentListResponse{
		Data: items,
		Meta: dto.PaymentListMeta{
			Total:   total,
			Page:    page,
			PerPage: perPage,
			Pages:   pages,
		},
	})
}

// Refund handles POST /payments/<ref>/refund/.
func (h *PaymentHandler) Refund(c *gin.Context) {
	tenant := middleware.TenantFromContext(c)
	if tenant == nil {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}

	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ValidationFields(map[string]string{"body": err.Error()}))
		return
	}
	dto.SanitizeStruct(&req)

	var amount *decimal.Decimal
	if req.Amount != nil && *req.Amount != "" {
		a, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			response.Error(c, apperror.ErrInvalidAmount())
			return
		}
		amount = &a
	}

	payment, err := h.payments.Refund(c.Request.Context(), tenant.ID, c.Param("reference"), amount, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toPaymentResponse(payment))
}

func toPaymentResponse(p *domain.Payment) dto.PaymentResponse {
	return dto.PaymentResponse{
		Reference:        p.Reference,
		ServiceReference: p.ServiceRef,
		Email:            p.Email,
		Name:             p.Name,
		Amount:           p.Amount.StringFixed(2),
		Currency:         p.Currency,
		Fees:             p.Fees.StringFixed(2),
		RefundedAmount:   p.RefundedAmount.StringFixed(2),
		Status:           string(p.Status),
		RefundStatus:     string(p.RefundStatus),
		Channel:          p.Channel,
		Description:      p.Description,
		AuthorizationURL: p.AuthorizationURL,
		CreatedAt:        p.CreatedAt.Format(timeLayout),
		UpdatedAt:        p.UpdatedAt.Format(timeLayout),
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
