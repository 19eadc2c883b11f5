package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-payments/internal/http/response"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

type PaymentHandler struct {
	payments *service.PaymentService
	invoices *service.InvoiceService
}

func NewPaymentHandler(payments *service.PaymentService, invoices *service.InvoiceService) *PaymentHandler {
	return &PaymentHandler{payments: payments, invoices: invoices}
}

type invoicePaymentRequest struct {
	InvoiceNumber  string `json:"invoiceNumber" binding:"required"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type projectPaymentRequest struct {
	ProjectID      string `json:"projectId" binding:"required,uuid"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type manualInvoiceRequest struct {
	ProjectID string `json:"projectId" binding:"required,uuid"`
	TaskID    string `json:"taskId" binding:"required,uuid"`
}

type calculateRequest struct {
	CalculationType   string           `json:"calculationType" binding:"required"`
	ProjectID         *string          `json:"projectId" binding:"omitempty,uuid"`
	TotalBudget       *decimal.Decimal `json:"totalBudget"`
	TotalTasks        *int             `json:"totalTasks"`
	UpfrontPercentage *decimal.Decimal `json:"upfrontPercentage"`
}

// Trigger POST /payments/trigger
func (h *PaymentHandler) Trigger(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req invoicePaymentRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.payments.Trigger(c.Request.Context(), actor, req.InvoiceNumber, common.IdempotencyKey(c, req.IdempotencyKey))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Execute POST /payments/execute
func (h *PaymentHandler) Execute(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req invoicePaymentRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.payments.Execute(c.Request.Context(), actor, req.InvoiceNumber, common.IdempotencyKey(c, req.IdempotencyKey))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// ExecuteUpfront POST /payments/completion/execute-upfront
func (h *PaymentHandler) ExecuteUpfront(c *gin.Context) {
	h.projectPayment(c, h.payments.ExecuteUpfront)
}

// ExecuteFinal POST /payments/completion/execute-final
func (h *PaymentHandler) ExecuteFinal(c *gin.Context) {
	h.projectPayment(c, h.payments.ExecuteFinal)
}

type projectPaymentFunc func(ctx context.Context, actor service.Actor, projectID uuid.UUID, idempotencyKey string) (*service.PaymentResult, error)

func (h *PaymentHandler) projectPayment(c *gin.Context, pay projectPaymentFunc) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req projectPaymentRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	res, err := pay(c.Request.Context(), actor, uuid.MustParse(req.ProjectID), common.IdempotencyKey(c, req.IdempotencyKey))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Calculate POST /payments/completion/calculate
func (h *PaymentHandler) Calculate(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req calculateRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	in := service.CalculateInput{
		CalculationType:   req.CalculationType,
		TotalBudget:       req.TotalBudget,
		TotalTasks:        req.TotalTasks,
		UpfrontPercentage: req.UpfrontPercentage,
	}
	if req.ProjectID != nil {
		id := uuid.MustParse(*req.ProjectID)
		in.ProjectID = &id
	}

	calc, err := h.payments.Calculate(c.Request.Context(), actor, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, calc)
}

// CreateManualInvoice POST /payments/completion/manual-invoice
func (h *PaymentHandler) CreateManualInvoice(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req manualInvoiceRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	inv, err := h.invoices.CreateManualInvoice(c.Request.Context(), actor, uuid.MustParse(req.ProjectID), uuid.MustParse(req.TaskID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"invoice": inv})
}
