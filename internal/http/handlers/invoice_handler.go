package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-payments/internal/http/response"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

// InvoiceHandler обслуживает просмотр и отправку счетов.
type InvoiceHandler struct {
	invoices *service.InvoiceService
}

func NewInvoiceHandler(invoices *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// ListInvoices GET /invoices?projectId=&status=&type=
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	in := service.ListInvoicesInput{
		Status:      c.Query("status"),
		InvoiceType: c.Query("type"),
		Limit:       limit,
		Offset:      offset,
	}
	if raw := c.Query("projectId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.InvalidInput("неверный projectId"))
			return
		}
		in.ProjectID = &id
	}

	invoices, err := h.invoices.List(c.Request.Context(), actor, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, invoices, len(invoices), limit, offset)
}

// GetInvoice GET /invoices/:number
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	inv, err := h.invoices.Get(c.Request.Context(), actor, c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"invoice": inv})
}

// SendInvoice POST /invoices/:number/send
func (h *InvoiceHandler) SendInvoice(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	inv, err := h.invoices.Send(c.Request.Context(), actor, c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"invoice": inv})
}

// ListInvoiceTransactions GET /invoices/:number/transactions
func (h *InvoiceHandler) ListInvoiceTransactions(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	txs, err := h.invoices.Transactions(c.Request.Context(), actor, c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"transactions": txs})
}

// DownloadPDF GET /invoices/:number/pdf
func (h *InvoiceHandler) DownloadPDF(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	number := c.Param("number")
	doc, err := h.invoices.RenderPDF(c.Request.Context(), actor, number)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+number+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}
