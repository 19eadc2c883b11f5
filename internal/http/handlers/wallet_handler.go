package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-payments/internal/http/response"
	"github.com/ignatzorin/freelance-payments/internal/service"
)

// WalletHandler обслуживает кошелёк, историю операций и вывод средств.
type WalletHandler struct {
	wallets *service.WalletService
}

func NewWalletHandler(wallets *service.WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

type withdrawRequest struct {
	Amount       *decimal.Decimal `json:"amount" binding:"required"`
	Currency     string           `json:"currency" binding:"omitempty,len=3"`
	WithdrawalID *string          `json:"withdrawalId" binding:"omitempty,uuid"`
}

// GetWallet GET /payments/wallet?currency=USD
func (h *WalletHandler) GetWallet(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	wallet, err := h.wallets.GetWallet(c.Request.Context(), actor, c.Query("currency"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"wallet": wallet})
}

// ListTransactions GET /payments/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	txs, err := h.wallets.ListTransactions(c.Request.Context(), actor, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, txs, len(txs), limit, offset)
}

// Withdraw POST /withdraw
func (h *WalletHandler) Withdraw(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req withdrawRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	in := service.WithdrawalInput{Amount: *req.Amount, Currency: req.Currency}
	if req.WithdrawalID != nil {
		id := uuid.MustParse(*req.WithdrawalID)
		in.WithdrawalID = &id
	}

	res, err := h.wallets.RequestWithdrawal(c.Request.Context(), actor, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// ListWithdrawals GET /withdrawals
func (h *WalletHandler) ListWithdrawals(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	items, err := h.wallets.ListWithdrawals(c.Request.Context(), actor, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, items, len(items), limit, offset)
}

// GetWithdrawal GET /withdrawals/:id
func (h *WalletHandler) GetWithdrawal(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	w, err := h.wallets.GetWithdrawal(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"withdrawal": w})
}
