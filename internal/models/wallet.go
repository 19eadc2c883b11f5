package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Типы транзакций.
const (
	TransactionTypePayment           = "payment"
	TransactionTypePaymentInitiation = "payment_initiation"
	TransactionTypeWithdrawal        = "withdrawal"
	TransactionTypeWithdrawalHold    = "withdrawal_hold"
	TransactionTypeWithdrawalRelease = "withdrawal_release"
)

// Статусы транзакций.
const (
	TransactionStatusProcessing = "processing"
	TransactionStatusCompleted  = "completed"
	TransactionStatusFailed     = "failed"
)

// Wallet - кошелёк пользователя в одной валюте.
type Wallet struct {
	UserID             uuid.UUID       `db:"user_id" json:"userId"`
	Currency           string          `db:"currency" json:"currency"`
	AvailableBalance   decimal.Decimal `db:"available_balance" json:"availableBalance"`
	PendingWithdrawals decimal.Decimal `db:"pending_withdrawals" json:"pendingWithdrawals"`
	TotalWithdrawn     decimal.Decimal `db:"total_withdrawn" json:"totalWithdrawn"`
	LifetimeEarnings   decimal.Decimal `db:"lifetime_earnings" json:"lifetimeEarnings"`
	Holds              int             `db:"holds" json:"holds"`
	Version            int64           `db:"version" json:"version"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updatedAt"`
}

// NewWallet создаёт пустой кошелёк.
func NewWallet(userID uuid.UUID, currency string) *Wallet {
	return &Wallet{
		UserID:             userID,
		Currency:           currency,
		AvailableBalance:   decimal.Zero,
		PendingWithdrawals: decimal.Zero,
		TotalWithdrawn:     decimal.Zero,
		LifetimeEarnings:   decimal.Zero,
	}
}

// Transaction - неизменяемая запись о движении денег.
type Transaction struct {
	ID             uuid.UUID       `db:"id" json:"transactionId"`
	UserID         uuid.UUID       `db:"user_id" json:"userId"`
	InvoiceNumber  *string         `db:"invoice_number" json:"invoiceNumber,omitempty"`
	WithdrawalID   *uuid.UUID      `db:"withdrawal_id" json:"withdrawalId,omitempty"`
	Type           string          `db:"type" json:"type"`
	Status         string          `db:"status" json:"status"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Currency       string          `db:"currency" json:"currency"`
	CorrelationID  uuid.UUID       `db:"correlation_id" json:"correlationId"`
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	Metadata       types.JSONText  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"timestamp"`
}
