package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending = "pending"
	WithdrawalStatusPaid    = "paid"
	WithdrawalStatusFailed  = "failed"
)

// Withdrawal - запрос фрилансера на вывод средств.
type Withdrawal struct {
	ID               uuid.UUID       `db:"id" json:"withdrawalId"`
	UserID           uuid.UUID       `db:"user_id" json:"userId"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Currency         string          `db:"currency" json:"currency"`
	Status           string          `db:"status" json:"status"`
	GatewayReference *string         `db:"gateway_reference" json:"gatewayReference,omitempty"`
	FailureReason    *string         `db:"failure_reason" json:"failureReason,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"requestedAt"`
	ProcessedAt      *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
}
