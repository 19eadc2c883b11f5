package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Типы сущностей в журнале аудита.
const (
	AuditEntityInvoice    = "invoice"
	AuditEntityWallet     = "wallet"
	AuditEntityProject    = "project"
	AuditEntityTask       = "task"
	AuditEntityWithdrawal = "withdrawal"
)

// AuditEntry - запись журнала аудита о переходе состояния.
type AuditEntry struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	EntityType string         `db:"entity_type" json:"entityType"`
	EntityID   string         `db:"entity_id" json:"entityId"`
	Action     string         `db:"action" json:"action"`
	ActorID    *uuid.UUID     `db:"actor_id" json:"actorId,omitempty"`
	FromStatus *string        `db:"from_status" json:"fromStatus,omitempty"`
	ToStatus   *string        `db:"to_status" json:"toStatus,omitempty"`
	Details    types.JSONText `db:"details" json:"details,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// Статусы сверки.
const (
	ReconciliationOpen     = "open"
	ReconciliationResolved = "resolved"
)

// Reconciliation фиксирует движение денег, прошедшее через шлюз,
// но не записанное в леджер. Требует ручной сверки.
type Reconciliation struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	InvoiceNumber    *string         `db:"invoice_number" json:"invoiceNumber,omitempty"`
	WithdrawalID     *uuid.UUID      `db:"withdrawal_id" json:"withdrawalId,omitempty"`
	GatewayReference string          `db:"gateway_reference" json:"gatewayReference"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Reason           string          `db:"reason" json:"reason"`
	Status           string          `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
}
