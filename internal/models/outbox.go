package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// События, публикуемые через outbox.
const (
	EventInvoiceCreated       = "invoice.created"
	EventInvoiceSent          = "invoice.sent"
	EventInvoiceProcessing    = "invoice.processing"
	EventInvoicePaid          = "invoice.paid"
	EventPaymentSent          = "payment.sent"
	EventProjectActivated     = "project.activated"
	EventProjectCompleted     = "project.completed"
	EventProjectReadyForFinal = "project.ready_for_final_payment"
	EventTaskSubmitted        = "task.submitted"
	EventTaskApproved         = "task.approved"
	EventTaskRejected         = "task.rejected"
	EventWithdrawalPaid       = "withdrawal.paid"
)

// Статусы доставки события.
const (
	OutboxStatusPending   = "pending"
	OutboxStatusDelivered = "delivered"
	OutboxStatusDead      = "dead"
)

// OutboxEvent - событие, записанное в той же транзакции, что и изменение денег.
type OutboxEvent struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	EventType     string         `db:"event_type" json:"eventType"`
	RecipientID   uuid.UUID      `db:"recipient_id" json:"recipientId"`
	Payload       types.JSONText `db:"payload" json:"payload"`
	Status        string         `db:"status" json:"status"`
	Attempts      int            `db:"attempts" json:"attempts"`
	LastError     *string        `db:"last_error" json:"lastError,omitempty"`
	NextAttemptAt time.Time      `db:"next_attempt_at" json:"nextAttemptAt"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	DeliveredAt   *time.Time     `db:"delivered_at" json:"deliveredAt,omitempty"`
}
