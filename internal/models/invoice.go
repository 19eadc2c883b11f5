package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Статусы счёта.
const (
	InvoiceStatusDraft      = "draft"
	InvoiceStatusSent       = "sent"
	InvoiceStatusProcessing = "processing"
	InvoiceStatusPaid       = "paid"
	InvoiceStatusOnHold     = "on_hold"
	InvoiceStatusCancelled  = "cancelled"
	InvoiceStatusOverdue    = "overdue"
)

// Типы счетов.
const (
	InvoiceTypeMilestone         = "milestone"
	InvoiceTypeCompletionUpfront = "completion_upfront"
	InvoiceTypeCompletionManual  = "completion_manual"
	InvoiceTypeCompletionFinal   = "completion_final"
)

// Invoice - счёт фрилансера заказчику.
//
// ScopeKey вместе с ProjectID и InvoiceType образует ключ уникальности:
// пустая строка для upfront/final, ID этапа для milestone, ID задачи для manual.
type Invoice struct {
	InvoiceNumber  string          `db:"invoice_number" json:"invoiceNumber"`
	ProjectID      uuid.UUID       `db:"project_id" json:"projectId"`
	FreelancerID   uuid.UUID       `db:"freelancer_id" json:"freelancerId"`
	CommissionerID uuid.UUID       `db:"commissioner_id" json:"commissionerId"`
	InvoiceType    string          `db:"invoice_type" json:"invoiceType"`
	ScopeKey       string          `db:"scope_key" json:"-"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"totalAmount"`
	Currency       string          `db:"currency" json:"currency"`
	Status         string          `db:"status" json:"status"`
	CorrelationID  *uuid.UUID      `db:"correlation_id" json:"correlationId,omitempty"`
	Version        int64           `db:"version" json:"version"`
	IssuedAt       time.Time       `db:"issued_at" json:"issueDate"`
	SentAt         *time.Time      `db:"sent_at" json:"sentDate,omitempty"`
	PaidAt         *time.Time      `db:"paid_at" json:"paidDate,omitempty"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`

	PaymentDetails PaymentDetails `json:"paymentDetails"`
	Milestones     []LineItem     `json:"milestones"`
}

// PaymentDetails хранит разбивку оплаты: комиссия платформы и сумма фрилансеру.
type PaymentDetails struct {
	PlatformFee      decimal.Decimal `db:"platform_fee" json:"platformFee"`
	FreelancerAmount decimal.Decimal `db:"freelancer_amount" json:"freelancerAmount"`
}

// LineItem - строка счёта (этап или задача).
type LineItem struct {
	InvoiceNumber string          `db:"invoice_number" json:"-"`
	MilestoneID   *uuid.UUID      `db:"milestone_id" json:"milestoneId,omitempty"`
	TaskID        *uuid.UUID      `db:"task_id" json:"taskId,omitempty"`
	Description   string          `db:"description" json:"description"`
	Rate          decimal.Decimal `db:"rate" json:"rate"`
}

// LineItemsTotal суммирует ставки строк счёта.
func (i *Invoice) LineItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range i.Milestones {
		total = total.Add(item.Rate)
	}
	return total
}

// IsCompletion сообщает, относится ли счёт к проекту с оплатой по завершении.
func (i *Invoice) IsCompletion() bool {
	switch i.InvoiceType {
	case InvoiceTypeCompletionUpfront, InvoiceTypeCompletionManual, InvoiceTypeCompletionFinal:
		return true
	}
	return false
}
