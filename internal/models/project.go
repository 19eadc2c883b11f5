package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Способы выставления счетов.
const (
	InvoicingMilestone  = "milestone"
	InvoicingCompletion = "completion"
)

// Статусы проекта.
const (
	ProjectStatusPending   = "pending"
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
	ProjectStatusCancelled = "cancelled"
)

// Project описывает проект между заказчиком и фрилансером.
type Project struct {
	ID              uuid.UUID       `db:"id" json:"projectId"`
	CommissionerID  uuid.UUID       `db:"commissioner_id" json:"commissionerId"`
	FreelancerID    *uuid.UUID      `db:"freelancer_id" json:"freelancerId,omitempty"`
	Title           string          `db:"title" json:"title"`
	InvoicingMethod string          `db:"invoicing_method" json:"invoicingMethod"`
	TotalBudget     decimal.Decimal `db:"total_budget" json:"totalBudget"`
	Currency        string          `db:"currency" json:"currency"`
	UpfrontPercent  decimal.Decimal `db:"upfront_percent" json:"upfrontPercentage"`
	Status          string          `db:"status" json:"status"`
	Version         int64           `db:"version" json:"version"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	ActivatedAt     *time.Time      `db:"activated_at" json:"activatedAt,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// IsCompletion сообщает, оплачивается ли проект по завершении.
func (p *Project) IsCompletion() bool {
	return p.InvoicingMethod == InvoicingCompletion
}

// HasFreelancer проверяет, что на проект назначен именно этот фрилансер.
func (p *Project) HasFreelancer(userID uuid.UUID) bool {
	return p.FreelancerID != nil && *p.FreelancerID == userID
}

// Milestone - этап проекта с фиксированной ставкой.
type Milestone struct {
	ID        uuid.UUID       `db:"id" json:"milestoneId"`
	ProjectID uuid.UUID       `db:"project_id" json:"projectId"`
	Title     string          `db:"title" json:"title"`
	Amount    decimal.Decimal `db:"amount" json:"rate"`
	Position  int             `db:"position" json:"position"`
}
