package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/domain/billing"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// Виды расчётов калькулятора.
const (
	CalculationUpfront         = "upfront"
	CalculationManualInvoice   = "manual_invoice"
	CalculationRemainingBudget = "remaining_budget"
	CalculationValidateState   = "validate_state"
	CalculationProjectProgress = "project_progress"
)

// CalculateInput - параметры расчёта. Значения, не заданные явно, берутся из проекта.
type CalculateInput struct {
	CalculationType   string
	ProjectID         *uuid.UUID
	TotalBudget       *decimal.Decimal
	TotalTasks        *int
	UpfrontPercentage *decimal.Decimal
}

type Calculation struct {
	CalculationType   string            `json:"calculationType"`
	TotalBudget       decimal.Decimal   `json:"totalBudget"`
	UpfrontPercentage decimal.Decimal   `json:"upfrontPercentage"`
	UpfrontAmount     *decimal.Decimal  `json:"upfrontAmount,omitempty"`
	RemainingAmount   *decimal.Decimal  `json:"remainingAfterUpfront,omitempty"`
	AmountPerTask     *decimal.Decimal  `json:"amountPerTask,omitempty"`
	TotalTasks        *int              `json:"totalTasks,omitempty"`
	Valid             *bool             `json:"valid,omitempty"`
	Report            *billing.Report   `json:"report,omitempty"`
	Progress          *billing.Progress `json:"progress,omitempty"`
}

// Calculate выполняет расчёт без изменения данных.
func (s *PaymentService) Calculate(ctx context.Context, actor Actor, in CalculateInput) (*Calculation, error) {
	var (
		project *models.Project
		tasks   []models.Task
	)
	if in.ProjectID != nil {
		p, err := s.store.Projects().GetByID(ctx, *in.ProjectID)
		if err != nil {
			return nil, err
		}
		if !canViewProject(actor, p) {
			return nil, apperror.ErrForbidden
		}
		project = p
		if tasks, err = s.store.Tasks().ListByProject(ctx, p.ID); err != nil {
			return nil, err
		}
	}

	out := &Calculation{CalculationType: in.CalculationType, UpfrontPercentage: s.invoices.policy.UpfrontPercent}
	switch {
	case in.UpfrontPercentage != nil:
		out.UpfrontPercentage = *in.UpfrontPercentage
	case project != nil:
		out.UpfrontPercentage = project.UpfrontPercent
	}
	switch {
	case in.TotalBudget != nil:
		out.TotalBudget = *in.TotalBudget
	case project != nil:
		out.TotalBudget = project.TotalBudget
	}

	requireProject := func() error {
		if project == nil {
			return apperror.InvalidInput("для этого расчёта нужен projectId")
		}
		return nil
	}

	switch in.CalculationType {
	case CalculationUpfront:
		amount, err := billing.Upfront(out.TotalBudget, out.UpfrontPercentage)
		if err != nil {
			return nil, err
		}
		rest := billing.Remaining(out.TotalBudget, amount)
		out.UpfrontAmount, out.RemainingAmount = &amount, &rest

	case CalculationManualInvoice:
		count := len(tasks)
		if in.TotalTasks != nil {
			count = *in.TotalTasks
		}
		slice, err := billing.ManualSlice(out.TotalBudget, out.UpfrontPercentage, count)
		if err != nil {
			return nil, err
		}
		out.AmountPerTask, out.TotalTasks = &slice, &count

	case CalculationRemainingBudget, CalculationValidateState:
		if err := requireProject(); err != nil {
			return nil, err
		}
		invoices, err := s.store.Invoices().ListByProject(ctx, project.ID)
		if err != nil {
			return nil, err
		}
		report := billing.Summarize(billing.Snapshot{TotalBudget: project.TotalBudget, Invoices: invoices}, "")
		valid := report.Valid()
		out.TotalBudget = project.TotalBudget
		out.Report = &report
		if in.CalculationType == CalculationValidateState {
			out.Valid = &valid
			progress := billing.ProjectProgress(tasks)
			out.Progress = &progress
		}

	case CalculationProjectProgress:
		if err := requireProject(); err != nil {
			return nil, err
		}
		progress := billing.ProjectProgress(tasks)
		out.Progress = &progress

	default:
		return nil, apperror.InvalidInput("неизвестный вид расчёта: " + in.CalculationType)
	}
	return out, nil
}
