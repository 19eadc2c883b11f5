// Package billing - единственное место расчёта сумм по счетам.
package billing

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

var hundred = decimal.NewFromInt(100)

func validatePercent(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return apperror.InvalidInput("процент должен быть в диапазоне от 0 до 100")
	}
	return nil
}

// Upfront - предоплата completion-проекта: total × percent / 100.
func Upfront(total, percent decimal.Decimal) (decimal.Decimal, error) {
	if !total.IsPositive() {
		return decimal.Zero, apperror.InvalidInput("бюджет проекта должен быть больше нуля")
	}
	if err := validatePercent(percent); err != nil {
		return decimal.Zero, err
	}
	return models.Cents(total.Mul(percent).Div(hundred)), nil
}

// ManualSlice - доля бюджета за одну задачу: остаток после предоплаты, делённый на число задач.
func ManualSlice(total, percent decimal.Decimal, taskCount int) (decimal.Decimal, error) {
	if !total.IsPositive() {
		return decimal.Zero, apperror.InvalidInput("бюджет проекта должен быть больше нуля")
	}
	if taskCount <= 0 {
		return decimal.Zero, apperror.InvalidInput("количество задач должно быть больше нуля")
	}
	if err := validatePercent(percent); err != nil {
		return decimal.Zero, err
	}
	rest := total.Mul(hundred.Sub(percent)).Div(hundred)
	return models.Cents(rest.Div(decimal.NewFromInt(int64(taskCount)))), nil
}

// ManualAmount - сумма следующего ручного счёта по снимку проекта.
// Доля задачи ограничена остатком бюджета за вычетом предоплаты, а последняя задача
// забирает этот остаток целиком, чтобы счета сошлись с бюджетом до цента.
func ManualAmount(s Snapshot, percent decimal.Decimal, taskCount int) (decimal.Decimal, error) {
	slice, err := ManualSlice(s.TotalBudget, percent, taskCount)
	if err != nil {
		return decimal.Zero, err
	}

	r := Summarize(s, "")
	available := r.Remaining
	if !r.Upfront.IsPositive() {
		upfront, err := Upfront(s.TotalBudget, percent)
		if err != nil {
			return decimal.Zero, err
		}
		available = available.Sub(upfront)
	}
	if !available.IsPositive() {
		return decimal.Zero, apperror.New(apperror.ErrCodeBudgetIntegrity, "нарушена целостность бюджета проекта").
			WithDetails("бюджет на ручные счета исчерпан")
	}

	issued := 0
	for _, inv := range s.Invoices {
		if inv.InvoiceType == models.InvoiceTypeCompletionManual && inv.Status != models.InvoiceStatusCancelled {
			issued++
		}
	}
	if issued >= taskCount-1 || slice.GreaterThan(available) {
		return available, nil
	}
	return slice, nil
}

// Remaining = total − upfront − Σ manual.
func Remaining(total, upfront decimal.Decimal, manual ...decimal.Decimal) decimal.Decimal {
	rest := total.Sub(upfront)
	for _, m := range manual {
		rest = rest.Sub(m)
	}
	return models.Cents(rest)
}

// Progress - сводка по принятым задачам проекта.
type Progress struct {
	TotalTasks      int             `json:"totalTasks"`
	ApprovedTasks   int             `json:"approvedTasks"`
	PercentComplete decimal.Decimal `json:"percentComplete"`
	AllApproved     bool            `json:"allApproved"`
}

// ProjectProgress считает принятые задачи. AllApproved означает, что ни одна задача не ждёт
// приёмки, поэтому для пустого списка он истинен.
func ProjectProgress(tasks []models.Task) Progress {
	p := Progress{TotalTasks: len(tasks), PercentComplete: decimal.Zero, AllApproved: true}
	for _, t := range tasks {
		if t.Approved {
			p.ApprovedTasks++
		}
	}
	if p.TotalTasks > 0 {
		p.PercentComplete = decimal.NewFromInt(int64(p.ApprovedTasks)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(p.TotalTasks))).
			Round(2)
	}
	p.AllApproved = p.ApprovedTasks == p.TotalTasks
	return p
}
