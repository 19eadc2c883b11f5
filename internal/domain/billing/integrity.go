package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// DefaultEpsilon - допустимое расхождение при сравнении сумм.
var DefaultEpsilon = decimal.RequireFromString("0.01")

// Snapshot - состояние completion-проекта, прочитанное под блокировкой.
type Snapshot struct {
	TotalBudget decimal.Decimal
	Invoices    []models.Invoice
}

// Candidate - счёт, который собираются создать или оплатить.
// InvoiceNumber пустой, если счёт ещё не создан.
type Candidate struct {
	InvoiceNumber string
	InvoiceType   string
	Amount        decimal.Decimal
}

// Report - пересчитанный с нуля бюджет и найденные расхождения.
type Report struct {
	TotalBudget   decimal.Decimal `json:"totalBudget"`
	Upfront       decimal.Decimal `json:"upfrontAmount"`
	ManualTotal   decimal.Decimal `json:"manualTotal"`
	FinalTotal    decimal.Decimal `json:"finalTotal"`
	PaidTotal     decimal.Decimal `json:"paidTotal"`
	Remaining     decimal.Decimal `json:"remainingBudget"`
	Discrepancies []string        `json:"discrepancies"`
}

func (r Report) Valid() bool {
	return len(r.Discrepancies) == 0
}

// Err возвращает BUDGET_INTEGRITY_VIOLATION с перечнем расхождений или nil.
func (r Report) Err() error {
	if r.Valid() {
		return nil
	}
	return apperror.New(apperror.ErrCodeBudgetIntegrity, "нарушена целостность бюджета проекта").
		WithDetails(r.Discrepancies...)
}

// Summarize пересчитывает бюджет по счетам проекта, не считая кандидата.
// Отменённые счета не учитываются.
func Summarize(s Snapshot, exclude string) Report {
	r := Report{
		TotalBudget:   s.TotalBudget,
		Upfront:       decimal.Zero,
		ManualTotal:   decimal.Zero,
		FinalTotal:    decimal.Zero,
		PaidTotal:     decimal.Zero,
		Discrepancies: []string{},
	}
	var upfronts, finals int
	for _, inv := range s.Invoices {
		if inv.Status == models.InvoiceStatusCancelled {
			continue
		}
		if inv.Status == models.InvoiceStatusPaid {
			r.PaidTotal = r.PaidTotal.Add(inv.TotalAmount)
		}
		if exclude != "" && inv.InvoiceNumber == exclude {
			continue
		}
		switch inv.InvoiceType {
		case models.InvoiceTypeCompletionUpfront:
			upfronts++
			r.Upfront = r.Upfront.Add(inv.TotalAmount)
		case models.InvoiceTypeCompletionManual:
			r.ManualTotal = r.ManualTotal.Add(inv.TotalAmount)
		case models.InvoiceTypeCompletionFinal:
			finals++
			r.FinalTotal = r.FinalTotal.Add(inv.TotalAmount)
		}
	}
	r.Remaining = Remaining(s.TotalBudget, r.Upfront, r.ManualTotal, r.FinalTotal)

	if upfronts > 1 {
		r.Discrepancies = append(r.Discrepancies, fmt.Sprintf("найдено %d счетов предоплаты", upfronts))
	}
	if finals > 1 {
		r.Discrepancies = append(r.Discrepancies, fmt.Sprintf("найдено %d финальных счетов", finals))
	}
	if r.Remaining.IsNegative() {
		r.Discrepancies = append(r.Discrepancies, fmt.Sprintf("отрицательный остаток бюджета: %s", r.Remaining.StringFixed(2)))
	}
	if r.PaidTotal.Sub(s.TotalBudget).GreaterThan(DefaultEpsilon) {
		r.Discrepancies = append(r.Discrepancies,
			fmt.Sprintf("оплачено %s при бюджете %s", r.PaidTotal.StringFixed(2), s.TotalBudget.StringFixed(2)))
	}
	return r
}

// CheckIntegrity проверяет кандидата против остатка бюджета.
// Ручной счёт не может превышать остаток, финальный должен совпадать с ним с точностью epsilon.
func CheckIntegrity(s Snapshot, c Candidate, epsilon decimal.Decimal) Report {
	r := Summarize(s, c.InvoiceNumber)

	switch c.InvoiceType {
	case models.InvoiceTypeCompletionUpfront:
		if r.Upfront.IsPositive() {
			r.Discrepancies = append(r.Discrepancies, "счёт предоплаты уже существует")
		}
	case models.InvoiceTypeCompletionManual:
		if c.Amount.Sub(r.Remaining).GreaterThan(epsilon) {
			r.Discrepancies = append(r.Discrepancies,
				fmt.Sprintf("сумма %s превышает остаток бюджета %s", c.Amount.StringFixed(2), r.Remaining.StringFixed(2)))
		}
	case models.InvoiceTypeCompletionFinal:
		if r.FinalTotal.IsPositive() {
			r.Discrepancies = append(r.Discrepancies, "финальный счёт уже существует")
		}
		if c.Amount.Sub(r.Remaining).Abs().GreaterThan(epsilon) {
			r.Discrepancies = append(r.Discrepancies,
				fmt.Sprintf("финальная сумма %s не совпадает с остатком бюджета %s", c.Amount.StringFixed(2), r.Remaining.StringFixed(2)))
		}
	}
	return r
}
