// Package ledger содержит чистые операции над кошельком.
// Функции не меняют входной кошелёк и не возвращают ошибок для нарушений
// бизнес-правил: результат описывается через Outcome.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

type Reason string

const (
	ReasonNone                Reason = ""
	ReasonInvalidAmount       Reason = "INVALID_AMOUNT"
	ReasonInsufficientFunds   Reason = "INSUFFICIENT_FUNDS"
	ReasonInsufficientPending Reason = "INSUFFICIENT_PENDING"
)

// Outcome - новое состояние кошелька и признак успеха.
// При OK == false Wallet совпадает с исходным состоянием.
type Outcome struct {
	Wallet models.Wallet
	OK     bool
	Reason Reason
}

func ok(w models.Wallet) Outcome {
	return Outcome{Wallet: w, OK: true}
}

func rejected(w models.Wallet, reason Reason) Outcome {
	return Outcome{Wallet: w, Reason: reason}
}

// Credit зачисляет оплату: растут доступный баланс и заработок за всё время.
func Credit(w models.Wallet, amount decimal.Decimal) Outcome {
	if !amount.IsPositive() {
		return rejected(w, ReasonInvalidAmount)
	}
	w.AvailableBalance = models.Cents(w.AvailableBalance.Add(amount))
	w.LifetimeEarnings = models.Cents(w.LifetimeEarnings.Add(amount))
	return ok(w)
}

// Hold переводит сумму из доступного баланса в ожидающие выводы.
func Hold(w models.Wallet, amount decimal.Decimal) Outcome {
	if !amount.IsPositive() {
		return rejected(w, ReasonInvalidAmount)
	}
	if amount.GreaterThan(w.AvailableBalance) {
		return rejected(w, ReasonInsufficientFunds)
	}
	w.AvailableBalance = models.Cents(w.AvailableBalance.Sub(amount))
	w.PendingWithdrawals = models.Cents(w.PendingWithdrawals.Add(amount))
	w.Holds++
	return ok(w)
}

// FinalizeWithdrawal списывает удержание: pending уменьшается, totalWithdrawn растёт.
// Доступный баланс не меняется.
func FinalizeWithdrawal(w models.Wallet, amount decimal.Decimal) Outcome {
	if !amount.IsPositive() {
		return rejected(w, ReasonInvalidAmount)
	}
	if amount.GreaterThan(w.PendingWithdrawals) {
		return rejected(w, ReasonInsufficientPending)
	}
	w.PendingWithdrawals = models.Cents(w.PendingWithdrawals.Sub(amount))
	w.TotalWithdrawn = models.Cents(w.TotalWithdrawn.Add(amount))
	if w.Holds > 0 {
		w.Holds--
	}
	return ok(w)
}
