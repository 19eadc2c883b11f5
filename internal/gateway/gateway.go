// Package gateway описывает внешний платёжный шлюз и его mock-реализацию.
package gateway

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrDeclined - шлюз отказал в операции, деньги не двигались.
var ErrDeclined = errors.New("gateway: operation declined")

type ChargeRequest struct {
	InvoiceNumber string
	PayerID       uuid.UUID
	PayeeID       uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	CorrelationID uuid.UUID
}

type PayoutRequest struct {
	WithdrawalID uuid.UUID
	UserID       uuid.UUID
	Amount       decimal.Decimal
	Currency     string
}

// Receipt - подтверждение шлюза. После его получения операция считается проведённой.
type Receipt struct {
	Reference   string
	ProcessedAt time.Time
}

type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Receipt, error)
	Payout(ctx context.Context, req PayoutRequest) (Receipt, error)
}

// MockGateway имитирует сетевую задержку и случайные отказы.
type MockGateway struct {
	latency               time.Duration
	paymentFailureRate    float64
	withdrawalFailureRate float64
	roll                  func() float64
}

type Option func(*MockGateway)

// WithRoll подменяет генератор случайных чисел (для тестов).
func WithRoll(roll func() float64) Option {
	return func(g *MockGateway) { g.roll = roll }
}

func NewMockGateway(latency time.Duration, paymentFailureRate, withdrawalFailureRate float64, opts ...Option) *MockGateway {
	g := &MockGateway{
		latency:               latency,
		paymentFailureRate:    paymentFailureRate,
		withdrawalFailureRate: withdrawalFailureRate,
		roll:                  rand.Float64,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	return g.process(ctx, "pay_", g.paymentFailureRate, req.Amount)
}

func (g *MockGateway) Payout(ctx context.Context, req PayoutRequest) (Receipt, error) {
	return g.process(ctx, "po_", g.withdrawalFailureRate, req.Amount)
}

func (g *MockGateway) process(ctx context.Context, prefix string, failureRate float64, amount decimal.Decimal) (Receipt, error) {
	if !amount.IsPositive() {
		return Receipt{}, ErrDeclined
	}
	if err := sleep(ctx, g.latency); err != nil {
		return Receipt{}, err
	}
	if g.roll() < failureRate {
		return Receipt{}, ErrDeclined
	}
	return Receipt{
		Reference:   prefix + uuid.NewString(),
		ProcessedAt: time.Now().UTC(),
	}, nil
}

// sleep ждёт d или отмены контекста.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
