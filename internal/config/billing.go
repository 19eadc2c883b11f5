package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// BillingPolicy - параметры расчёта сумм и поведения mock-шлюза.
type BillingPolicy struct {
	UpfrontPercent     decimal.Decimal `yaml:"upfront_percent"`
	PlatformFeePercent decimal.Decimal `yaml:"platform_fee_percent"`
	DefaultCurrency    string          `yaml:"default_currency"`
	RoundingEpsilon    decimal.Decimal `yaml:"rounding_epsilon"`
	MinWithdrawal      decimal.Decimal `yaml:"min_withdrawal"`
	Gateway            GatewayPolicy   `yaml:"gateway"`
}

type GatewayPolicy struct {
	PaymentFailureRate    float64 `yaml:"payment_failure_rate"`
	WithdrawalFailureRate float64 `yaml:"withdrawal_failure_rate"`
}

// DefaultBillingPolicy: предоплата 12%, комиссия 0%, отказы шлюза 5% и 2%.
func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		UpfrontPercent:     decimal.NewFromInt(12),
		PlatformFeePercent: decimal.Zero,
		DefaultCurrency:    "USD",
		RoundingEpsilon:    decimal.RequireFromString("0.01"),
		MinWithdrawal:      decimal.RequireFromString("1.00"),
		Gateway: GatewayPolicy{
			PaymentFailureRate:    0.05,
			WithdrawalFailureRate: 0.02,
		},
	}
}

// LoadBillingPolicy читает YAML поверх значений по умолчанию.
// Пустой путь или отсутствующий файл - значения по умолчанию.
func LoadBillingPolicy(path string) (BillingPolicy, error) {
	policy := DefaultBillingPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return policy, nil
		}
		return policy, fmt.Errorf("config: не удалось прочитать %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("config: некорректный YAML в %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return policy, err
	}
	return policy, nil
}

func (p BillingPolicy) Validate() error {
	hundred := decimal.NewFromInt(100)
	switch {
	case p.UpfrontPercent.IsNegative() || p.UpfrontPercent.GreaterThanOrEqual(hundred):
		return fmt.Errorf("config: upfront_percent должен быть в диапазоне [0, 100)")
	case p.PlatformFeePercent.IsNegative() || p.PlatformFeePercent.GreaterThanOrEqual(hundred):
		return fmt.Errorf("config: platform_fee_percent должен быть в диапазоне [0, 100)")
	case len(p.DefaultCurrency) != 3:
		return fmt.Errorf("config: default_currency должен быть трёхбуквенным кодом")
	case !p.RoundingEpsilon.IsPositive():
		return fmt.Errorf("config: rounding_epsilon должен быть положительным")
	case p.MinWithdrawal.IsNegative():
		return fmt.Errorf("config: min_withdrawal не может быть отрицательным")
	case p.Gateway.PaymentFailureRate < 0 || p.Gateway.PaymentFailureRate > 1,
		p.Gateway.WithdrawalFailureRate < 0 || p.Gateway.WithdrawalFailureRate > 1:
		return fmt.Errorf("config: вероятность отказа шлюза должна быть в диапазоне [0, 1]")
	}
	return nil
}
