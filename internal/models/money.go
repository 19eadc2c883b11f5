package models

import "github.com/shopspring/decimal"

func init() {
	// UI ожидает суммы числами, а не строками.
	decimal.MarshalJSONWithoutQuotes = true
}

// Cents округляет сумму до копеек (центов).
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
