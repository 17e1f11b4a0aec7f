// Package money centralizes the decimal price arithmetic used by the cart
// and checkout. Prices are decimals in the store currency; gateway amounts
// are integers in the smallest currency unit.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Effective returns the price a line is charged at: the sale price when one
// is present and strictly lower than the unit price, otherwise the unit price.
func Effective(unitPrice decimal.Decimal, salePrice *decimal.Decimal) decimal.Decimal {
	if salePrice != nil && salePrice.LessThan(unitPrice) {
		return *salePrice
	}
	return unitPrice
}

// LineTotal is the effective price multiplied by the quantity.
func LineTotal(unitPrice decimal.Decimal, salePrice *decimal.Decimal, quantity int) decimal.Decimal {
	return Effective(unitPrice, salePrice).Mul(decimal.NewFromInt(int64(quantity)))
}

// Paise converts a decimal amount to the smallest currency unit, rounding
// half away from zero at two decimal places first.
func Paise(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(hundred).IntPart()
}

// ParsePercent parses a human-entered percentage ("18", "12.5") into a
// multiplier fraction (0.18, 0.125).
func ParsePercent(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse percent %q: %w", raw, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("percent %q cannot be negative", raw)
	}
	return rate.Div(hundred), nil
}

// Ptr returns a pointer to the given decimal, for optional price fields.
func Ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
