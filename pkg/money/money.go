package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNegativeQuantity is returned for quantities below zero. Zero is a valid
// quantity and never an error.
var ErrNegativeQuantity = errors.New("negative_quantity")

var hundred = decimal.NewFromInt(100)

// Zero returns the additive identity.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// Parse reads a decimal amount from its string form. Empty input is zero.
func Parse(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

// LineTotal computes unitPrice * qty without intermediate rounding.
func LineTotal(unitPrice decimal.Decimal, qty int64) (decimal.Decimal, error) {
	if qty < 0 {
		return decimal.Zero, ErrNegativeQuantity
	}
	return unitPrice.Mul(decimal.NewFromInt(qty)), nil
}

// Percent returns value * pct / 100 at full precision.
func Percent(value, pct decimal.Decimal) decimal.Decimal {
	return value.Mul(pct).Div(hundred)
}

// Convert applies an exchange rate to an amount at full precision.
func Convert(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate)
}

// Round2 rounds half up to two fractional digits. Only call at display or
// persistence boundaries; intermediate pipeline math stays unrounded to avoid
// cumulative drift.
func Round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

// Display renders an amount with exactly two fractional digits.
func Display(value decimal.Decimal) string {
	return value.StringFixed(2)
}

// ClampNonNegative returns zero when value is negative and reports whether
// clamping happened.
func ClampNonNegative(value decimal.Decimal) (decimal.Decimal, bool) {
	if value.IsNegative() {
		return decimal.Zero, true
	}
	return value, false
}
