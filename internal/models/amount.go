package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places held in minor units.
const AmountScale = 2

// Amount is a quantity of money in minor units (cents).
// Balances and transfer amounts never use floating point internally.
type Amount int64

// Decimal converts to major units, e.g. Amount(1050) -> 10.50.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -AmountScale)
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(AmountScale)
}

// AmountFromDecimal converts a major-unit decimal into minor units. It fails
// rather than round when d carries more precision than AmountScale.
func AmountFromDecimal(d decimal.Decimal) (Amount, error) {
	minor := d.Shift(AmountScale)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, d, AmountScale)
	}
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d)
	}
	return Amount(minor.IntPart()), nil
}

// ParseAmount parses a major-unit string such as "30" or "12.75".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return AmountFromDecimal(d)
}
