package domain

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MinorUnitDigits is the number of decimal places a Money value carries.
const MinorUnitDigits = 2

// maxAmountExponent bounds the decimal exponent accepted from input. Rescaling
// a decimal costs a power of ten as large as its exponent, so values such as
// 1e-50000000 are rejected before any arithmetic touches them.
const maxAmountExponent = 20

var (
	ErrAmountPrecision = errors.New("amount has more than two decimal places")
	ErrAmountOverflow  = errors.New("amount is out of range")

	maxMoney = decimal.NewFromInt(math.MaxInt64)
	minMoney = decimal.NewFromInt(math.MinInt64)
)

// Money is an amount in minor currency units (cents). Balances and transfer
// amounts never pass through binary floating point.
type Money int64

// MoneyFromDecimal converts a decimal amount to minor units. It rejects values
// that would lose precision or overflow.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsZero() {
		return 0, nil
	}
	if exp := d.Exponent(); exp < -maxAmountExponent {
		return 0, ErrAmountPrecision
	} else if exp > maxAmountExponent {
		return 0, ErrAmountOverflow
	}
	if !d.Round(MinorUnitDigits).Equal(d) {
		return 0, ErrAmountPrecision
	}
	minor := d.Shift(MinorUnitDigits)
	if minor.GreaterThan(maxMoney) || minor.LessThan(minMoney) {
		return 0, ErrAmountOverflow
	}
	return Money(minor.IntPart()), nil
}

// ParseMoney parses a decimal string such as "30", "30.5" or "30.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return MoneyFromDecimal(d)
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -MinorUnitDigits)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(MinorUnitDigits)
}

// MarshalJSON encodes the amount as a JSON number with two decimal places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
