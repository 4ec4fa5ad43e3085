// Package money holds the decimal helpers shared by the ledger packages.
//
// All amounts are currency-agnostic decimals with two fractional digits
// (one minor unit = 0.01). Float arithmetic is never used for money.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits of one minor currency unit.
const Places = 2

// MaxDigits is the largest number of whole-unit digits an amount may have.
const MaxDigits = 15

// maxScale is the finest exponent accepted before the cents check, so
// "1.500" passes while "1e-9999" is refused without being expanded.
const maxScale = 9

// maxInput bounds the length of free-text amounts.
const maxInput = 64

// Errors returned by Check.
var (
	ErrTooPrecise = fmt.Errorf("has more than %d decimal places", Places)
	ErrTooLarge   = fmt.Errorf("has more than %d whole digits", MaxDigits)
)

// Epsilon is one minor currency unit. Two sums closer than Epsilon are
// considered equal.
var Epsilon = decimal.New(1, -Places)

// Round rounds d to whole cents (half away from zero).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Equal reports whether a and b differ by less than one minor unit.
func Equal(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Epsilon)
}

// Sum adds up the given amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// SumMap adds up every value of m.
func SumMap(m map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range m {
		total = total.Add(a)
	}
	return total
}

// Check reports whether d is a storable amount: whole cents and at most
// MaxDigits whole digits. The exponent is inspected before any rescaling.
func Check(d decimal.Decimal) error {
	exp := int64(d.Exponent())
	if exp < -maxScale {
		return ErrTooPrecise
	}
	if exp > MaxDigits {
		return ErrTooLarge
	}
	if !d.IsZero() && int64(d.NumDigits())+exp > MaxDigits {
		return ErrTooLarge
	}
	if !d.Equal(Round(d)) {
		return ErrTooPrecise
	}
	return nil
}

// Parse converts free-text input into an amount. Blank input is zero.
// A leading currency symbol and thousands separators are tolerated.
// The result always passes Check.
func Parse(s string) (decimal.Decimal, error) {
	if len(s) > maxInput {
		return decimal.Zero, errors.New("invalid amount: input too long")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if err := Check(d); err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// ParseAmounts parses a participant -> free-text amount mapping.
// Blank entries become zero; the first invalid entry is reported.
func ParseAmounts(raw map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(raw))
	for id, s := range raw {
		d, err := Parse(s)
		if err != nil {
			return nil, fmt.Errorf("participant %s: %w", id, err)
		}
		out[id] = d
	}
	return out, nil
}

// Format renders d with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
