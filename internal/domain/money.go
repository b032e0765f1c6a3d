package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every Money value.
const Scale = 2

// Money is an exact, non-negative monetary amount with two fractional digits.
// The zero value is unset and stands for an absent amount; use Zero for 0.00.
type Money struct {
	amount decimal.Decimal
	set    bool
}

// NewMoney validates d and normalizes it to two fractional digits.
// Inputs with more than two fractional digits are rejected, not rounded.
func NewMoney(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s", ErrNegativeAmount, d)
	}

	if d.Exponent() < -Scale {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidPrecision, d)
	}

	return Money{amount: d.Round(Scale), set: true}, nil
}

// ParseMoney parses a decimal string such as "100.5" or " 42 ".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrEmptyAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}

	return NewMoney(d)
}

// MustParseMoney is like ParseMoney but panics on error.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns 0.00.
func Zero() Money {
	return Money{amount: decimal.New(0, -Scale), set: true}
}

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if !other.set {
		return Money{}, missingField("amount")
	}

	return Money{amount: m.amount.Add(other.amount).Round(Scale), set: true}, nil
}

// Sub returns m - other, or ErrNegativeResult when other is larger than m.
func (m Money) Sub(other Money) (Money, error) {
	if !other.set {
		return Money{}, missingField("amount")
	}

	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, fmt.Errorf("%w: cannot subtract %s from %s", ErrNegativeResult, other, m)
	}

	return Money{amount: result.Round(Scale), set: true}, nil
}

// IsSet reports whether m holds an amount.
func (m Money) IsSet() bool {
	return m.set
}

// IsPositive reports whether m is greater than 0.00.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// Cmp compares the amounts of m and other.
func (m Money) Cmp(other Money) int {
	return m.amount.Cmp(other.amount)
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// Equal reports whether both values are set (or both unset) with the same amount.
func (m Money) Equal(other Money) bool {
	return m.set == other.set && m.amount.Equal(other.amount)
}

// Decimal returns the underlying decimal.
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// String formats m with exactly two fractional digits.
func (m Money) String() string {
	return m.amount.StringFixed(Scale)
}

// MarshalJSON encodes m as a bare JSON number, e.g. 100.50.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
// null leaves m unset.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" {
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedAmount, raw)
		}
		raw = unquoted
	}

	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}

	*m = parsed
	return nil
}
