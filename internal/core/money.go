// Package core holds the planner's entities and the money arithmetic they share.
//
// Rates and costs are whole currency units (Money). Contract values, budgets
// and the income side of reports keep their fractional part (Amount) until
// VAT is extracted. Decoding is lenient: numeric strings are accepted and
// anything else reads as zero so that a malformed field never fails a whole
// report.
package core

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned by ParseMoney for unparsable input.
var ErrInvalidAmount = errors.New("invalid amount")

// Money is an amount in whole currency units.
type Money int64

// Hours is a whole number of hours.
type Hours int

// MoneyFromDecimal rounds d half away from zero.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Round(0).IntPart())
}

// Decimal returns m as a decimal for exact arithmetic.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m))
}

// Mul multiplies m by a whole number of hours.
func (m Money) Mul(hours int) Money {
	return m * Money(hours)
}

// Amount is a sum that keeps the fraction it was entered with. The zero
// value is zero.
type Amount struct {
	d decimal.Decimal
}

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) Amount {
	if d.IsZero() {
		return Amount{}
	}
	return Amount{d: d}
}

// AmountOf converts whole units.
func AmountOf(m Money) Amount {
	return NewAmount(m.Decimal())
}

// Decimal returns a for exact arithmetic.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

func (a Amount) Add(b Amount) Amount {
	return NewAmount(a.d.Add(b.d))
}

func (a Amount) Sub(b Amount) Amount {
	return NewAmount(a.d.Sub(b.d))
}

func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// Round returns a in whole units, half away from zero.
func (a Amount) Round() Money {
	return MoneyFromDecimal(a.d)
}

// IsWhole reports whether a has no fractional part.
func (a Amount) IsWhole() bool {
	return a.d.Equal(a.d.Truncate(0))
}

func (a Amount) Float64() float64 {
	return a.d.InexactFloat64()
}

func (a Amount) String() string {
	return a.d.String()
}

// MarshalJSON writes a as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = NewAmount(lenientNumber(data))
	return nil
}

// ParseAmount parses "1500", "1500.50" or "1 500,50" without rounding.
// Negative amounts are rejected.
func ParseAmount(s string) (Amount, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return Amount{}, err
	}
	if d.IsNegative() {
		return Amount{}, ErrInvalidAmount
	}
	return NewAmount(d), nil
}

// ParseMoney parses "1500", "1500.50", "1 500,50" and rounds to whole units.
// Negative amounts are rejected.
func ParseMoney(s string) (Money, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	return MoneyFromDecimal(d), nil
}

// ParseHours parses a whole hour count the way the planner grid does:
// empty input is zero, anything else must be an integer.
func ParseHours(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalidHours
	}
	return n, nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	*m = MoneyFromDecimal(lenientNumber(data))
	return nil
}

func (h *Hours) UnmarshalJSON(data []byte) error {
	*h = Hours(lenientNumber(data).Round(0).IntPart())
	return nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func lenientNumber(data []byte) decimal.Decimal {
	d, ok := jsonNumber(data)
	if !ok {
		return decimal.Zero
	}
	return d
}

// jsonNumber reads a JSON number or numeric string. ok is false for null,
// absent and non-numeric values.
func jsonNumber(data []byte) (d decimal.Decimal, ok bool) {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return decimal.Zero, false
	}
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = unq
	}
	d, err := parseDecimal(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
