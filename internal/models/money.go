package models

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-negative euro amount. Arithmetic is exact; rounding to two
// decimals happens only when the value is rendered.
type Money struct {
	d decimal.Decimal
}

var Zero = Money{}

// Amounts are plain digits with an optional fraction; no sign, no exponent.
var plainAmount = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

const maxAmountLen = 18

// NewMoney builds a Money from integer cents.
func NewMoney(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// MustMoney parses a decimal literal and panics on error. Intended for
// constants and tests.
func MustMoney(s string) Money {
	m, err := MoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyFromString parses a plain decimal literal such as "12" or "3.50".
// Signs, exponents and literals longer than 18 characters are rejected.
func MoneyFromString(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return Zero, fmt.Errorf("invalid amount %q: negative", s)
	}
	if len(s) > maxAmountLen {
		return Zero, fmt.Errorf("invalid amount %q: too long", s)
	}
	if !plainAmount.MatchString(s) {
		return Zero, fmt.Errorf("invalid amount %q: not a plain decimal", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{d: d}, nil
}

// ParseMoney reads cashier input, rounded to cents. Empty, partial,
// unparsable or negative input yields zero. A comma is accepted as the
// decimal separator.
func ParseMoney(raw string) Money {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return Zero
	}
	s = strings.TrimSuffix(s, ".")
	m, err := MoneyFromString(s)
	if err != nil {
		return Zero
	}
	return Money{d: m.d.Round(2)}
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

// Times multiplies by a quantity.
func (m Money) Times(qty int) Money { return Money{d: m.d.Mul(decimal.NewFromInt(int64(qty)))} }

// SubFloor returns m - o, or zero when o exceeds m.
func (m Money) SubFloor(o Money) Money {
	r := m.d.Sub(o.d)
	if r.IsNegative() {
		return Zero
	}
	return Money{d: r}
}

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) IsZero() bool { return m.d.IsZero() }

// String renders the amount with two decimals, e.g. "3.50".
func (m Money) String() string { return m.d.StringFixed(2) }

// MarshalJSON writes a bare JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if string(data) == "null" || len(data) == 0 {
		*m = Zero
		return nil
	}
	parsed, err := MoneyFromString(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
