// Package money provides a fixed-point decimal amount type for the ledger.
package money

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every amount is rounded to.
const Scale = 4

// ErrNegative is returned where an operation requires a non-negative amount.
var ErrNegative = errors.New("money: amount must not be negative")

// Amount is a fixed-point decimal value, always carried at Scale digits.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{d: decimal.Zero}

// New builds an Amount from a string such as "120.5000", rounding to Scale.
func New(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	return Amount{d: d.Round(Scale)}, nil
}

// FromFloat builds an Amount from a float64. Prefer New for values that come
// from the wire; this exists for tests and seed data.
func FromFloat(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f).Round(Scale)}
}

// MustNew is New, panicking on a malformed literal. Intended for constants.
func MustNew(s string) Amount {
	a, err := New(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d).Round(Scale)}
}

// Sub returns a-b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d).Round(Scale)}
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{d: a.d.Neg()}
}

// Cmp compares a and b: -1, 0, or 1.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// GreaterThanOrEqual reports whether a >= b.
func (a Amount) GreaterThanOrEqual(b Amount) bool {
	return a.d.Cmp(b.d) >= 0
}

// String renders the amount at fixed Scale, e.g. "120.5000".
func (a Amount) String() string {
	return a.d.StringFixed(Scale)
}

// MarshalJSON renders the amount as a JSON string to avoid float precision
// loss on the wire.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := New(s)
		if err != nil {
			return err
		}
		*a = v
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("money: cannot unmarshal %s", data)
	}
	*a = FromFloat(f)
	return nil
}
