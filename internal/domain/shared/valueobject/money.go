package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// CentPlaces is the number of decimal places money is stored with
const CentPlaces int32 = 2

// RoundCents rounds an amount to whole cents, half away from zero.
// RoundCents(RoundCents(x)) == RoundCents(x) for every x.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(CentPlaces)
}

// WithinTolerance reports whether |a - b| <= tolerance
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// Money is an immutable USD amount
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates Money from a decimal amount
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewMoneyFromFloat creates Money from a float64 value
func NewMoneyFromFloat(amount float64) Money {
	return Money{amount: decimal.NewFromFloat(amount)}
}

// NewMoneyFromString parses an amount such as "1,234.50" or "(12.00)".
// Parenthesized values are negative, matching accounting report output.
func NewMoneyFromString(s string) (Money, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: d}, nil
}

// Zero returns a zero amount
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// Add returns the sum of both amounts
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Subtract returns the difference
func (m Money) Subtract(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Round returns the amount rounded to cents
func (m Money) Round() Money {
	return Money{amount: RoundCents(m.amount)}
}

// Equals compares two amounts by value
func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount)
}

// String returns the amount with two decimals
func (m Money) String() string {
	return m.amount.StringFixed(CentPlaces)
}

// MarshalJSON encodes the amount as a string to avoid float drift
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both string and number encodings
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid money value: %w", err)
	}
	m.amount = d
	return nil
}

// Value implements driver.Valuer
func (m Money) Value() (driver.Value, error) {
	return m.amount.StringFixed(CentPlaces), nil
}

// Scan implements sql.Scanner
func (m *Money) Scan(value any) error {
	return m.amount.Scan(value)
}
