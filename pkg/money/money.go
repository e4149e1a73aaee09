// Package money carries amounts as integer minor units. Decimal text only
// appears at the edges (request bodies, config, provider metadata).
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitsPerMajor is the scale for the platform currency (cents).
const MinorUnitsPerMajor = 100

var (
	hundred = decimal.NewFromInt(MinorUnitsPerMajor)

	ErrEmptyAmount   = errors.New("amount is required")
	ErrTooPrecise    = errors.New("amount has more than two decimal places")
	ErrInvalidAmount = errors.New("amount is not a valid number")
)

// Amount is a monetary value in minor units.
type Amount int64

// FromCents wraps a raw minor-unit count.
func FromCents(cents int64) Amount {
	return Amount(cents)
}

// FromDecimal converts a major-unit decimal into minor units.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	scaled := d.Mul(hundred)
	if !scaled.IsInteger() {
		return 0, ErrTooPrecise
	}
	return Amount(scaled.IntPart()), nil
}

// Parse reads decimal text such as "50" or "12.34".
func Parse(raw string) (Amount, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, ErrEmptyAmount
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return FromDecimal(d)
}

// Cents returns the raw minor-unit count.
func (a Amount) Cents() int64 {
	return int64(a)
}

// Decimal returns the major-unit decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String renders the amount with two fixed decimals.
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

func (a Amount) Add(b Amount) Amount { return a + b }

func (a Amount) Sub(b Amount) Amount { return a - b }

func (a Amount) IsZero() bool { return a == 0 }

func (a Amount) IsNegative() bool { return a < 0 }

func (a Amount) IsPositive() bool { return a > 0 }

// MarshalJSON encodes the amount as decimal text to avoid float drift in clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a JSON string or a JSON number in major units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Sum adds every amount in the slice.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, amt := range amounts {
		total += amt
	}
	return total
}
