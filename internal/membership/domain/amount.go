package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a wire value cannot be read as a decimal amount.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a currency-bearing decimal value.
type Amount struct {
	Value    decimal.Decimal
	Currency string
}

// NewAmount builds an Amount from a decimal string such as "100.00".
func NewAmount(value, currency string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	return Amount{Value: d, Currency: normalizeCurrency(currency)}, nil
}

// MustAmount is NewAmount for literals; it panics on malformed input.
func MustAmount(value, currency string) Amount {
	a, err := NewAmount(value, currency)
	if err != nil {
		panic(err)
	}
	return a
}

// Cmp compares the numeric values, ignoring currency.
func (a Amount) Cmp(b Amount) int {
	return a.Value.Cmp(b.Value)
}

// IsZero reports whether the value is zero.
func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

// String renders "100.00 USD".
func (a Amount) String() string {
	if a.Currency == "" {
		return a.Value.StringFixed(2)
	}
	return a.Value.StringFixed(2) + " " + a.Currency
}

type amountObject struct {
	Amount   json.RawMessage `json:"amount"`
	Value    json.RawMessage `json:"value"`
	Currency string          `json:"currency"`
}

// ParseAmount reads the backend's decimal serialization. The API emits
// amounts as a JSON string ("100.00"), a bare JSON number (100, 99.5) or an
// object {"amount": ..., "currency": "usd"}. The object's currency, when
// present, overrides currency.
func ParseAmount(raw json.RawMessage, currency string) (Amount, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		return NewAmount(s, currency)
	case '{':
		var obj amountObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		if obj.Currency != "" {
			currency = obj.Currency
		}
		inner := obj.Amount
		if len(inner) == 0 {
			inner = obj.Value
		}
		if len(inner) == 0 || bytes.HasPrefix(bytes.TrimSpace(inner), []byte("{")) {
			return Amount{}, fmt.Errorf("%w: object without amount", ErrInvalidAmount)
		}
		return ParseAmount(inner, currency)
	default:
		// Bare numbers are parsed from their literal text so no float rounding occurs.
		return NewAmount(string(raw), currency)
	}
}

func normalizeCurrency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}
