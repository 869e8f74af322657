package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrMalformedAmount is returned when an amount cannot be read as a decimal number.
	ErrMalformedAmount = errors.New("malformed amount")
	// ErrAmountOutOfRange is returned for amounts that parse but are negative
	// or do not fit in a float64. It wraps ErrMalformedAmount.
	ErrAmountOutOfRange = fmt.Errorf("%w: out of range", ErrMalformedAmount)
)

// Exponents beyond these bounds cannot be represented as a float64 and are
// rejected before the value is ever expanded to digits.
const (
	maxAmountExponent = 308
	minAmountExponent = -400
)

// TransactionType is the direction of money for a transaction.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Amount is a non-negative decimal as persisted. Stored records may carry it
// either as a JSON number or as a numeric string; any other value is kept
// verbatim so that a single bad record never breaks decoding of a whole list.
type Amount string

// NewAmount returns the Amount for a decimal value.
func NewAmount(d decimal.Decimal) Amount {
	return Amount(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*a = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
	default:
		*a = Amount(b)
	}
	return nil
}

// MarshalJSON writes parseable amounts as JSON numbers and anything else as a string.
func (a Amount) MarshalJSON() ([]byte, error) {
	if d, err := a.Decimal(); err == nil {
		return []byte(d.String()), nil
	}
	return json.Marshal(string(a))
}

// Decimal parses the amount. Negative values and values outside float64
// range fail with ErrAmountOutOfRange.
func (a Amount) Decimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(string(a)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, string(a))
	}
	if d.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrAmountOutOfRange, string(a))
	}
	if exp := d.Exponent(); exp > maxAmountExponent || exp < minAmountExponent {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrAmountOutOfRange, string(a))
	}
	if math.IsInf(d.InexactFloat64(), 0) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrAmountOutOfRange, string(a))
	}
	return d, nil
}

// Draft is the client-supplied part of a transaction.
type Draft struct {
	Type        TransactionType `json:"type"`
	Amount      Amount          `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
}

// Transaction is a single income or expense record. ID and Timestamp are
// assigned by the server when the record is appended.
type Transaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	Amount      Amount          `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

// IsIncome reports whether the transaction adds money. Every other type counts as an expense.
func (t Transaction) IsIncome() bool {
	return t.Type == Income
}

// Session maps an opaque token to a user until ExpiresAt.
type Session struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
