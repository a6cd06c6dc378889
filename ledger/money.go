package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is a monetary amount in hundredths. Storing integers keeps SQL
// aggregation exact; decimals appear only at the parse and format edges.
type Cents int64

const (
	// MinAmount is the smallest accepted movement amount (0.01).
	MinAmount Cents = 1
	// MaxAmount is the largest accepted amount (9,999,999.99).
	MaxAmount Cents = 999_999_999
)

var centsFactor = decimal.NewFromInt(100)

// ParseAmount converts user-supplied text into cents. Thousands separators
// and currency glyphs are stripped before parsing. Zero is only accepted
// when allowZero is set, for the initial balance.
func ParseAmount(raw string, allowZero bool) (Cents, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	if cleaned == "" {
		return 0, fmt.Errorf("%w: amount is empty", ErrValidation)
	}
	if strings.HasPrefix(cleaned, "-") {
		return 0, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}

	dec, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a number", ErrValidation, raw)
	}
	if dec.Exponent() < -2 {
		return 0, fmt.Errorf("%w: amount has more than two decimal places", ErrValidation)
	}

	scaled := dec.Mul(centsFactor)
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: amount must be between %s and %s", ErrValidation, MinAmount, MaxAmount)
	}
	cents := Cents(scaled.IntPart())
	if cents == 0 {
		if allowZero {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: amount must be at least %s", ErrValidation, MinAmount)
	}
	if cents < MinAmount || cents > MaxAmount {
		return 0, fmt.Errorf("%w: amount must be between %s and %s", ErrValidation, MinAmount, MaxAmount)
	}
	return cents, nil
}

// Decimal converts the amount back to a two-place decimal.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Div(centsFactor)
}

// String renders the amount with two fractional digits, e.g. "5000.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}
