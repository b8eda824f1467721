// Package money holds the decimal arithmetic and input-sanitising rules the
// billing ledger is built on. All stored amounts are USD with two decimal
// places; riel payments are converted at a rate captured per ledger line.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds to cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ParsePrice turns free-form cashier input into a non-negative amount.
// Everything that is not a digit, sign or decimal point is stripped
// (currency symbols, thousands separators); unparseable input becomes zero.
func ParsePrice(raw string) decimal.Decimal {
	cleaned := sanitizeNumeric(raw)
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseQty parses a quantity field. Non-positive or non-numeric input is
// treated as one; a zero or negative quantity is never persisted.
func ParseQty(raw string) int {
	cleaned := sanitizeNumeric(raw)
	if cleaned == "" {
		return 1
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 1
	}
	qty := int(d.IntPart())
	if qty < 1 {
		return 1
	}
	return qty
}

func sanitizeNumeric(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "-" || s == "." || s == "-." {
		return ""
	}
	return s
}
