// Package core holds the reconciled entity model shared by every stage:
// accounts, categories, transactions, dates, amounts and the error taxonomy.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a report currency cell to a decimal.
//
// Money formats amounts with grouping commas, an optional leading currency
// symbol, parentheses for negatives and a trailing percent sign for rates.
// An empty cell yields an invalid NullDecimal and no error.
//
// Examples:
//
//	ParseAmount("1,234.56")  -> 1234.56
//	ParseAmount("($12.00)")  -> -12.00
//	ParseAmount("4.5%")      -> 4.5
func ParseAmount(raw string) (decimal.NullDecimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}
	// Drop a currency symbol in front of the number.
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '-' && r != '.'
	})
	if s == "" {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if neg {
		d = d.Neg()
	}
	return decimal.NewNullDecimal(d), nil
}

// MustAmount parses s and panics on error. Intended for literals in tests.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil || !d.Valid {
		panic(fmt.Sprintf("core.MustAmount(%q): %v", s, err))
	}
	return d.Decimal
}

// FormatAmount renders d with two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
