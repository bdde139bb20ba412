package core

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeName returns the lookup key for an account, payee or category
// name. Display keeps the first spelling seen.
func NormalizeName(name string) string {
	// A Caser keeps state, so each call gets its own.
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}

// SameName compares two names the way NormalizeName keys them.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
