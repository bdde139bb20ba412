package core

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed or unsupported report. It is fatal.
type ParseError struct {
	File  string
	Line  int
	Field string
	Msg   string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "'%s'", e.File)
	if e.Line > 0 {
		fmt.Fprintf(&b, ": line %d", e.Line)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": '%s'", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	return b.String()
}

// ReconciliationError reports entity attributes that cannot be merged.
type ReconciliationError struct {
	Entity string // "account" or "category"
	Name   string
	Field  string
	Msg    string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%s '%s': %s: %s", e.Entity, e.Name, e.Field, e.Msg)
}

// ConfigurationError reports an invalid directive. Directive is the dotted
// path of the offending key, e.g. "workbook.worksheets.Txns.select.payee".
type ConfigurationError struct {
	File      string
	Directive string
	Msg       string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if e.File != "" {
		parts = append(parts, fmt.Sprintf("'%s'", e.File))
	}
	if e.Directive != "" {
		parts = append(parts, fmt.Sprintf("'%s'", e.Directive))
	}
	parts = append(parts, e.Msg)
	return strings.Join(parts, ": ")
}

// NewConfigError is shorthand for a ConfigurationError without a file.
func NewConfigError(directive, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Directive: directive, Msg: fmt.Sprintf(format, args...)}
}

// EmptyResultWarning is logged when a worksheet resolves to no rows. It is
// never returned up the stack.
type EmptyResultWarning struct {
	Sheet string
}

func (e *EmptyResultWarning) Error() string {
	return fmt.Sprintf("worksheet '%s' has no rows", e.Sheet)
}
