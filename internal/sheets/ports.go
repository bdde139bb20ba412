package sheets

import (
	"context"

	"mnyxls/internal/core"

	"github.com/shopspring/decimal"
)

// Ports for outbound adapters.
type (
	// WorkbookWriter renders resolved worksheets. Sheets arrive in workbook
	// order with final, unique names.
	WorkbookWriter interface {
		Write(ctx context.Context, sheets []core.Sheet) error
	}

	// WorkbookReader returns what a writer holds. Only the in-memory adapter
	// implements it; tests use it to inspect output.
	WorkbookReader interface {
		Sheet(name string) (core.Sheet, bool)
		Names() []string
	}
)

// Number converts an amount to the float a spreadsheet cell stores.
func Number(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// Summaries describes sheets for logs and run events.
func Summaries(sheets []core.Sheet) []core.SheetSummary {
	out := make([]core.SheetSummary, len(sheets))
	for i, s := range sheets {
		out[i] = core.SheetSummary{Name: s.Name, Type: s.Type, Rows: len(s.Rows)}
	}
	return out
}
