package core

import "github.com/shopspring/decimal"

// SheetSummary describes one rendered worksheet.
type SheetSummary struct {
	Name string
	Type string
	Rows int
}

// RunSummary is a compact description of one import run, logged at the end
// and published to the message broker when one is configured.
type RunSummary struct {
	RunID      string
	Reports    int
	Accounts   int
	Categories int
	Txns       int
	TxnDateMin Date
	TxnDateMax Date
	Total      decimal.Decimal
	Sheets     []SheetSummary
}
