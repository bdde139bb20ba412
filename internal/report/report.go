// Package report parses the comma-delimited reports Microsoft Money exports
// into typed records. Each report kind has its own parser; Parse detects the
// kind from the header and footer rows.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"mnyxls/internal/core"
	"mnyxls/internal/log"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindTransactions    Kind = "account_transactions"
	KindBalances        Kind = "account_balances"
	KindBalancesDetails Kind = "account_balances_details"
	KindLoanTerms       Kind = "loan_terms"
	KindIncomeSpending  Kind = "income_spending"
	KindMonthly         Kind = "monthly_income_expenses"
	KindInvTransactions Kind = "inv_account_transactions"
)

// Options carries the import filters shared by every parser.
type Options struct {
	ImportFrom  core.Date
	ImportTo    core.Date
	CheckTotals bool
	Logger      *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.Discard()
	}
	return o.Logger
}

// inRange reports whether d falls inside the import range.
func (o Options) inRange(d core.Date) bool {
	return d.Between(o.ImportFrom, o.ImportTo)
}

// AccountRecord is the partial view of one account a report provides.
type AccountRecord struct {
	Name           string
	Classification core.Classification
	Category       string
	Abbreviation   string
	BankName       string
	AccountNumber  string
	Limit          decimal.NullDecimal
	OpeningBalance decimal.NullDecimal
	Line           int
}

// CategoryRecord is a category row of a spending report.
type CategoryRecord struct {
	core.CategoryKey
	Type core.TxnType
	Line int
}

// Report is the parsed content of one file. Only the slices relevant to
// Kind are populated.
type Report struct {
	Path string
	Kind Kind
	AsOf core.Date
	// Skipped is set when the report lies outside the import range.
	Skipped bool

	Txns             []core.Txn
	InvTxns          []core.InvTxn
	Accounts         []AccountRecord
	Loans            []core.Loan
	Categories       []CategoryRecord
	AccountBalances  []core.AccountBalance
	CategoryBalances []core.CategoryBalance
}

// DateRange returns the first and last transaction dates, or the as-of date
// for snapshot reports.
func (r *Report) DateRange() (core.Date, core.Date) {
	switch r.Kind {
	case KindTransactions:
		return r.dateRangeOf(r.Txns)
	case KindInvTransactions:
		return invDateRange(r.InvTxns)
	}
	return r.AsOf, r.AsOf
}

type parser struct {
	kind   Kind
	detect func(*rawReport) bool
	parse  func(*rawReport, Options) (*Report, error)
}

// parsers are tried in order; the more specific formats come first.
var parsers = []parser{
	{KindBalances, detectBalances, parseBalances},
	{KindBalancesDetails, detectBalancesDetails, parseBalancesDetails},
	{KindLoanTerms, detectLoanTerms, parseLoanTerms},
	{KindIncomeSpending, detectIncomeSpending, parseIncomeSpending},
	{KindMonthly, detectMonthly, parseMonthly},
	{KindInvTransactions, detectInvTransactions, parseInvTransactions},
	{KindTransactions, detectTransactions, parseTransactions},
}

// Detect returns the report kind of the file at path.
func Detect(path string) (Kind, error) {
	raw, err := readFile(path)
	if err != nil {
		return "", err
	}
	return detect(raw)
}

func detect(raw *rawReport) (Kind, error) {
	for _, p := range parsers {
		if p.detect(raw) {
			return p.kind, nil
		}
	}
	return "", raw.fail(0, "", "unrecognized report format")
}

// Parse reads, detects and parses the report at path.
func Parse(path string, opts Options) (*Report, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return parseRaw(raw, opts)
}

// ParseReader parses a report from r. name is used in errors and modTime
// stands in for the file modification time.
func ParseReader(name string, r io.Reader, modTime time.Time, opts Options) (*Report, error) {
	raw, err := readRaw(name, r, modTime)
	if err != nil {
		return nil, err
	}
	return parseRaw(raw, opts)
}

func parseRaw(raw *rawReport, opts Options) (*Report, error) {
	kind, err := detect(raw)
	if err != nil {
		return nil, err
	}
	for _, p := range parsers {
		if p.kind != kind {
			continue
		}
		opts.logger().Info("Parsing report", log.FieldReport, raw.Path, log.FieldReportKind, string(kind))
		rep, err := p.parse(raw, opts)
		if err != nil {
			return nil, err
		}
		rep.Path, rep.Kind = raw.Path, kind
		if rep.Skipped {
			opts.logger().Info("Skipping report outside import date range",
				log.FieldReport, raw.Path, log.FieldAsOf, rep.AsOf.String())
		}
		return rep, nil
	}
	return nil, fmt.Errorf("no parser registered for %s", kind)
}

// ParseAll parses paths in order. Order is significant: earlier reports win
// conflicts during reconciliation.
func ParseAll(ctx context.Context, paths []string, opts Options) ([]*Report, error) {
	if opts.Logger == nil {
		opts.Logger = log.FromContext(ctx, nil).WithComponent(log.ComponentReport)
	}
	reports := make([]*Report, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep, err := Parse(path, opts)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
