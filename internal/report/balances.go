package report

import (
	"slices"
	"strings"

	"mnyxls/internal/core"
	"mnyxls/internal/log"

	"github.com/shopspring/decimal"
)

const (
	balancesHeaderLimit = 5
	balancesFooter      = "Net Worth"
)

var (
	balancesRequired = []string{"Account", "Total"}
	detailsRequired  = []string{"Account", "Balance", "Balance.1"}
)

func headerFields(raw *rawReport, first string, limit int) []string {
	idx := raw.headerIndex(first, limit)
	if idx < 0 {
		return nil
	}
	return raw.Records[idx].Fields
}

func detectBalances(raw *rawReport) bool {
	header := headerFields(raw, "Account", balancesHeaderLimit)
	return slices.Contains(header, "Total") && raw.hasRowStarting(balancesFooter)
}

func detectBalancesDetails(raw *rawReport) bool {
	header := headerFields(raw, "Account", balancesHeaderLimit)
	n := 0
	for _, f := range header {
		if f == "Balance" {
			n++
		}
	}
	return n >= 2
}

// parseBalances reads the account balances report. Its rows nest as
//
//	Assets                       (classification header, no total)
//	Bank and Cash Accounts       (category header, no total)
//	Checking,1234.56             (account)
//	Total Bank and Cash Accounts
//	Total Assets
//
// and any other shape is rejected.
func parseBalances(raw *rawReport, opts Options) (*Report, error) {
	asOf, ok := raw.asOf(balancesHeaderLimit)
	if !ok {
		return nil, raw.fail(0, "", "failed to find report date; looking for 'As of MM/DD/YYYY'")
	}
	rep := &Report{AsOf: asOf}
	if !opts.inRange(asOf) {
		rep.Skipped = true
		return rep, nil
	}

	t, err := newTable(raw, balancesRequired, balancesHeaderLimit)
	if err != nil {
		return nil, err
	}

	var (
		classText string
		class     core.Classification
		category  string
		netWorth  decimal.NullDecimal
		footer    bool
	)
	for _, rec := range t.rows {
		name := t.get(rec, "Account")
		total, err := t.amount(rec, "Total")
		if err != nil {
			return nil, err
		}
		if name == balancesFooter {
			netWorth, footer = total, true
			break
		}
		unexpected := func() error {
			return raw.fail(rec.Line, "Account", "unrecognized 'Account' value; did not expect '%s'", name)
		}

		totalFor, isTotal := strings.CutPrefix(name, "Total ")
		switch {
		case !total.Valid && classText == "":
			c, ok := core.ParseClassification(name)
			if !ok {
				return nil, unexpected()
			}
			classText, class, category = name, c, ""
		case !total.Valid && category == "":
			category = name
		case !total.Valid:
			return nil, unexpected()
		case classText == "":
			return nil, unexpected()
		case isTotal && totalFor == classText:
			classText, class, category = "", core.Undefined, ""
		case isTotal && totalFor == category:
			category = ""
		case category != "":
			rep.Accounts = append(rep.Accounts, AccountRecord{
				Name:           name,
				Classification: class,
				Category:       category,
				Line:           rec.Line,
			})
			rep.AccountBalances = append(rep.AccountBalances, core.AccountBalance{
				Account: name,
				Date:    asOf,
				Balance: total.Decimal,
			})
		default:
			return nil, unexpected()
		}
	}
	if !footer {
		return nil, raw.fail(0, "Account", "expected to find a row named '%s'", balancesFooter)
	}

	if opts.CheckTotals && netWorth.Valid {
		assets, liabilities := decimal.Zero, decimal.Zero
		for i, acct := range rep.Accounts {
			if acct.Classification == core.Liabilities {
				liabilities = liabilities.Add(rep.AccountBalances[i].Balance)
			} else {
				assets = assets.Add(rep.AccountBalances[i].Balance)
			}
		}
		if got := assets.Sub(liabilities); !got.Equal(netWorth.Decimal) {
			opts.logger().Warn("Report 'Net Worth' does not match assets minus liabilities",
				log.FieldReport, raw.Path,
				"net_worth", netWorth.Decimal.StringFixed(2),
				"assets", assets.StringFixed(2),
				"liabilities", liabilities.StringFixed(2))
		}
	}
	return rep, nil
}

// parseBalancesDetails reads the account balances report with details. The
// first Balance column is the opening balance and the second the balance as
// of the report date.
func parseBalancesDetails(raw *rawReport, opts Options) (*Report, error) {
	asOf, found := raw.asOfOrModTime(balancesHeaderLimit)
	if !found {
		opts.logger().Debug("Using file modification time as report date",
			log.FieldReport, raw.Path, log.FieldAsOf, asOf.String())
	}
	rep := &Report{AsOf: asOf}
	if !opts.inRange(asOf) {
		rep.Skipped = true
		return rep, nil
	}

	t, err := newTable(raw, detailsRequired, balancesHeaderLimit)
	if err != nil {
		return nil, err
	}
	for _, rec := range t.rows {
		name := t.get(rec, "Account")
		if name == "" {
			continue
		}
		opening, err := t.amount(rec, "Balance")
		if err != nil {
			return nil, err
		}
		current, err := t.amount(rec, "Balance.1")
		if err != nil {
			return nil, err
		}
		limit, err := t.amount(rec, "Limit")
		if err != nil {
			return nil, err
		}
		rep.Accounts = append(rep.Accounts, AccountRecord{
			Name:           name,
			Abbreviation:   t.get(rec, "Abbreviation"),
			BankName:       t.get(rec, "Bank Name"),
			AccountNumber:  t.get(rec, "Account Number"),
			Limit:          limit,
			OpeningBalance: opening,
			Line:           rec.Line,
		})
		if current.Valid {
			rep.AccountBalances = append(rep.AccountBalances, core.AccountBalance{
				Account: name,
				Date:    asOf,
				Balance: current.Decimal,
			})
		}
	}
	return rep, nil
}
