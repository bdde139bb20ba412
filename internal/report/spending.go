package report

import (
	"strings"

	"mnyxls/internal/core"
	"mnyxls/internal/log"

	"github.com/shopspring/decimal"
)

const spendingHeaderLimit = 5

var spendingRequired = []string{"Category", "Total"}

// spendingLayout differs between the income/spending and the monthly
// income/expenses reports only in labels.
type spendingLayout struct {
	footer   string
	sections map[string]core.TxnType
}

var (
	incomeSpendingLayout = spendingLayout{
		footer: "Grand Total",
		sections: map[string]core.TxnType{
			"Income Categories":  core.TxnTypeIncome,
			"Expense Categories": core.TxnTypeExpense,
			"Transfers":          core.TxnTypeTransfer,
		},
	}
	monthlyLayout = spendingLayout{
		footer: "Income less Expenses",
		sections: map[string]core.TxnType{
			"Income":    core.TxnTypeIncome,
			"Expenses":  core.TxnTypeExpense,
			"Transfers": core.TxnTypeTransfer,
		},
	}
)

func detectIncomeSpending(raw *rawReport) bool {
	return raw.headerIndex(spendingRequired[0], spendingHeaderLimit) >= 0 && raw.hasRowStarting(incomeSpendingLayout.footer)
}

func detectMonthly(raw *rawReport) bool {
	return raw.headerIndex(spendingRequired[0], spendingHeaderLimit) >= 0 && raw.hasRowStarting(monthlyLayout.footer)
}

func parseIncomeSpending(raw *rawReport, opts Options) (*Report, error) {
	return incomeSpendingLayout.parse(raw, opts)
}

func parseMonthly(raw *rawReport, opts Options) (*Report, error) {
	return monthlyLayout.parse(raw, opts)
}

// parse reads category rows grouped into Income, Expense and Transfer
// sections. Each section header has no total and is closed by a
// "Total <section>" row. The dated columns are per-period category totals.
func (l spendingLayout) parse(raw *rawReport, opts Options) (*Report, error) {
	t, err := newTable(raw, spendingRequired, spendingHeaderLimit)
	if err != nil {
		return nil, err
	}
	all := t.dateColumns()
	if len(all) == 0 {
		return nil, raw.fail(0, "", "failed to find any annual columns in report")
	}

	var cols []dateColumn
	for _, c := range all {
		if opts.inRange(c.Date) {
			cols = append(cols, c)
		}
	}
	rep := &Report{AsOf: all[len(all)-1].Date}
	if len(cols) == 0 {
		rep.Skipped = true
		return rep, nil
	}
	if len(cols) < len(all) {
		opts.logger().Debug("Ignoring columns outside of date range",
			log.FieldReport, raw.Path, log.FieldCount, len(all)-len(cols))
	}
	rep.AsOf = cols[len(cols)-1].Date

	var (
		section    string
		txnType    core.TxnType
		grandTotal decimal.NullDecimal
		totals     = map[core.TxnType]decimal.Decimal{}
	)
	for _, rec := range t.rows {
		name := t.get(rec, "Category")
		total, err := t.amount(rec, "Total")
		if err != nil {
			return nil, err
		}
		if name == l.footer {
			grandTotal = total
			break
		}
		unexpected := func() error {
			return raw.fail(rec.Line, "Category", "unrecognized 'Category' value; did not expect '%s'", name)
		}

		totalFor, isTotal := strings.CutPrefix(name, "Total ")
		switch {
		case !total.Valid && section == "":
			typ, ok := l.sections[name]
			if !ok {
				return nil, unexpected()
			}
			section, txnType = name, typ
		case !total.Valid:
			return nil, raw.fail(rec.Line, "Total", "'Total' column has a category without a value")
		case section == "":
			return nil, unexpected()
		case isTotal && totalFor == section:
			section, txnType = "", ""
		default:
			key := core.SplitCategoryPair(name)
			rep.Categories = append(rep.Categories, CategoryRecord{CategoryKey: key, Type: txnType, Line: rec.Line})
			totals[txnType] = totals[txnType].Add(total.Decimal)
			for _, c := range cols {
				v, err := t.amount(rec, c.Name)
				if err != nil {
					return nil, err
				}
				if v.Valid {
					rep.CategoryBalances = append(rep.CategoryBalances, core.CategoryBalance{
						CategoryKey: key,
						Date:        c.Date,
						Balance:     v.Decimal,
					})
				}
			}
		}
	}

	if opts.CheckTotals && grandTotal.Valid {
		income := totals[core.TxnTypeIncome]
		expenses := totals[core.TxnTypeExpense]
		transfers := totals[core.TxnTypeTransfer]
		if got := income.Sub(expenses).Add(transfers); !got.Equal(grandTotal.Decimal) {
			opts.logger().Warn("Report grand total does not match (Income - Expenses) + Transfers",
				log.FieldReport, raw.Path,
				"grand_total", grandTotal.Decimal.StringFixed(2),
				"income", income.StringFixed(2),
				"expenses", expenses.StringFixed(2),
				"transfers", transfers.StringFixed(2))
		}
	}
	return rep, nil
}
