package report

import (
	"slices"

	"mnyxls/internal/core"
	"mnyxls/internal/log"

	"github.com/shopspring/decimal"
)

const (
	txnsHeaderLimit = 5
	txnsFooter      = "Grand Total"
	voidNum         = "**VOID**"
)

var txnsRequired = []string{"Num", "Date", "Payee", "Account", "Category", "Amount"}

func detectTransactions(raw *rawReport) bool {
	return raw.headerIndex(txnsRequired[0], txnsHeaderLimit) >= 0
}

// parseTransactions reads an account transactions register.
//
// Split transactions appear as a parent row followed by undated child rows.
// Children inherit the parent's Num, Date, Payee, Account and (when blank)
// Memo; the parent itself is dropped.
func parseTransactions(raw *rawReport, opts Options) (*Report, error) {
	t, err := newTable(raw, txnsRequired, txnsHeaderLimit)
	if err != nil {
		return nil, err
	}

	var (
		txns       []core.Txn
		drop       = map[int]bool{}
		parent     = -1
		grandTotal decimal.NullDecimal
		footer     bool
	)
	for _, rec := range t.rows {
		num := t.get(rec, "Num")
		if num == txnsFooter {
			if grandTotal, err = t.amount(rec, "Amount"); err != nil {
				return nil, err
			}
			footer = true
			break
		}

		amount, err := t.amount(rec, "Amount")
		if err != nil {
			return nil, err
		}
		cat := core.SplitCategoryPair(t.get(rec, "Category"))
		txn := core.Txn{
			Num:         num,
			Payee:       t.get(rec, "Payee"),
			Account:     t.get(rec, "Account"),
			Category:    cat.Category,
			Subcategory: cat.Subcategory,
			Amount:      amount.Decimal,
			Cleared:     t.get(rec, "C"),
			Memo:        t.get(rec, "Memo"),
			Source:      raw.Path,
		}

		if dateText := t.get(rec, "Date"); dateText != "" {
			if txn.Date, err = core.ParseISODate(dateText); err != nil {
				return nil, raw.fail(rec.Line, "Date", "%v", err)
			}
			txns = append(txns, txn)
			parent = len(txns) - 1
			continue
		}

		if parent < 0 {
			return nil, raw.fail(rec.Line, "Date", "split line without a parent transaction")
		}
		p := txns[parent]
		drop[parent] = true
		txn.Split = true
		txn.Num, txn.Date, txn.Payee, txn.Account = p.Num, p.Date, p.Payee, p.Account
		if txn.Memo == "" {
			txn.Memo = p.Memo
		}
		txns = append(txns, txn)
	}
	if !footer {
		return nil, raw.fail(0, "Num", "expected to find a row named '%s'", txnsFooter)
	}

	kept := txns[:0:0]
	for i, txn := range txns {
		if drop[i] || txn.Num == voidNum {
			continue
		}
		if core.IsTransferCategory(txn.Category) {
			txn.XferAccount, txn.Subcategory = txn.Subcategory, ""
		}
		kept = append(kept, txn)
	}

	if opts.CheckTotals && grandTotal.Valid {
		sum := decimal.Zero
		for _, txn := range kept {
			sum = sum.Add(txn.Amount)
		}
		if !sum.Equal(grandTotal.Decimal) {
			opts.logger().Warn("Report 'Grand Total' does not match sum of transaction amounts",
				log.FieldReport, raw.Path, "sum", sum.StringFixed(2), "grand_total", grandTotal.Decimal.StringFixed(2))
		}
	}

	inRange := kept[:0:0]
	for _, txn := range kept {
		if opts.inRange(txn.Date) {
			inRange = append(inRange, txn)
		}
	}
	if skipped := len(kept) - len(inRange); skipped > 0 {
		opts.logger().Debug("Ignoring transactions outside import date range",
			log.FieldReport, raw.Path, log.FieldCount, skipped)
	}

	// Sort by date keeping report order within a day.
	slices.SortStableFunc(inRange, func(a, b core.Txn) int {
		return a.Date.Compare(b.Date.Time)
	})
	for i := range inRange {
		inRange[i].N = i + 1
	}

	rep := &Report{Txns: inRange}
	if len(inRange) == 0 {
		rep.Skipped = len(kept) > 0
	}
	_, rep.AsOf = rep.dateRangeOf(inRange)
	return rep, nil
}

func (r *Report) dateRangeOf(txns []core.Txn) (core.Date, core.Date) {
	var lo, hi core.Date
	for _, t := range txns {
		lo = core.MinDate(lo, t.Date)
		hi = core.MaxDate(hi, t.Date)
	}
	return lo, hi
}
