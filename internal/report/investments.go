package report

import (
	"slices"

	"mnyxls/internal/core"
	"mnyxls/internal/log"

	"github.com/shopspring/decimal"
)

const invTxnsHeaderLimit = 5

var invTxnsRequired = []string{
	"Date", "Account", "Investment", "Activity", "Quantity", "Price",
	"Commission", "Total", "Transfer Account", "Category",
}

func detectInvTransactions(raw *rawReport) bool {
	return slices.Contains(headerFields(raw, invTxnsRequired[0], invTxnsHeaderLimit), "Commission")
}

// parseInvTransactions reads an investment account transactions register.
// Rows without a date carry report totals and are ignored.
func parseInvTransactions(raw *rawReport, opts Options) (*Report, error) {
	t, err := newTable(raw, invTxnsRequired, invTxnsHeaderLimit)
	if err != nil {
		return nil, err
	}

	var txns []core.InvTxn
	for _, rec := range t.rows {
		dateText := t.get(rec, "Date")
		if dateText == "" {
			continue
		}
		date, err := core.ParseISODate(dateText)
		if err != nil {
			return nil, raw.fail(rec.Line, "Date", "%v", err)
		}
		cat := core.SplitCategoryPair(t.get(rec, "Category"))
		txn := core.InvTxn{
			Date:        date,
			Account:     t.get(rec, "Account"),
			Investment:  t.get(rec, "Investment"),
			Activity:    t.get(rec, "Activity"),
			Cleared:     t.get(rec, "C"),
			XferAccount: t.get(rec, "Transfer Account"),
			Category:    cat.Category,
			Subcategory: cat.Subcategory,
			Memo:        t.get(rec, "Memo"),
			Source:      raw.Path,
		}
		for _, f := range []struct {
			col string
			dst *decimal.NullDecimal
		}{
			{"Quantity", &txn.Quantity},
			{"Price", &txn.Price},
			{"Commission", &txn.Commission},
			{"Total", &txn.Total},
		} {
			if *f.dst, err = t.amount(rec, f.col); err != nil {
				return nil, err
			}
		}
		txns = append(txns, txn)
	}

	inRange := txns[:0:0]
	for _, txn := range txns {
		if opts.inRange(txn.Date) {
			inRange = append(inRange, txn)
		}
	}
	if skipped := len(txns) - len(inRange); skipped > 0 {
		opts.logger().Debug("Ignoring investment transactions outside import date range",
			log.FieldReport, raw.Path, log.FieldCount, skipped)
	}

	slices.SortStableFunc(inRange, func(a, b core.InvTxn) int {
		return a.Date.Compare(b.Date.Time)
	})
	for i := range inRange {
		inRange[i].N = i + 1
	}

	rep := &Report{InvTxns: inRange}
	if len(inRange) == 0 {
		rep.Skipped = len(txns) > 0
	}
	_, rep.AsOf = invDateRange(inRange)
	return rep, nil
}

func invDateRange(txns []core.InvTxn) (core.Date, core.Date) {
	var lo, hi core.Date
	for _, t := range txns {
		lo = core.MinDate(lo, t.Date)
		hi = core.MaxDate(hi, t.Date)
	}
	return lo, hi
}
