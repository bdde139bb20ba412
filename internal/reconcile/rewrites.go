package reconcile

import (
	"fmt"

	"mnyxls/internal/config"
	"mnyxls/internal/core"
	"mnyxls/internal/log"
	"mnyxls/internal/selection"
)

// applyRewrites edits txns in place, one rule at a time in declaration
// order. A rule sees the edits of the rules before it.
func applyRewrites(txns []core.Txn, accounts *accountSet, cfg *config.Config, logger *log.Logger) error {
	if len(cfg.Rewrites) == 0 {
		return nil
	}
	var latest core.Date
	for _, t := range txns {
		latest = core.MaxDate(latest, t.Date)
	}

	for i, rw := range cfg.Rewrites {
		directive := fmt.Sprintf("rewrites.%d", i)
		sel, err := selection.Normalize(rw.Select, directive+".select")
		if err != nil {
			return err
		}
		if _, err := selection.Restrict(sel, sel, selection.RewriteKeys, directive+".select"); err != nil {
			return err
		}
		pred, err := selection.Compile(sel, selection.Env{Directive: directive + ".select", LatestTxnDate: latest, Logger: logger})
		if err != nil {
			return err
		}
		var date core.Date
		if rw.TxnDate != "" {
			if date, err = core.ParsePartialDate(rw.TxnDate, false); err != nil {
				return core.NewConfigError(directive+".txndate", "%v", err)
			}
		}

		n := 0
		for j := range txns {
			if pred.Match(&txns[j]) {
				rewrite(&txns[j], rw, date, accounts)
				n++
			}
		}
		logger.Debug("Applied rewrite", "rule", i, log.FieldCount, n)
	}
	return nil
}

func rewrite(t *core.Txn, rw config.Rewrite, date core.Date, accounts *accountSet) {
	if rw.Payee != "" {
		t.Payee = rw.Payee
	}
	if rw.Memo != nil {
		t.Memo = *rw.Memo
	}
	if !date.IsZero() {
		t.Date = date
	}
	if rw.Category != "" {
		key := core.SplitCategoryPair(rw.Category)
		t.Category, t.Subcategory, t.XferAccount = key.Category, key.Subcategory, ""
		if core.IsTransferCategory(t.Category) && t.Subcategory != "" {
			t.XferAccount, t.Subcategory = accounts.get(t.Subcategory).Name, ""
		}
	}
}
