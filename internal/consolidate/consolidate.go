// Package consolidate collapses transactions into one synthetic row per
// account, category and period.
package consolidate

import (
	"fmt"
	"slices"

	"mnyxls/internal/core"
)

// Granularities supported by Consolidate.
const (
	YYYYMM = "yyyymm"
)

type groupKey struct {
	account     string
	category    core.CategoryKey
	xferAccount string
	txnType     core.TxnType
	txnClass    core.TxnClass
	period      string
}

// Consolidate sums txns per (account, category, subcategory, transfer account,
// type, class, period). Each group becomes one transaction dated on the first
// day of its period. Payee, memo, number, split and cleared flags do not
// survive. Rows are ordered by period, then by first appearance, and N is
// renumbered from 1.
func Consolidate(txns []core.Txn, granularity string) ([]core.Txn, error) {
	if granularity != YYYYMM {
		return nil, fmt.Errorf("unsupported consolidation '%s'; must be %s", granularity, YYYYMM)
	}

	index := map[groupKey]int{}
	var out []core.Txn
	for _, t := range txns {
		k := groupKey{
			account:     t.Account,
			category:    t.CategoryKey(),
			xferAccount: t.XferAccount,
			txnType:     t.Type,
			txnClass:    t.Class,
			period:      t.Date.YYYYMM(),
		}
		if i, ok := index[k]; ok {
			out[i].Amount = out[i].Amount.Add(t.Amount)
			continue
		}
		index[k] = len(out)
		out = append(out, core.Txn{
			Date:                  t.Date.FirstOfMonth(),
			Account:               t.Account,
			Category:              t.Category,
			Subcategory:           t.Subcategory,
			XferAccount:           t.XferAccount,
			Amount:                t.Amount,
			Type:                  t.Type,
			Class:                 t.Class,
			Era:                   t.Era,
			AccountCategory:       t.AccountCategory,
			AccountClassification: t.AccountClassification,
			Source:                t.Source,
		})
	}

	slices.SortStableFunc(out, func(a, b core.Txn) int {
		return a.Date.Compare(b.Date.Time)
	})
	for i := range out {
		out[i].N = i + 1
	}
	return out, nil
}
