package workbook

import (
	"cmp"
	"slices"
	"strings"

	"mnyxls/internal/consolidate"
	"mnyxls/internal/core"
	"mnyxls/internal/expand"
	"mnyxls/internal/selection"
)

// Transaction sheet columns, in display order.
const (
	ColN           = "N"
	ColNum         = "Num"
	ColDate        = "Date"
	ColAccount     = "Account"
	ColPayee       = "Payee"
	ColCategory    = "Category"
	ColSubcategory = "Subcategory"
	ColXferAccount = "XferAccount"
	ColAmount      = "Amount"
	ColTxnType     = "TxnType"
	ColTxnClass    = "TxnClass"
	ColMemo        = "Memo"
	ColSplit       = "Split"
	ColCleared     = "C"
)

var TxnColumns = []string{
	ColN, ColNum, ColDate, ColAccount, ColPayee, ColCategory, ColSubcategory,
	ColXferAccount, ColAmount, ColTxnType, ColTxnClass, ColMemo, ColSplit, ColCleared,
}

var txnCell = map[string]func(t *core.Txn) any{
	ColN:           func(t *core.Txn) any { return t.N },
	ColNum:         func(t *core.Txn) any { return t.Num },
	ColDate:        func(t *core.Txn) any { return t.Date },
	ColAccount:     func(t *core.Txn) any { return t.Account },
	ColPayee:       func(t *core.Txn) any { return t.Payee },
	ColCategory:    func(t *core.Txn) any { return t.Category },
	ColSubcategory: func(t *core.Txn) any { return t.Subcategory },
	ColXferAccount: func(t *core.Txn) any { return t.XferAccount },
	ColAmount:      func(t *core.Txn) any { return t.Amount },
	ColTxnType:     func(t *core.Txn) any { return string(t.Type) },
	ColTxnClass:    func(t *core.Txn) any { return string(t.Class) },
	ColMemo:        func(t *core.Txn) any { return t.Memo },
	ColSplit:       func(t *core.Txn) any { return t.Split },
	ColCleared:     func(t *core.Txn) any { return t.Cleared },
}

// redundantColumns are dropped when the selection or the foreach group fixes
// them and every row agrees.
var redundantColumns = map[string]string{
	selection.KeyAccount:  ColAccount,
	selection.KeyTxnClass: ColTxnClass,
	selection.KeyTxnType:  ColTxnType,
}

// columnFilter is the parsed "columns" directive. A name includes the
// column, a "!"-prefixed name excludes it.
type columnFilter struct {
	include []string
	exclude []string
}

func parseColumns(values []string, directive string) (columnFilter, error) {
	var f columnFilter
	for _, v := range values {
		name, excluded := strings.CutPrefix(strings.TrimSpace(v), "!")
		i := slices.IndexFunc(TxnColumns, func(c string) bool { return strings.EqualFold(c, name) })
		if i < 0 {
			return f, core.NewConfigError(directive, "unknown column '%s'; must be one of %s", name, strings.Join(TxnColumns, ", "))
		}
		if excluded {
			f.exclude = append(f.exclude, TxnColumns[i])
		} else {
			f.include = append(f.include, TxnColumns[i])
		}
	}
	return f, nil
}

func (f columnFilter) keep(column string) bool {
	if slices.Contains(f.exclude, column) {
		return false
	}
	return len(f.include) == 0 || slices.Contains(f.include, column)
}

// txnsSheet lists transactions. group is the foreach value the rows share.
func txnsSheet(p *plan, name string, txns []core.Txn, group string) (core.Sheet, error) {
	drop := map[string]bool{}
	if p.ws.Consolidate != "" {
		var err error
		if txns, err = consolidate.Consolidate(txns, p.ws.Consolidate); err != nil {
			return core.Sheet{}, err
		}
		for _, c := range []string{ColNum, ColPayee, ColMemo, ColSplit, ColCleared} {
			drop[c] = true
		}
	} else {
		txns = slices.Clone(txns)
	}

	txnType, ok := selection.SingleValue(p.sel, selection.KeyTxnType)
	if p.dim != nil && p.dim.Name == expand.DimTxnType {
		txnType, ok = group, true
	}
	if ok {
		if strings.EqualFold(txnType, string(core.TxnTypeTransfer)) {
			drop[ColSubcategory] = true
		} else {
			drop[ColXferAccount] = true
		}
	}

	slices.SortStableFunc(txns, compareTxnRows)
	for i := range txns {
		txns[i].N = i + 1
	}

	fixed := map[string]bool{}
	for key, col := range redundantColumns {
		if _, ok := p.sel[key]; ok {
			fixed[col] = true
		}
		if p.dim != nil && p.dim.Name == key {
			fixed[col] = true
		}
	}

	var columns []string
	for _, c := range TxnColumns {
		if drop[c] || !p.columns.keep(c) {
			continue
		}
		if fixed[c] && uniform(txns, txnCell[c]) {
			continue
		}
		columns = append(columns, c)
	}

	rows := make([][]any, len(txns))
	for i := range txns {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = txnCell[c](&txns[i])
		}
		rows[i] = row
	}
	return core.Sheet{Name: name, Columns: columns, Rows: rows}, nil
}

// compareTxnRows orders by date, category, subcategory, payee, account, N.
func compareTxnRows(a, b core.Txn) int {
	if c := a.Date.Compare(b.Date.Time); c != 0 {
		return c
	}
	return cmp.Or(
		strings.Compare(a.Category, b.Category),
		strings.Compare(a.Subcategory, b.Subcategory),
		strings.Compare(a.Payee, b.Payee),
		strings.Compare(a.Account, b.Account),
		cmp.Compare(a.N, b.N),
	)
}

// uniform reports whether every transaction has the same value for cell.
func uniform(txns []core.Txn, cell func(*core.Txn) any) bool {
	for i := 1; i < len(txns); i++ {
		if cell(&txns[i]) != cell(&txns[0]) {
			return false
		}
	}
	return true
}
