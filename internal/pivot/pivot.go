// Package pivot cross-tabulates transactions: amounts are summed per row key
// and column key, with row and column totals.
package pivot

import (
	"slices"
	"strconv"
	"strings"

	"mnyxls/internal/core"

	"github.com/shopspring/decimal"
)

// Key is one tuple of dimension values.
type Key []string

func (k Key) id() string { return strings.Join(k, "\x00") }

// Table is a pivoted result. Cells[r][c] belongs to Rows[r] and Columns[c];
// combinations without transactions are zero.
type Table struct {
	RowDims    []string
	ColumnDims []string
	Rows       []Key
	Columns    []Key
	Cells      [][]decimal.Decimal

	RowTotals    []decimal.Decimal
	ColumnTotals []decimal.Decimal
	GrandTotal   decimal.Decimal
}

// Empty reports whether no transaction contributed to the table.
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}

// Value extracts dim from a transaction.
func Value(dim string, t *core.Txn) string {
	switch dim {
	case Era:
		return t.Era
	case AccountClassification:
		return string(t.AccountClassification)
	case AccountCategory:
		return t.AccountCategory
	case Account:
		return t.Account
	case TxnType:
		return string(t.Type)
	case TxnClass:
		return string(t.Class)
	case Category:
		return t.Category
	case CategorySubcategory:
		return t.CategorySubcategory()
	case Subcategory:
		return t.Subcategory
	case Payee:
		return t.Payee
	case YYYY:
		return strconv.Itoa(t.Date.Year())
	case YYYYMM:
		return t.Date.YYYYMM()
	}
	return ""
}

// Build pivots txns. eras gives the display order of era values; eras sort
// by date rather than by name.
func Build(txns []core.Txn, opts Options, eras []string) *Table {
	tbl := &Table{RowDims: opts.Rows, ColumnDims: opts.Columns}

	rowIndex := map[string]int{}
	colIndex := map[string]int{}
	type cell struct{ row, col string }
	sums := map[cell]decimal.Decimal{}

	for i := range txns {
		t := &txns[i]
		row := keyOf(opts.Rows, t)
		col := keyOf(opts.Columns, t)
		if _, ok := rowIndex[row.id()]; !ok {
			rowIndex[row.id()] = len(tbl.Rows)
			tbl.Rows = append(tbl.Rows, row)
		}
		if _, ok := colIndex[col.id()]; !ok {
			colIndex[col.id()] = len(tbl.Columns)
			tbl.Columns = append(tbl.Columns, col)
		}
		c := cell{row.id(), col.id()}
		sums[c] = sums[c].Add(t.Amount)
	}

	order := keyOrder(opts.Rows, eras)
	slices.SortFunc(tbl.Rows, order)
	slices.SortFunc(tbl.Columns, keyOrder(opts.Columns, eras))

	tbl.Cells = make([][]decimal.Decimal, len(tbl.Rows))
	tbl.RowTotals = make([]decimal.Decimal, len(tbl.Rows))
	tbl.ColumnTotals = make([]decimal.Decimal, len(tbl.Columns))
	for r, row := range tbl.Rows {
		tbl.Cells[r] = make([]decimal.Decimal, len(tbl.Columns))
		for c, col := range tbl.Columns {
			v := sums[cell{row.id(), col.id()}]
			tbl.Cells[r][c] = v
			tbl.RowTotals[r] = tbl.RowTotals[r].Add(v)
			tbl.ColumnTotals[c] = tbl.ColumnTotals[c].Add(v)
			tbl.GrandTotal = tbl.GrandTotal.Add(v)
		}
	}
	return tbl
}

func keyOf(dims []string, t *core.Txn) Key {
	k := make(Key, len(dims))
	for i, d := range dims {
		k[i] = Value(d, t)
	}
	return k
}

// keyOrder compares keys element by element. Eras compare by their position
// in eras; unknown eras sort after known ones.
func keyOrder(dims []string, eras []string) func(a, b Key) int {
	return func(a, b Key) int {
		for i, d := range dims {
			if a[i] == b[i] {
				continue
			}
			if d == Era {
				ia, ib := eraRank(eras, a[i]), eraRank(eras, b[i])
				if ia != ib {
					return ia - ib
				}
			}
			return strings.Compare(a[i], b[i])
		}
		return 0
	}
}

func eraRank(eras []string, name string) int {
	if i := slices.Index(eras, name); i >= 0 {
		return i
	}
	return len(eras)
}
