package workbook

import (
	"slices"
	"strings"

	"mnyxls/internal/core"
	"mnyxls/internal/expand"
	"mnyxls/internal/pivot"
	"mnyxls/internal/reconcile"
	"mnyxls/internal/selection"

	"github.com/shopspring/decimal"
)

// TotalLabel heads the pivot margins.
const TotalLabel = "Total"

var (
	AccountColumns = []string{
		"Account", "AccountClassification", "AccountCategory", "Abbreviation", "BankName",
		"AccountNumber", "AccountLimit", "OpeningBalance", "TxnDateMin", "TxnDateMax",
		"OpenedDate", "ClosedDate",
	}
	CategoryColumns    = []string{"Category", "Subcategory", "TxnType", "TxnClass", "TxnDateMin", "TxnDateMax"}
	NakedColumns       = []string{"These categories have transactions not assigned a subcategory"}
	SinglePayeeColumns = []string{"CategorySubcategory", "Payee"}
)

// pivotSheet renders a pivot table with a Total column and a Total row.
func pivotSheet(p *plan, name string, txns []core.Txn, eras []string) core.Sheet {
	tbl := pivot.Build(txns, p.pivot, eras)
	s := core.Sheet{Name: name, IndexColumns: len(tbl.RowDims)}
	for _, d := range tbl.RowDims {
		s.Columns = append(s.Columns, pivot.Header(d))
	}
	if !p.pivot.TotalOnly {
		for _, col := range tbl.Columns {
			s.Columns = append(s.Columns, strings.Join(col, " "))
		}
	}
	s.Columns = append(s.Columns, TotalLabel)
	if tbl.Empty() {
		return s
	}

	for r, row := range tbl.Rows {
		cells := make([]any, 0, len(s.Columns))
		for _, v := range row {
			cells = append(cells, v)
		}
		if !p.pivot.TotalOnly {
			for _, v := range tbl.Cells[r] {
				cells = append(cells, v)
			}
		}
		s.Rows = append(s.Rows, append(cells, tbl.RowTotals[r]))
	}

	total := make([]any, 0, len(s.Columns))
	total = append(total, TotalLabel)
	for range tbl.RowDims[1:] {
		total = append(total, "")
	}
	if !p.pivot.TotalOnly {
		for _, v := range tbl.ColumnTotals {
			total = append(total, v)
		}
	}
	s.Rows = append(s.Rows, append(total, tbl.GrandTotal))
	return s
}

// accountAsTxn lets the selection engine filter accounts.
func accountAsTxn(a core.Account) core.Txn {
	return core.Txn{Account: a.Name, AccountCategory: a.Category, AccountClassification: a.Classification}
}

func (b *Builder) accountSheets(p *plan, snap *reconcile.Snapshot) ([]core.Sheet, error) {
	var accounts []core.Account
	for _, a := range snap.Accounts {
		t := accountAsTxn(a)
		if p.pred.Match(&t) {
			accounts = append(accounts, a)
		}
	}

	hidden := map[string]bool{}
	if _, ok := p.sel[selection.KeyAccountCategory]; ok {
		hidden["AccountCategory"] = true
	}
	if _, ok := p.sel[selection.KeyAccountClassification]; ok {
		hidden["AccountClassification"] = true
	}
	if p.dim == nil {
		return []core.Sheet{accountsSheet(p.ws.Name, accounts, hidden)}, nil
	}

	switch p.dim.Name {
	case expand.DimAccountCategory:
		hidden["AccountCategory"] = true
	case expand.DimAccountClassification:
		hidden["AccountClassification"] = true
	}
	groups, err := p.dim.PartitionAccounts(accounts, b.known(p, snap))
	if err != nil {
		return nil, err
	}
	sheets := make([]core.Sheet, len(groups))
	for i, g := range groups {
		sheets[i] = accountsSheet(p.dim.SheetName(p.ws.Name, g.Value), g.Items, hidden)
	}
	return sheets, nil
}

func accountsSheet(name string, accounts []core.Account, hidden map[string]bool) core.Sheet {
	s := core.Sheet{Name: name}
	var keep []int
	for i, c := range AccountColumns {
		if !hidden[c] {
			keep = append(keep, i)
			s.Columns = append(s.Columns, c)
		}
	}
	for _, a := range accounts {
		all := []any{
			a.Name, string(a.Classification), a.Category, a.Abbreviation, a.BankName,
			a.AccountNumber, nullDecimal(a.Limit), nullDecimal(a.OpeningBalance),
			date(a.TxnDateMin), date(a.TxnDateMax), date(a.OpenedDate), date(a.ClosedDate),
		}
		row := make([]any, len(keep))
		for j, i := range keep {
			row[j] = all[i]
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

// categoryAsTxn lets the selection engine filter categories.
func categoryAsTxn(c core.Category, i int) core.Txn {
	return core.Txn{N: i, Category: c.Category, Subcategory: c.Subcategory, Type: c.Type, Class: c.Class}
}

func (b *Builder) categorySheets(p *plan, snap *reconcile.Snapshot) []core.Sheet {
	var pseudo []core.Txn
	for i, c := range snap.Categories {
		t := categoryAsTxn(c, i)
		if p.pred.Match(&t) {
			pseudo = append(pseudo, t)
		}
	}
	if p.dim == nil {
		return []core.Sheet{categoriesSheet(p.ws.Name, pseudo, snap)}
	}
	groups := p.dim.Partition(pseudo, b.known(p, snap))
	sheets := make([]core.Sheet, len(groups))
	for i, g := range groups {
		sheets[i] = categoriesSheet(p.dim.SheetName(p.ws.Name, g.Value), g.Items, snap)
	}
	return sheets
}

func categoriesSheet(name string, pseudo []core.Txn, snap *reconcile.Snapshot) core.Sheet {
	s := core.Sheet{Name: name, Columns: CategoryColumns}
	for _, t := range pseudo {
		c := snap.Categories[t.N]
		s.Rows = append(s.Rows, []any{
			c.Category, c.Subcategory, string(c.Type), string(c.Class), date(c.TxnDateMin), date(c.TxnDateMax),
		})
	}
	return s
}

// nakedCategoriesSheet lists categories that have subcategories but also
// carry transactions posted to the bare category.
func nakedCategoriesSheet(name string, txns []core.Txn, snap *reconcile.Snapshot) core.Sheet {
	var cats []string
	for _, t := range txns {
		if t.IsTransfer() || t.Subcategory != "" || !snap.HasSubcategories(t.Category) {
			continue
		}
		if !slices.Contains(cats, t.Category) {
			cats = append(cats, t.Category)
		}
	}
	slices.Sort(cats)

	s := core.Sheet{Name: name, Columns: NakedColumns}
	for _, c := range cats {
		s.Rows = append(s.Rows, []any{c})
	}
	return s
}

// singlePayeeSheet lists categories whose transactions all name the same
// payee.
func singlePayeeSheet(name string, txns []core.Txn) core.Sheet {
	payees := map[string][]string{}
	for _, t := range txns {
		key := t.CategorySubcategory()
		if key == "" || t.Payee == "" {
			continue
		}
		if !slices.Contains(payees[key], t.Payee) {
			payees[key] = append(payees[key], t.Payee)
		}
	}
	var keys []string
	for k, p := range payees {
		if len(p) == 1 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	s := core.Sheet{Name: name, Columns: SinglePayeeColumns}
	for _, k := range keys {
		s.Rows = append(s.Rows, []any{k, payees[k][0]})
	}
	return s
}

func nullDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal
}

func date(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d
}
