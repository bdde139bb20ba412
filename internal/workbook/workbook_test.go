package workbook

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mnyxls/internal/config"
	"mnyxls/internal/core"
	"mnyxls/internal/reconcile"
	"mnyxls/internal/report"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txn(date core.Date, account, payee, category, amount string) core.Txn {
	key := core.SplitCategoryPair(category)
	t := core.Txn{
		Date:        date,
		Account:     account,
		Payee:       payee,
		Category:    key.Category,
		Subcategory: key.Subcategory,
		Amount:      decimal.RequireFromString(amount),
	}
	if core.IsTransferCategory(t.Category) {
		t.XferAccount, t.Subcategory = t.Subcategory, ""
	}
	return t
}

func baseConfig() *config.Config {
	return &config.Config{
		CategoryTypeDefault:  string(core.TxnTypeExpense),
		CategoryClassDefault: string(core.TxnClassDiscretionary),
		CategoryTypes:        map[string]config.StringList{"Income": {"Wages"}},
		Workers:              2,
	}
}

func snapshot(t *testing.T, cfg *config.Config) *reconcile.Snapshot {
	t.Helper()
	txns := &report.Report{
		Kind: report.KindTransactions,
		Txns: []core.Txn{
			txn(core.NewDate(2023, 1, 5), "Checking", "Shop", "Groceries", "-50"),
			txn(core.NewDate(2023, 2, 10), "Visa", "Market", "Groceries : Supermarket", "-30"),
			txn(core.NewDate(2023, 1, 31), "Checking", "Employer", "Wages", "2000"),
			txn(core.NewDate(2022, 6, 15), "Checking", "Bank", "Transfer To : Savings", "-100"),
			txn(core.NewDate(2023, 2, 12), "Checking", "Shop", "Groceries", "-20"),
		},
	}
	balances := &report.Report{
		Kind: report.KindBalances,
		Accounts: []report.AccountRecord{
			{Name: "Checking", Classification: core.Assets, Category: core.CategoryBankAndCash},
			{Name: "Visa", Classification: core.Liabilities, Category: core.CategoryCreditCards},
		},
	}
	snap, err := reconcile.New(cfg, nil).Reconcile(context.Background(), []*report.Report{txns, balances})
	require.NoError(t, err)
	return snap
}

func build(t *testing.T, cfg *config.Config, worksheets ...config.Worksheet) ([]core.Sheet, error) {
	t.Helper()
	snap := snapshot(t, cfg)
	cfg.Workbook.Worksheets = worksheets
	return New(cfg, nil).Build(context.Background(), snap)
}

func names(sheets []core.Sheet) []string {
	out := make([]string, len(sheets))
	for i, s := range sheets {
		out[i] = s.Name
	}
	return out
}

func column(t *testing.T, s core.Sheet, name string) []any {
	t.Helper()
	i := -1
	for j, c := range s.Columns {
		if c == name {
			i = j
		}
	}
	require.GreaterOrEqual(t, i, 0, "column %s in %v", name, s.Columns)
	out := make([]any, len(s.Rows))
	for r, row := range s.Rows {
		out[r] = row[i]
	}
	return out
}

func requireConfigError(t *testing.T, err error, directive string) {
	t.Helper()
	var ce *core.ConfigurationError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, directive, ce.Directive)
}

func TestDefaultWorkbook(t *testing.T) {
	sheets, err := build(t, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"Accounts", "Transfer", "Expense", "Income", "Category by year"}, names(sheets))

	accounts := sheets[0]
	assert.Equal(t, config.SheetAccounts, accounts.Type)
	assert.Equal(t, []any{"Checking", "Savings", "Visa"}, column(t, accounts, "Account"))

	transfers := sheets[1]
	assert.NotContains(t, transfers.Columns, ColSubcategory)
	assert.NotContains(t, transfers.Columns, ColTxnType)
	assert.Equal(t, []any{"Savings"}, column(t, transfers, ColXferAccount))

	expenses := sheets[2]
	assert.NotContains(t, expenses.Columns, ColXferAccount)
	assert.NotContains(t, expenses.Columns, ColTxnType)
	assert.Contains(t, expenses.Columns, ColAccount)
	assert.Equal(t, []any{1, 2, 3}, column(t, expenses, ColN))
	assert.Equal(t, []any{"Shop", "Market", "Shop"}, column(t, expenses, ColPayee))
}

func TestPivotSheet(t *testing.T) {
	sheets, err := build(t, baseConfig(), config.Worksheet{
		Name:      "By year",
		SheetType: config.SheetTxnsPivot,
		Select:    config.Select{"yyyy": {"2023"}},
		Options:   config.Options{Rows: config.StringList{"category"}, Columns: config.StringList{"yyyy"}},
	})
	require.NoError(t, err)
	require.Len(t, sheets, 1)

	s := sheets[0]
	assert.Equal(t, []string{"Category", "2023", TotalLabel}, s.Columns)
	assert.Equal(t, 1, s.IndexColumns)
	require.Len(t, s.Rows, 3)
	assert.Equal(t, []any{"Groceries", "Wages", TotalLabel}, column(t, s, "Category"))
	for i, want := range []string{"-100", "2000", "1900"} {
		assert.True(t, decimal.RequireFromString(want).Equal(s.Rows[i][1].(decimal.Decimal)), "row %d", i)
		assert.True(t, decimal.RequireFromString(want).Equal(s.Rows[i][2].(decimal.Decimal)), "row %d", i)
	}
}

func TestConsolidatedSheet(t *testing.T) {
	sheets, err := build(t, baseConfig(), config.Worksheet{
		Name:        "Monthly",
		SheetType:   config.SheetTxns,
		Select:      config.Select{"account": {"Checking"}, "txntype": {"Expense"}},
		Consolidate: "yyyymm",
	})
	require.NoError(t, err)
	require.Len(t, sheets, 1)

	s := sheets[0]
	assert.Equal(t, []string{ColN, ColDate, ColCategory, ColSubcategory, ColAmount, ColTxnClass}, s.Columns)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, core.NewDate(2023, 1, 1), s.Rows[0][1])
	assert.True(t, decimal.NewFromInt(-50).Equal(s.Rows[0][4].(decimal.Decimal)))
	assert.True(t, decimal.NewFromInt(-20).Equal(s.Rows[1][4].(decimal.Decimal)))
}

func TestColumnsDirective(t *testing.T) {
	sheets, err := build(t, baseConfig(), config.Worksheet{
		Name: "Short", SheetType: config.SheetTxns, Columns: config.StringList{"date", "payee", "amount"},
	}, config.Worksheet{
		Name: "No memo", SheetType: config.SheetTxns, Columns: config.StringList{"!Memo", "!C"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ColDate, ColPayee, ColAmount}, sheets[0].Columns)
	assert.NotContains(t, sheets[1].Columns, ColMemo)
	assert.NotContains(t, sheets[1].Columns, ColCleared)
	assert.Contains(t, sheets[1].Columns, ColN)

	_, err = build(t, baseConfig(), config.Worksheet{Name: "Bad", SheetType: config.SheetTxns, Columns: config.StringList{"Colour"}})
	requireConfigError(t, err, "workbook.worksheets.Bad.columns")
}

func TestSkipEmpty(t *testing.T) {
	nobody := config.Select{"payee": {"Nobody"}}
	off := false

	sheets, err := build(t, baseConfig(),
		config.Worksheet{Name: "Skipped", SheetType: config.SheetTxns, Select: nobody},
		config.Worksheet{Name: "Kept", SheetType: config.SheetTxns, Select: nobody, SkipEmpty: &off},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"Kept"}, names(sheets))
	assert.True(t, sheets[0].Empty())
	assert.NotEmpty(t, sheets[0].Columns)
}

func TestForeachKnownValues(t *testing.T) {
	off := false
	cfg := baseConfig()
	cfg.Eras = config.Eras{
		{Name: "Old", DateFrom: "2000", DateTo: "2001"},
		{Name: "New", DateFrom: "2022", DateTo: config.OpenEnded},
	}
	sheets, err := build(t, cfg, config.Worksheet{
		Name: "Era {{foreach}}", SheetType: config.SheetTxns, Foreach: "era", SkipEmpty: &off,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Era New", "Era Old"}, names(sheets))
	assert.True(t, sheets[1].Empty())
}

func TestForeachAccounts(t *testing.T) {
	sheets, err := build(t, baseConfig(), config.Worksheet{
		Name: "{{foreach}} accounts", SheetType: config.SheetAccounts, Foreach: "account_classification",
		Select: config.Select{"account_classification": {"Assets", "Liabilities"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Assets accounts", "Liabilities accounts"}, names(sheets))
	assert.NotContains(t, sheets[0].Columns, "AccountClassification")
	assert.Equal(t, []any{"Checking"}, column(t, sheets[0], "Account"))
}

func TestCategoryListings(t *testing.T) {
	sheets, err := build(t, baseConfig(),
		config.Worksheet{Name: "Income categories", SheetType: config.SheetCategories, Select: config.Select{"type": {"Income"}}},
		config.Worksheet{Name: "Naked", SheetType: config.SheetCategoriesNaked},
		config.Worksheet{Name: "Single payee", SheetType: config.SheetCategoriesSinglePayee},
	)
	require.NoError(t, err)
	require.Len(t, sheets, 3)

	assert.Equal(t, []any{"Wages"}, column(t, sheets[0], "Category"))
	assert.Equal(t, []any{"Income"}, column(t, sheets[0], "TxnClass"))
	assert.Equal(t, [][]any{{"Groceries"}}, sheets[1].Rows)
	assert.Equal(t, []any{"Groceries", "Groceries : Supermarket", "Wages"}, column(t, sheets[2], "CategorySubcategory"))
	assert.Equal(t, []any{"Shop", "Market", "Employer"}, column(t, sheets[2], "Payee"))
}

func TestWorkbookSelect(t *testing.T) {
	cfg := baseConfig()
	cfg.Workbook.Select = config.Select{"yyyy": {"2023"}}
	sheets, err := build(t, cfg,
		config.Worksheet{Name: "Accounts", SheetType: config.SheetAccounts},
		config.Worksheet{Name: "Txns", SheetType: config.SheetTxns},
		config.Worksheet{Name: "Old", SheetType: config.SheetTxns, Select: config.Select{"yyyy": {"2022"}}},
	)
	require.NoError(t, err)
	assert.Len(t, sheets[0].Rows, 3, "accounts ignore inherited yyyy")
	assert.Len(t, sheets[1].Rows, 4)
	assert.Len(t, sheets[2].Rows, 1)

	cfg = baseConfig()
	cfg.Workbook.Select = config.Select{"payee": {"Shop"}}
	_, err = build(t, cfg, config.Worksheet{Name: "Txns", SheetType: config.SheetTxns})
	requireConfigError(t, err, "workbook.select.payee")
}

func TestConfigurationErrors(t *testing.T) {
	yes := true
	tests := []struct {
		name       string
		worksheets []config.Worksheet
		directive  string
	}{
		{"sheet type", []config.Worksheet{{Name: "X", SheetType: "chart"}}, "workbook.worksheets.X.sheet_type"},
		{"criterion scope", []config.Worksheet{{Name: "A", SheetType: config.SheetAccounts, Select: config.Select{"payee": {"Shop"}}}}, "workbook.worksheets.A.select.payee"},
		{"foreach dimension", []config.Worksheet{{Name: "A", SheetType: config.SheetAccounts, Foreach: "yyyy"}}, "workbook.worksheets.A.foreach"},
		{"unknown foreach", []config.Worksheet{{Name: "T", SheetType: config.SheetTxns, Foreach: "payee"}}, "workbook.worksheets.T.foreach"},
		{"pivot overlap", []config.Worksheet{{Name: "P", SheetType: config.SheetTxnsPivot, Options: config.Options{Rows: config.StringList{"yyyy"}}}}, "workbook.worksheets.P.options"},
		{"consolidate scope", []config.Worksheet{{Name: "P", SheetType: config.SheetTxnsPivot, Consolidate: "yyyymm"}}, "workbook.worksheets.P.consolidate"},
		{"use_existing twice", []config.Worksheet{
			{Name: "Data", SheetType: config.SheetTxns, UseExisting: &yes},
			{Name: "DATA", SheetType: config.SheetAccounts, UseExisting: &yes},
		}, "workbook.worksheets.DATA.use_existing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(t, baseConfig(), tt.worksheets...)
			requireConfigError(t, err, tt.directive)
		})
	}
}

func TestTooManySheets(t *testing.T) {
	var worksheets []config.Worksheet
	for i := 0; i <= MaxSheets; i++ {
		worksheets = append(worksheets, config.Worksheet{Name: fmt.Sprintf("S%d", i), SheetType: config.SheetAccounts})
	}
	_, err := build(t, baseConfig(), worksheets...)
	requireConfigError(t, err, "workbook.worksheets")
}

func TestSheetNames(t *testing.T) {
	sheets, err := build(t, baseConfig(),
		config.Worksheet{Name: "Txns", SheetType: config.SheetTxns},
		config.Worksheet{Name: "TXNS", SheetType: config.SheetAccounts},
		config.Worksheet{Name: "a/b:c", SheetType: config.SheetAccounts},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"Txns", "TXNS (2)", "a_b_c"}, names(sheets))

	tests := []struct{ in, want string }{
		{"Spending [2023]", "Spending _2023_"},
		{"  ", "Sheet"},
		{"An unusually long worksheet name here", "An unusually long worksheet ..."},
	}
	for _, tt := range tests {
		got := SafeSheetName(tt.in)
		assert.Equal(t, tt.want, got)
		assert.LessOrEqual(t, len([]rune(got)), MaxSheetName)
	}

	n := newSheetNames()
	long := "Exactly thirty-one characters!!"
	assert.Equal(t, long, n.unique(long))
	assert.Equal(t, "Exactly thirty-one characte (2)", n.unique(long))
}
