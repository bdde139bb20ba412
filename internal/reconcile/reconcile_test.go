package reconcile

import (
	"context"
	"errors"
	"testing"

	"mnyxls/internal/config"
	"mnyxls/internal/core"
	"mnyxls/internal/report"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txn(date core.Date, account, payee, category string, amount string) core.Txn {
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
	}
}

func txnReport() *report.Report {
	return &report.Report{
		Kind: report.KindTransactions,
		Txns: []core.Txn{
			txn(core.NewDate(2023, 1, 31), "Checking", "Employer", "Wages", "2000"),
			txn(core.NewDate(2023, 1, 5), "checking", "Shop", "Food : Groceries", "-50"),
			txn(core.NewDate(2022, 12, 1), "Visa", "Cafe", "Food : Dining", "-20"),
			txn(core.NewDate(2023, 1, 3), "Checking", "Bank", "Transfer To : Savings", "-100"),
		},
	}
}

func balancesReport() *report.Report {
	return &report.Report{
		Kind: report.KindBalances,
		Accounts: []report.AccountRecord{
			{Name: "Checking", Classification: core.Assets, Category: core.CategoryBankAndCash},
			{Name: "Visa", Classification: core.Liabilities, Category: core.CategoryCreditCards},
		},
	}
}

func run(t *testing.T, cfg *config.Config, reports ...*report.Report) *Snapshot {
	t.Helper()
	snap, err := New(cfg, nil).Reconcile(context.Background(), reports)
	require.NoError(t, err)
	return snap
}

func TestPartialAccountMerge(t *testing.T) {
	p := PartialAccount{Name: "Checking", Category: core.CategoryBankAndCash}
	p.Merge(PartialAccount{
		Name:           "CHECKING",
		Classification: core.Assets,
		Category:       core.CategoryOtherAssets,
		BankName:       "First Bank",
		Limit:          decimal.NewNullDecimal(decimal.NewFromInt(100)),
	})
	assert.Equal(t, "Checking", p.Name)
	assert.Equal(t, core.Assets, p.Classification)
	assert.Equal(t, core.CategoryBankAndCash, p.Category)
	assert.Equal(t, "First Bank", p.BankName)
	assert.True(t, p.Limit.Valid)

	p.Merge(PartialAccount{BankName: "Other Bank"})
	assert.Equal(t, "First Bank", p.BankName)
}

func TestReconcileAccounts(t *testing.T) {
	snap := run(t, baseConfig(), txnReport(), balancesReport())

	require.Len(t, snap.Accounts, 3)
	names := []string{snap.Accounts[0].Name, snap.Accounts[1].Name, snap.Accounts[2].Name}
	assert.Equal(t, []string{"Checking", "Savings", "Visa"}, names)

	checking, ok := snap.Account("CHECKING")
	require.True(t, ok)
	assert.Equal(t, core.Assets, checking.Classification)
	assert.False(t, checking.XferOnly)
	assert.True(t, checking.TxnDateMin.Equal(core.NewDate(2023, 1, 3)))
	assert.True(t, checking.TxnDateMax.Equal(core.NewDate(2023, 1, 31)))

	savings, _ := snap.Account("Savings")
	assert.True(t, savings.XferOnly)
	assert.Equal(t, core.Undefined, savings.Classification)

	for _, txn := range snap.Txns {
		if txn.Payee == "Shop" {
			assert.Equal(t, "Checking", txn.Account)
			assert.Equal(t, core.CategoryBankAndCash, txn.AccountCategory)
			assert.Equal(t, core.Assets, txn.AccountClassification)
		}
	}
}

func TestReconcileReportPrecedence(t *testing.T) {
	first := &report.Report{Accounts: []report.AccountRecord{
		{Name: "Checking", BankName: "First Bank"},
		{Name: "Checking", BankName: "Replaced Bank", AccountNumber: "1"},
	}}
	second := &report.Report{Accounts: []report.AccountRecord{
		{Name: "checking", BankName: "Second Bank", Abbreviation: "CHK"},
	}}
	snap := run(t, baseConfig(), first, second)

	acct, ok := snap.Account("Checking")
	require.True(t, ok)
	assert.Equal(t, "Replaced Bank", acct.BankName)
	assert.Equal(t, "1", acct.AccountNumber)
	assert.Equal(t, "CHK", acct.Abbreviation)
}

func TestReconcileClassificationDefault(t *testing.T) {
	cfg := baseConfig()
	cfg.AccountClassificationDefault = "Assets"
	snap := run(t, cfg, txnReport())
	for _, a := range snap.Accounts {
		assert.Equal(t, core.Assets, a.Classification, a.Name)
	}
}

func TestReconcileAccountConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.AccountCategories = map[string]config.StringList{"Assets": {"Savings Accounts"}}
	cfg.Accounts = map[string]config.AccountConfig{
		"savings": {Category: "Savings Accounts", OpenedDate: "2020-02-01"},
		"Visa":    {Category: "Liabilities:Store Cards", ClosedDate: "2024-01-31"},
	}
	snap := run(t, cfg, txnReport(), balancesReport())

	savings, _ := snap.Account("Savings")
	assert.Equal(t, core.Assets, savings.Classification)
	assert.Equal(t, "Savings Accounts", savings.Category)
	assert.True(t, savings.OpenedDate.Equal(core.NewDate(2020, 2, 1)))

	visa, _ := snap.Account("Visa")
	assert.Equal(t, "Store Cards", visa.Category)
	assert.True(t, visa.Closed())
}

func TestReconcileAccountCategoryLookup(t *testing.T) {
	// Account categories learned from the balances report classify
	// accounts that only have a category.
	rep := &report.Report{Accounts: []report.AccountRecord{
		{Name: "Checking", Classification: core.Assets, Category: core.CategoryBankAndCash},
		{Name: "Cash", Category: core.CategoryBankAndCash},
	}}
	snap := run(t, baseConfig(), rep)
	cash, _ := snap.Account("Cash")
	assert.Equal(t, core.Assets, cash.Classification)
}

func TestReconcileConflicts(t *testing.T) {
	t.Run("explicit classification contradicts account category", func(t *testing.T) {
		cfg := baseConfig()
		cfg.AccountCategories = map[string]config.StringList{"Liabilities": {core.CategoryCreditCards}}
		cfg.Accounts = map[string]config.AccountConfig{"Visa": {Category: "Assets:Credit Cards"}}
		_, err := New(cfg, nil).Reconcile(context.Background(), []*report.Report{txnReport()})
		var re *core.ReconciliationError
		require.True(t, errors.As(err, &re), "got %v", err)
		assert.Equal(t, "Visa", re.Name)
		assert.Equal(t, "classification", re.Field)
	})

	t.Run("explicit classification contradicts balances report", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Accounts = map[string]config.AccountConfig{"Checking": {Category: "Liabilities:Bank and Cash Accounts"}}
		_, err := New(cfg, nil).Reconcile(context.Background(), []*report.Report{balancesReport()})
		var re *core.ReconciliationError
		require.True(t, errors.As(err, &re), "got %v", err)
		assert.Equal(t, "Checking", re.Name)
	})

	t.Run("category under both classifications", func(t *testing.T) {
		cfg := baseConfig()
		cfg.AccountCategories = map[string]config.StringList{"Assets": {core.CategoryCreditCards}}
		_, err := New(cfg, nil).Reconcile(context.Background(), []*report.Report{balancesReport()})
		var ce *core.ConfigurationError
		require.True(t, errors.As(err, &ce), "got %v", err)
		assert.Contains(t, ce.Msg, "Credit Cards")
	})
}

func TestReconcileConfigOverridesReportClassification(t *testing.T) {
	cfg := baseConfig()
	cfg.Accounts = map[string]config.AccountConfig{"Visa": {Category: "Assets:Other Assets"}}
	snap := run(t, cfg, balancesReport())

	visa, ok := snap.Account("Visa")
	require.True(t, ok)
	assert.Equal(t, core.Assets, visa.Classification)
	assert.Equal(t, core.CategoryOtherAssets, visa.Category)
}

func TestReconcileCategories(t *testing.T) {
	cfg := baseConfig()
	cfg.CategoryTypes = map[string]config.StringList{"Income": {"Wages"}}
	cfg.CategoryClasses = map[string]config.StringList{
		"Essential":     {"Food"},
		"Discretionary": {"Food:Dining"},
	}
	snap := run(t, cfg, txnReport())

	require.Len(t, snap.Categories, 3)
	assert.Equal(t, core.CategoryKey{Category: "Food", Subcategory: "Dining"}, snap.Categories[0].CategoryKey)

	groceries, ok := snap.Category(core.CategoryKey{Category: "Food", Subcategory: "Groceries"})
	require.True(t, ok)
	assert.Equal(t, core.TxnTypeExpense, groceries.Type)
	assert.Equal(t, core.TxnClassEssential, groceries.Class)

	dining, _ := snap.Category(core.CategoryKey{Category: "Food", Subcategory: "Dining"})
	assert.Equal(t, core.TxnClassDiscretionary, dining.Class)

	wages, _ := snap.Category(core.CategoryKey{Category: "Wages"})
	assert.Equal(t, core.TxnTypeIncome, wages.Type)
	assert.Equal(t, core.TxnClassIncome, wages.Class)

	assert.True(t, snap.HasSubcategories("Food"))
	assert.False(t, snap.HasSubcategories("Wages"))
	_, ok = snap.Category(core.CategoryKey{Category: "Transfer To"})
	assert.False(t, ok)
}

func TestReconcileCategoryTypesFromReports(t *testing.T) {
	spending := &report.Report{Categories: []report.CategoryRecord{
		{CategoryKey: core.CategoryKey{Category: "Wages"}, Type: core.TxnTypeIncome},
	}}
	cfg := baseConfig()
	cfg.CategoryClassDefault = "Essential"
	snap := run(t, cfg, txnReport(), spending)

	wages, _ := snap.Category(core.CategoryKey{Category: "Wages"})
	assert.Equal(t, core.TxnTypeIncome, wages.Type)
	groceries, _ := snap.Category(core.CategoryKey{Category: "Food", Subcategory: "Groceries"})
	assert.Equal(t, core.TxnClassEssential, groceries.Class)
}

func TestReconcileCategoryTypePrecedence(t *testing.T) {
	spending := func(types ...core.TxnType) *report.Report {
		rep := &report.Report{Kind: report.KindIncomeSpending}
		for _, typ := range types {
			rep.Categories = append(rep.Categories, report.CategoryRecord{
				CategoryKey: core.CategoryKey{Category: "Wages"}, Type: typ,
			})
		}
		return rep
	}
	wagesType := func(snap *Snapshot) core.TxnType {
		c, ok := snap.Category(core.CategoryKey{Category: "Wages"})
		require.True(t, ok)
		return c.Type
	}

	t.Run("later row within a report wins", func(t *testing.T) {
		snap := run(t, baseConfig(), txnReport(), spending(core.TxnTypeExpense, core.TxnTypeIncome))
		assert.Equal(t, core.TxnTypeIncome, wagesType(snap))
	})

	t.Run("earlier report wins", func(t *testing.T) {
		snap := run(t, baseConfig(), txnReport(), spending(core.TxnTypeIncome), spending(core.TxnTypeExpense))
		assert.Equal(t, core.TxnTypeIncome, wagesType(snap))
	})

	t.Run("configuration beats reports", func(t *testing.T) {
		cfg := baseConfig()
		cfg.CategoryTypes = map[string]config.StringList{"Expense": {"Wages"}}
		snap := run(t, cfg, txnReport(), spending(core.TxnTypeIncome))
		assert.Equal(t, core.TxnTypeExpense, wagesType(snap))
	})
}

func TestReconcileTxns(t *testing.T) {
	cfg := baseConfig()
	cfg.Eras = config.Eras{
		{Name: "Before", DateTo: "2022"},
		{Name: "After", DateTo: config.OpenEnded},
	}
	snap := run(t, cfg, txnReport())

	require.Len(t, snap.Txns, 4)
	for i, txn := range snap.Txns {
		assert.Equal(t, i+1, txn.N)
	}
	assert.Equal(t, "Cafe", snap.Txns[0].Payee)
	assert.Equal(t, "Before", snap.Txns[0].Era)
	assert.Equal(t, "After", snap.Txns[1].Era)

	xfer := snap.Txns[1]
	assert.Equal(t, "Savings", xfer.XferAccount)
	assert.Equal(t, core.TxnTypeTransfer, xfer.Type)
	assert.Equal(t, core.TxnClassTransfer, xfer.Class)

	lo, hi := snap.TxnDateRange()
	assert.True(t, lo.Equal(core.NewDate(2022, 12, 1)))
	assert.True(t, hi.Equal(core.NewDate(2023, 1, 31)))

	require.Len(t, snap.Payees, 4)
	assert.Equal(t, "Bank", snap.Payees[0].Name)
}

func TestReconcileSkipsSkippedReports(t *testing.T) {
	skipped := txnReport()
	skipped.Skipped = true
	snap := run(t, baseConfig(), skipped)
	assert.Empty(t, snap.Txns)
	assert.Empty(t, snap.Accounts)
}

func TestReconcileBalancesAndLoans(t *testing.T) {
	d := core.NewDate(2023, 12, 31)
	first := &report.Report{
		Loans:           []core.Loan{{Account: "Mortgage", Length: "30 years"}},
		AccountBalances: []core.AccountBalance{{Account: "mortgage", Date: d, Balance: decimal.NewFromInt(100)}},
		Accounts:        []report.AccountRecord{{Name: "Mortgage", Classification: core.Liabilities, Category: core.CategoryLoans}},
	}
	second := &report.Report{
		Loans:           []core.Loan{{Account: "MORTGAGE", Length: "15 years"}},
		AccountBalances: []core.AccountBalance{{Account: "Mortgage", Date: d, Balance: decimal.NewFromInt(200)}},
	}
	snap := run(t, baseConfig(), first, second)

	require.Len(t, snap.Loans, 1)
	assert.Equal(t, "30 years", snap.Loans[0].Length)
	require.Len(t, snap.AccountBalances, 1)
	assert.Equal(t, "Mortgage", snap.AccountBalances[0].Account)
	assert.Equal(t, "100", snap.AccountBalances[0].Balance.String())
}

func TestResolveEras(t *testing.T) {
	cfg := baseConfig()
	cfg.Eras = config.Eras{
		{Name: "Later", DateFrom: "2020", DateTo: config.OpenEnded},
		{Name: "Early", DateFrom: "2019-12-31", DateTo: "2010-01-01"},
	}
	eras, err := ResolveEras(cfg)
	require.NoError(t, err)
	require.Len(t, eras, 2)
	assert.Equal(t, "Early", eras[0].Name)
	assert.True(t, eras[0].From.Equal(core.NewDate(2010, 1, 1)), eras[0].From.String())
	assert.True(t, eras[0].To.Equal(core.NewDate(2019, 12, 31)), eras[0].To.String())
	assert.True(t, eras[1].To.IsZero())

	cfg.Eras = config.Eras{
		{Name: "A", DateFrom: "2010", DateTo: "2015"},
		{Name: "B", DateFrom: "2014", DateTo: "2020"},
	}
	_, err = ResolveEras(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlapping")

	cfg.Eras = config.Eras{
		{Name: "A", DateTo: "2015"},
		{Name: "B", DateTo: "2020"},
	}
	eras, err = ResolveEras(cfg)
	require.NoError(t, err)
	assert.True(t, eras[1].From.Equal(core.NewDate(2016, 1, 1)))
}

func TestReconcileRewrites(t *testing.T) {
	empty := ""
	cfg := baseConfig()
	cfg.CategoryTypes = map[string]config.StringList{"Income": {"Salary"}}
	cfg.Rewrites = []config.Rewrite{
		{Select: config.Select{"payee": {"Employer"}}, Category: "Salary", Memo: &empty},
		{Select: config.Select{"category": {"Food:Dining"}, "amount": {"< -10"}}, Payee: "Restaurant", TxnDate: "2023-01-01"},
		{Select: config.Select{"payee": {"Shop"}}, Category: "Transfer To : Cash"},
		{Select: config.Select{"payee": {"Restaurant"}}, Memo: func() *string { s := "dinner"; return &s }()},
	}
	snap := run(t, cfg, txnReport())

	byPayee := map[string]core.Txn{}
	for _, txn := range snap.Txns {
		byPayee[txn.Payee] = txn
	}

	wages, ok := byPayee["Employer"]
	require.True(t, ok)
	assert.Equal(t, "Salary", wages.Category)
	assert.Equal(t, core.TxnTypeIncome, wages.Type)
	assert.Empty(t, wages.Memo)

	dining, ok := byPayee["Restaurant"]
	require.True(t, ok)
	assert.True(t, dining.Date.Equal(core.NewDate(2023, 1, 1)))
	assert.Equal(t, "dinner", dining.Memo)
	_, ok = byPayee["Cafe"]
	assert.False(t, ok)

	shop := byPayee["Shop"]
	assert.Equal(t, "Cash", shop.XferAccount)
	assert.Empty(t, shop.Subcategory)
	assert.Equal(t, core.TxnTypeTransfer, shop.Type)
	_, ok = snap.Account("Cash")
	assert.True(t, ok)

	_, ok = snap.Category(core.CategoryKey{Category: "Wages"})
	assert.False(t, ok)
	for i := 1; i < len(snap.Txns); i++ {
		assert.False(t, snap.Txns[i].Date.Before(snap.Txns[i-1].Date), "txns stay sorted by date")
	}
}

func TestReconcileRewriteErrors(t *testing.T) {
	tests := []struct {
		name    string
		rewrite config.Rewrite
		want    string
	}{
		{"unsupported criterion", config.Rewrite{Select: config.Select{"era": {"Old"}}, Payee: "X"}, "rewrites.0.select.era"},
		{"unknown criterion", config.Rewrite{Select: config.Select{"colour": {"red"}}, Payee: "X"}, "rewrites.0.select.colour"},
		{"empty values", config.Rewrite{Select: config.Select{"payee": {}}, Payee: "X"}, "rewrites.0.select.payee"},
		{"bad date", config.Rewrite{Select: config.Select{"payee": {"Shop"}}, TxnDate: "01/02/2023"}, "rewrites.0.txndate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Rewrites = []config.Rewrite{tt.rewrite}
			_, err := New(cfg, nil).Reconcile(context.Background(), []*report.Report{txnReport()})
			var ce *core.ConfigurationError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.want, ce.Directive)
		})
	}
}

func TestReconcileInvestmentTxns(t *testing.T) {
	first := &report.Report{
		Kind: report.KindInvTransactions,
		InvTxns: []core.InvTxn{
			{Date: core.NewDate(2023, 3, 31), Account: "brokerage", Activity: "Dividend"},
			{Date: core.NewDate(2023, 1, 15), Account: "Brokerage", Activity: "Deposit", XferAccount: "checking"},
		},
	}
	second := &report.Report{
		Kind: report.KindInvTransactions,
		InvTxns: []core.InvTxn{
			{Date: core.NewDate(2023, 2, 1), Account: "Brokerage", Activity: "Buy"},
		},
	}
	snap := run(t, baseConfig(), balancesReport(), first, second)

	require.Len(t, snap.InvTxns, 3)
	var activities []string
	for i, it := range snap.InvTxns {
		assert.Equal(t, i+1, it.N)
		assert.Equal(t, "Brokerage", it.Account)
		activities = append(activities, it.Activity)
	}
	assert.Equal(t, []string{"Deposit", "Buy", "Dividend"}, activities)
	assert.Equal(t, "Checking", snap.InvTxns[0].XferAccount)

	_, ok := snap.Account("Brokerage")
	assert.True(t, ok)
}
