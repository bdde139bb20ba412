package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mnyxls/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const txnsCSV = `Account transactions
All dates
Num,Date,Payee,C,Account,Memo,Category,Amount,Running Balance
,2023-01-05,Shop,R,Checking,,Food : Groceries,-50.00,
,2023-01-31,Employer,,Checking,,Wages,"2,000.00",
101,2023-01-10,Big Store,,Checking,weekly,Food,-80.00,
,,,,,,Food : Groceries,-30.00,
,,,,,lamp,Household,-50.00,
**VOID**,2023-01-11,Nobody,,Checking,,Food,-5.00,
,2023-01-03,Bank,,Checking,,Transfer To : Savings,-100.00,

Grand Total,,,,,,,"1,770.00",
`

const balancesCSV = `Account Balances
As of 12/31/2023
Account,Total
Assets,
Bank and Cash Accounts,
Checking,"1,500.00"
Savings,500.00
Total Bank and Cash Accounts,"2,000.00"
Total Assets,"2,000.00"
Liabilities,
Credit Cards,
Visa,250.00
Total Credit Cards,250.00
Total Liabilities,250.00
Net Worth,"1,750.00"
`

const detailsCSV = `Account Balances with details
As of 12/31/2023
Account,Abbreviation,Bank Name,Account Number,Limit,Balance,Balance
Checking,CHK,First Bank,1234,,100.00,"1,500.00"
Visa,,Card Co,9876,"5,000.00",0.00,250.00
`

const loansCSV = `Loan Terms
Loan,Amount,Rate,Length,Interest,Frequency,Amount,category,Payee,Payment,Fees,Type,Interest,Balance
Mortgage,"200,000.00",4.5%,30 years,"1,013.37",Monthly,0.00,Mortgage : Interest,Bank,"1,013.37",0.00,Fixed,In arrears,"150,000.00"
,,,,,,,Taxes : Property,County,200.00,,,,
`

const spendingCSV = `Income and spending
1/1/2022 through 12/31/2023
Category,12/31/2022,12/31/2023,Total
Income Categories,,,
Wages,"24,000.00","25,000.00","49,000.00"
Total Income Categories,"24,000.00","25,000.00","49,000.00"
Expense Categories,,,
Food : Groceries,"3,000.00","3,500.00","6,500.00"
Total Expense Categories,"3,000.00","3,500.00","6,500.00"
Grand Total,"21,000.00","21,500.00","42,500.00"
`

const monthlyCSV = `Monthly income and expenses
,1/31/2024 -,2/29/2024 -,
Category,1/31/2024,2/29/2024,Total
Income,,,
Wages,"2,000.00","2,000.00","4,000.00"
Total Income,"2,000.00","2,000.00","4,000.00"
Expenses,,,
Rent,"1,000.00","1,000.00","2,000.00"
Total Expenses,"1,000.00","1,000.00","2,000.00"
Transfers,,,
Transfer To : Savings,,-100.00,-100.00
Total Transfers,,-100.00,-100.00
Income less Expenses,"1,000.00",900.00,"1,900.00"
`

const invTxnsCSV = `Investment account transactions
All dates
Date,Account,Investment,Activity,C,Quantity,Price,Commission,Total,Transfer Account,Category,Memo
2023-02-01,Brokerage,Index Fund,Buy,R,10.000,101.25,4.95,"-1,017.45",,,
2023-01-15,Brokerage,,Deposit,,,,,"2,000.00",Checking,,funding
2023-03-31,Brokerage,Index Fund,Dividend,,,,,12.30,,Investment Income : Dividends,
,,,,,,,,"994.85",,,
`

var modTime = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func parse(t *testing.T, name, body string, opts Options) *Report {
	t.Helper()
	rep, err := ParseReader(name, strings.NewReader(body), modTime, opts)
	require.NoError(t, err)
	return rep
}

func defaultOpts() Options {
	return Options{CheckTotals: true}
}

func TestDetect(t *testing.T) {
	cases := map[string]Kind{
		txnsCSV:     KindTransactions,
		balancesCSV: KindBalances,
		detailsCSV:  KindBalancesDetails,
		loansCSV:    KindLoanTerms,
		spendingCSV: KindIncomeSpending,
		monthlyCSV:  KindMonthly,
		invTxnsCSV:  KindInvTransactions,
	}
	for body, want := range cases {
		raw, err := readRaw("r.csv", strings.NewReader(body), modTime)
		require.NoError(t, err)
		got, err := detect(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	raw, err := readRaw("notes.csv", strings.NewReader("hello,world\n"), modTime)
	require.NoError(t, err)
	_, err = detect(raw)
	var pe *core.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "notes.csv", pe.File)
}

func TestParseTransactions(t *testing.T) {
	rep := parse(t, "txns.csv", txnsCSV, defaultOpts())
	require.Equal(t, KindTransactions, rep.Kind)
	require.Len(t, rep.Txns, 5)

	want := []struct {
		n     int
		date  core.Date
		payee string
		cat   string
		sub   string
		xfer  string
		memo  string
		split bool
		amt   string
	}{
		{1, core.NewDate(2023, 1, 3), "Bank", "Transfer To", "", "Savings", "", false, "-100"},
		{2, core.NewDate(2023, 1, 5), "Shop", "Food", "Groceries", "", "", false, "-50"},
		{3, core.NewDate(2023, 1, 10), "Big Store", "Food", "Groceries", "", "weekly", true, "-30"},
		{4, core.NewDate(2023, 1, 10), "Big Store", "Household", "", "", "lamp", true, "-50"},
		{5, core.NewDate(2023, 1, 31), "Employer", "Wages", "", "", "", false, "2000"},
	}
	for i, w := range want {
		got := rep.Txns[i]
		assert.Equal(t, w.n, got.N, "row %d", i)
		assert.True(t, w.date.Equal(got.Date), "row %d date %s", i, got.Date)
		assert.Equal(t, w.payee, got.Payee, "row %d", i)
		assert.Equal(t, w.cat, got.Category, "row %d", i)
		assert.Equal(t, w.sub, got.Subcategory, "row %d", i)
		assert.Equal(t, w.xfer, got.XferAccount, "row %d", i)
		assert.Equal(t, w.memo, got.Memo, "row %d", i)
		assert.Equal(t, w.split, got.Split, "row %d", i)
		assert.Equal(t, w.amt, got.Amount.String(), "row %d", i)
		assert.Equal(t, "Checking", got.Account, "row %d", i)
	}
	assert.Equal(t, "101", rep.Txns[2].Num)
	assert.True(t, rep.AsOf.Equal(core.NewDate(2023, 1, 31)))
}

func TestParseTransactionsImportRange(t *testing.T) {
	opts := defaultOpts()
	opts.ImportFrom = core.NewDate(2023, 1, 5)
	opts.ImportTo = core.NewDate(2023, 1, 10)
	rep := parse(t, "txns.csv", txnsCSV, opts)
	require.Len(t, rep.Txns, 3)
	assert.Equal(t, 1, rep.Txns[0].N)
	assert.Equal(t, "Shop", rep.Txns[0].Payee)

	opts.ImportFrom = core.NewDate(2030, 1, 1)
	opts.ImportTo = core.Date{}
	rep = parse(t, "txns.csv", txnsCSV, opts)
	assert.True(t, rep.Skipped)
	assert.Empty(t, rep.Txns)
}

func TestParseTransactionsErrors(t *testing.T) {
	cases := map[string]string{
		"missing footer": "Num,Date,Payee,C,Account,Memo,Category,Amount\n,2023-01-05,Shop,,Checking,,Food,-1.00\n",
		"missing column": "Num,Date,Payee,C,Memo,Category,Amount\n,2023-01-05,Shop,,,Food,-1.00\nGrand Total,,,,,,-1.00\n",
		"bad date":       "Num,Date,Payee,C,Account,Memo,Category,Amount\n,01/05/2023,Shop,,Checking,,Food,-1.00\nGrand Total,,,,,,,-1.00\n",
		"orphan split":   "Num,Date,Payee,C,Account,Memo,Category,Amount\n,,,,,,Food,-1.00\nGrand Total,,,,,,,-1.00\n",
		"bad amount":     "Num,Date,Payee,C,Account,Memo,Category,Amount\n,2023-01-05,Shop,,Checking,,Food,abc\nGrand Total,,,,,,,-1.00\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReader("bad.csv", strings.NewReader(body), modTime, defaultOpts())
			var pe *core.ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, "bad.csv", pe.File)
		})
	}
}

func TestParseInvTransactions(t *testing.T) {
	rep := parse(t, "inv.csv", invTxnsCSV, defaultOpts())
	require.Equal(t, KindInvTransactions, rep.Kind)
	require.Len(t, rep.InvTxns, 3)

	deposit, buy, dividend := rep.InvTxns[0], rep.InvTxns[1], rep.InvTxns[2]
	assert.Equal(t, []int{1, 2, 3}, []int{deposit.N, buy.N, dividend.N})

	assert.Equal(t, "Deposit", deposit.Activity)
	assert.Equal(t, "Checking", deposit.XferAccount)
	assert.Equal(t, "funding", deposit.Memo)
	assert.False(t, deposit.Quantity.Valid)
	assert.Equal(t, "2000", deposit.Total.Decimal.String())

	assert.Equal(t, "Index Fund", buy.Investment)
	assert.Equal(t, "R", buy.Cleared)
	assert.Equal(t, "10", buy.Quantity.Decimal.String())
	assert.Equal(t, "101.25", buy.Price.Decimal.String())
	assert.Equal(t, "4.95", buy.Commission.Decimal.String())
	assert.Equal(t, "-1017.45", buy.Total.Decimal.String())

	assert.Equal(t, "Investment Income", dividend.Category)
	assert.Equal(t, "Dividends", dividend.Subcategory)

	lo, hi := rep.DateRange()
	assert.True(t, lo.Equal(core.NewDate(2023, 1, 15)))
	assert.True(t, hi.Equal(core.NewDate(2023, 3, 31)))
}

func TestParseInvTransactionsImportRange(t *testing.T) {
	opts := defaultOpts()
	opts.ImportTo = core.NewDate(2023, 2, 28)
	rep := parse(t, "inv.csv", invTxnsCSV, opts)
	require.Len(t, rep.InvTxns, 2)
	assert.Equal(t, "Buy", rep.InvTxns[1].Activity)

	opts.ImportFrom, opts.ImportTo = core.NewDate(2030, 1, 1), core.Date{}
	rep = parse(t, "inv.csv", invTxnsCSV, opts)
	assert.True(t, rep.Skipped)
	assert.Empty(t, rep.InvTxns)
}

func TestParseInvTransactionsErrors(t *testing.T) {
	header := "Date,Account,Investment,Activity,C,Quantity,Price,Commission,Total,Transfer Account,Category,Memo\n"
	cases := map[string]string{
		"bad date":       header + "02/01/2023,Brokerage,Fund,Buy,,1,1,0,-1,,,\n",
		"bad quantity":   header + "2023-02-01,Brokerage,Fund,Buy,,ten,1,0,-1,,,\n",
		"missing column": "Date,Account,Investment,Activity,C,Quantity,Price,Commission,Total,Category\n2023-02-01,Brokerage,Fund,Buy,,1,1,0,-1,\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReader("inv.csv", strings.NewReader(body), modTime, defaultOpts())
			var pe *core.ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
		})
	}
}

func TestParseBalances(t *testing.T) {
	rep := parse(t, "balances.csv", balancesCSV, defaultOpts())
	require.Equal(t, KindBalances, rep.Kind)
	assert.True(t, rep.AsOf.Equal(core.NewDate(2023, 12, 31)))
	require.Len(t, rep.Accounts, 3)

	assert.Equal(t, AccountRecord{Name: "Checking", Classification: core.Assets, Category: core.CategoryBankAndCash, Line: 6}, rep.Accounts[0])
	assert.Equal(t, core.Liabilities, rep.Accounts[2].Classification)
	assert.Equal(t, core.CategoryCreditCards, rep.Accounts[2].Category)
	require.Len(t, rep.AccountBalances, 3)
	assert.Equal(t, "1500", rep.AccountBalances[0].Balance.String())
}

func TestParseBalancesErrors(t *testing.T) {
	noDate := strings.Replace(balancesCSV, "As of 12/31/2023\n", "", 1)
	_, err := ParseReader("b.csv", strings.NewReader(noDate), modTime, defaultOpts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "As of MM/DD/YYYY")

	orphan := strings.Replace(balancesCSV, "Assets,\nBank and Cash Accounts,\n", "Assets,\n", 1)
	orphan = strings.Replace(orphan, "Total Bank and Cash Accounts,\"2,000.00\"\n", "", 1)
	_, err = ParseReader("b.csv", strings.NewReader(orphan), modTime, defaultOpts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not expect 'Checking'")

	badClass := strings.Replace(balancesCSV, "Liabilities,\n", "Equity,\n", 1)
	_, err = ParseReader("b.csv", strings.NewReader(badClass), modTime, defaultOpts())
	require.Error(t, err)
}

func TestParseBalancesOutsideImportRange(t *testing.T) {
	opts := defaultOpts()
	opts.ImportTo = core.NewDate(2023, 6, 30)
	rep := parse(t, "balances.csv", balancesCSV, opts)
	assert.True(t, rep.Skipped)
	assert.Empty(t, rep.Accounts)
}

func TestParseBalancesDetails(t *testing.T) {
	rep := parse(t, "details.csv", detailsCSV, defaultOpts())
	require.Len(t, rep.Accounts, 2)

	chk := rep.Accounts[0]
	assert.Equal(t, "CHK", chk.Abbreviation)
	assert.Equal(t, "First Bank", chk.BankName)
	assert.Equal(t, "1234", chk.AccountNumber)
	assert.False(t, chk.Limit.Valid)
	assert.Equal(t, "100", chk.OpeningBalance.Decimal.String())

	visa := rep.Accounts[1]
	assert.Equal(t, "5000", visa.Limit.Decimal.String())
	require.Len(t, rep.AccountBalances, 2)
	assert.Equal(t, "250", rep.AccountBalances[1].Balance.String())
}

func TestParseBalancesDetailsUsesModTime(t *testing.T) {
	body := strings.Replace(detailsCSV, "As of 12/31/2023\n", "", 1)
	rep := parse(t, "details.csv", body, defaultOpts())
	assert.True(t, rep.AsOf.Equal(core.NewDate(2024, 3, 15)))
}

func TestParseLoanTerms(t *testing.T) {
	rep := parse(t, "loans.csv", loansCSV, defaultOpts())
	require.Len(t, rep.Loans, 1)
	loan := rep.Loans[0]
	assert.Equal(t, "Mortgage", loan.Account)
	assert.Equal(t, "200000", loan.LoanAmount.Decimal.String())
	assert.Equal(t, "4.5", loan.InterestRate.Decimal.String())
	assert.Equal(t, "In arrears", loan.InterestWhen)
	assert.Equal(t, "150000", loan.Balance.Decimal.String())
	require.Len(t, loan.PaymentTargets, 2)
	assert.Equal(t, core.LoanPayment{Payee: "County", Category: "Taxes", Subcategory: "Property"}, loan.PaymentTargets[1])

	require.Len(t, rep.Accounts, 1)
	assert.Equal(t, core.Liabilities, rep.Accounts[0].Classification)
	assert.Equal(t, core.CategoryLoans, rep.Accounts[0].Category)
	assert.True(t, rep.AsOf.Equal(core.NewDate(2024, 3, 15)))
}

func TestParseIncomeSpending(t *testing.T) {
	rep := parse(t, "spending.csv", spendingCSV, defaultOpts())
	require.Equal(t, KindIncomeSpending, rep.Kind)
	require.Len(t, rep.Categories, 2)
	assert.Equal(t, core.TxnTypeIncome, rep.Categories[0].Type)
	assert.Equal(t, core.CategoryKey{Category: "Food", Subcategory: "Groceries"}, rep.Categories[1].CategoryKey)
	assert.Equal(t, core.TxnTypeExpense, rep.Categories[1].Type)
	assert.Len(t, rep.CategoryBalances, 4)
	assert.True(t, rep.AsOf.Equal(core.NewDate(2023, 12, 31)))

	opts := defaultOpts()
	opts.ImportFrom = core.NewDate(2023, 1, 1)
	rep = parse(t, "spending.csv", spendingCSV, opts)
	assert.Len(t, rep.CategoryBalances, 2)

	opts.ImportFrom = core.NewDate(2025, 1, 1)
	rep = parse(t, "spending.csv", spendingCSV, opts)
	assert.True(t, rep.Skipped)
}

func TestParseMonthly(t *testing.T) {
	rep := parse(t, "monthly.csv", monthlyCSV, defaultOpts())
	require.Equal(t, KindMonthly, rep.Kind)
	require.Len(t, rep.Categories, 3)
	assert.Equal(t, core.TxnTypeTransfer, rep.Categories[2].Type)
	assert.Equal(t, "Transfer To", rep.Categories[2].Category)
	assert.True(t, rep.AsOf.Equal(core.NewDate(2024, 2, 29)))
}

func TestParseSpendingUnknownSection(t *testing.T) {
	body := strings.Replace(spendingCSV, "Expense Categories,,,", "Outflows,,,", 1)
	_, err := ParseReader("s.csv", strings.NewReader(body), modTime, defaultOpts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not expect 'Outflows'")
}

func TestParseAllKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	files := []struct{ name, body string }{
		{"a.csv", balancesCSV},
		{"b.csv", txnsCSV},
	}
	var paths []string
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		require.NoError(t, os.WriteFile(p, []byte(f.body), 0o644))
		paths = append(paths, p)
	}

	reps, err := ParseAll(context.Background(), paths, defaultOpts())
	require.NoError(t, err)
	require.Len(t, reps, 2)
	assert.Equal(t, KindBalances, reps[0].Kind)
	assert.Equal(t, KindTransactions, reps[1].Kind)
	assert.Equal(t, paths[1], reps[1].Path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ParseAll(ctx, paths, defaultOpts())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadRawDecodesWindows1252(t *testing.T) {
	// 0xE9 is "é" in Windows-1252.
	body := []byte("Num,Date,Payee,C,Account,Memo,Category,Amount\n,2023-01-05,Caf\xe9,,Checking,,Food,-1.00\nGrand Total,,,,,,,-1.00\n")
	rep, err := ParseReader("cp.csv", strings.NewReader(string(body)), modTime, defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, "Café", rep.Txns[0].Payee)
}
