package storage

import (
	"context"
	"database/sql"

	"mnyxls/internal/core"

	"github.com/shopspring/decimal"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const insertAccount = `INSERT INTO Accounts (
    Account, AccountClassification, AccountCategory, Abbreviation, BankName, AccountNumber,
    AccountLimit, OpeningBalance, TxnDateMin, TxnDateMax, OpenedDate, ClosedDate, XferOnly
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx, insertAccount,
		a.Name, string(a.Classification), nullString(a.Category), nullString(a.Abbreviation),
		nullString(a.BankName), nullString(a.AccountNumber), nullAmount(a.Limit), nullAmount(a.OpeningBalance),
		nullDate(a.TxnDateMin), nullDate(a.TxnDateMax), nullDate(a.OpenedDate), nullDate(a.ClosedDate),
		a.XferOnly,
	)
	return err
}

const insertLoan = `INSERT INTO Loans (
    Account, Abbreviation, AccountNumber, LoanAmount, InterestRate, Length, Payment, Frequency,
    BalloonAmount, Fees, LoanType, InterestWhen, Balance, BalanceAsOf
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertLoan(ctx context.Context, l core.Loan) error {
	_, err := q.db.ExecContext(ctx, insertLoan,
		l.Account, nullString(l.Abbreviation), nullString(l.AccountNumber), nullAmount(l.LoanAmount),
		nullAmount(l.InterestRate), nullString(l.Length), nullAmount(l.Payment), nullString(l.Frequency),
		nullAmount(l.BalloonAmount), nullAmount(l.Fees), nullString(l.LoanType), nullString(l.InterestWhen),
		nullAmount(l.Balance), nullDate(l.BalanceAsOf),
	)
	return err
}

const insertLoanPayment = `INSERT INTO LoanPayments (Account, Payee, Category, Subcategory) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertLoanPayment(ctx context.Context, account string, p core.LoanPayment) error {
	_, err := q.db.ExecContext(ctx, insertLoanPayment,
		account, nullString(p.Payee), nullString(p.Category), nullString(p.Subcategory))
	return err
}

const insertPayee = `INSERT OR IGNORE INTO Payees (Payee, TxnDateMin, TxnDateMax) VALUES (?, ?, ?)`

func (q *Queries) InsertPayee(ctx context.Context, p core.Payee) error {
	_, err := q.db.ExecContext(ctx, insertPayee, p.Name, nullDate(p.TxnDateMin), nullDate(p.TxnDateMax))
	return err
}

const insertCategory = `INSERT INTO Categories (
    Category, Subcategory, TxnType, TxnClass, TxnDateMin, TxnDateMax
) VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertCategory(ctx context.Context, c core.Category) error {
	_, err := q.db.ExecContext(ctx, insertCategory,
		c.Category, c.Subcategory, string(c.Type), string(c.Class), nullDate(c.TxnDateMin), nullDate(c.TxnDateMax))
	return err
}

const insertAccountBalance = `INSERT OR REPLACE INTO AccountBalances (Account, Date, Balance) VALUES (?, ?, ?)`

func (q *Queries) InsertAccountBalance(ctx context.Context, b core.AccountBalance) error {
	_, err := q.db.ExecContext(ctx, insertAccountBalance, b.Account, b.Date.String(), b.Balance.String())
	return err
}

const insertCategoryBalance = `INSERT OR REPLACE INTO CategoryBalances (Category, Subcategory, Date, Balance) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertCategoryBalance(ctx context.Context, b core.CategoryBalance) error {
	_, err := q.db.ExecContext(ctx, insertCategoryBalance, b.Category, b.Subcategory, b.Date.String(), b.Balance.String())
	return err
}

const insertTxn = `INSERT INTO Txns (
    N, Num, Date, Account, Payee, Category, Subcategory, XferAccount, Amount, C, Split, Memo,
    TxnType, TxnClass, Era, AccountCategory, AccountClassification, Source
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTxn(ctx context.Context, t core.Txn) error {
	_, err := q.db.ExecContext(ctx, insertTxn,
		t.N, nullString(t.Num), t.Date.String(), t.Account, nullString(t.Payee), nullString(t.Category),
		nullString(t.Subcategory), nullString(t.XferAccount), t.Amount.String(), nullString(t.Cleared),
		t.Split, nullString(t.Memo), string(t.Type), string(t.Class), nullString(t.Era),
		nullString(t.AccountCategory), string(t.AccountClassification), nullString(t.Source),
	)
	return err
}

const insertInvTxn = `INSERT INTO TxnsInv (
    N, Date, Account, Investment, Activity, C, Quantity, Price, Commission, Total,
    XferAccount, Category, Subcategory, Memo, Source
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertInvTxn(ctx context.Context, t core.InvTxn) error {
	_, err := q.db.ExecContext(ctx, insertInvTxn,
		t.N, t.Date.String(), t.Account, nullString(t.Investment), nullString(t.Activity),
		nullString(t.Cleared), nullAmount(t.Quantity), nullAmount(t.Price), nullAmount(t.Commission),
		nullAmount(t.Total), nullString(t.XferAccount), nullString(t.Category), nullString(t.Subcategory),
		nullString(t.Memo), nullString(t.Source),
	)
	return err
}

const sumTxnAmounts = `SELECT Amount FROM Txns`

// SumTxnAmounts totals the Amount column exactly.
func (q *Queries) SumTxnAmounts(ctx context.Context) (decimal.Decimal, error) {
	rows, err := q.db.QueryContext(ctx, sumTxnAmounts)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()
	total := decimal.Zero
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return decimal.Zero, err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

// CountRows counts the rows of one of the schema tables.
func (q *Queries) CountRows(ctx context.Context, table string) (int64, error) {
	if !isTable(table) {
		return 0, sql.ErrNoRows
	}
	var n int64
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

// Tables lists the schema tables in load order.
var Tables = []string{
	"Accounts", "Loans", "LoanPayments", "Payees", "Categories", "AccountBalances", "CategoryBalances", "Txns",
	"TxnsInv",
}

func isTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(d core.Date) sql.NullString {
	return nullString(d.String())
}

func nullAmount(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}
