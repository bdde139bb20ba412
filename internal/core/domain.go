package core

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TxnTypeIncome     TxnType = "Income"
	TxnTypeExpense    TxnType = "Expense"
	TxnTypeTransfer   TxnType = "Transfer"
	TxnTypeInvestment TxnType = "Investment"
)

// Built-in transaction classes. Users may configure others.
const (
	TxnClassIncome        TxnClass = "Income"
	TxnClassTransfer      TxnClass = "Transfer"
	TxnClassDiscretionary TxnClass = "Discretionary"
	TxnClassEssential     TxnClass = "Essential"
)

const (
	Assets      Classification = "Assets"
	Liabilities Classification = "Liabilities"
	Undefined   Classification = ""
)

// Account categories as Money groups them in the balances report.
const (
	CategoryBankAndCash        = "Bank and Cash Accounts"
	CategoryCreditCards        = "Credit Cards"
	CategoryInvestmentAccounts = "Investment Accounts"
	CategoryLoans              = "Loans"
	CategoryOtherAssets        = "Other Assets"
	CategoryOtherLiabilities   = "Other Liabilities"
)

// TransferCategories hold the counterpart account in the subcategory position.
var TransferCategories = []string{
	"Buy Investment/CD",
	"Credit Card Payment",
	"Principal Transfer",
	"Transfer From",
	"Transfer To",
}

type (
	TxnType        string
	TxnClass       string
	Classification string

	Date struct {
		time.Time
	}

	// Account is one reconciled account. Optional attributes are zero when no
	// report or override supplied them.
	Account struct {
		Name           string
		Classification Classification
		Category       string
		Abbreviation   string
		BankName       string
		AccountNumber  string
		Limit          decimal.NullDecimal
		OpeningBalance decimal.NullDecimal
		TxnDateMin     Date
		TxnDateMax     Date
		OpenedDate     Date
		ClosedDate     Date
		XferOnly       bool
	}

	CategoryKey struct {
		Category    string
		Subcategory string
	}

	Category struct {
		CategoryKey
		Type       TxnType
		Class      TxnClass
		TxnDateMin Date
		TxnDateMax Date
	}

	Payee struct {
		Name       string
		TxnDateMin Date
		TxnDateMax Date
	}

	// Txn is a single register line. Account and category attributes are
	// copied in during reconciliation so views never need a lookup.
	Txn struct {
		N           int
		Num         string
		Date        Date
		Account     string
		Payee       string
		Category    string
		Subcategory string
		XferAccount string
		Amount      decimal.Decimal
		Cleared     string
		Split       bool
		Memo        string

		Type                  TxnType
		Class                 TxnClass
		Era                   string
		AccountCategory       string
		AccountClassification Classification
		Source                string
	}

	// InvTxn is an investment account register line. Numeric columns are
	// null when the activity does not use them.
	InvTxn struct {
		N           int
		Date        Date
		Account     string
		Investment  string
		Activity    string
		Cleared     string
		Quantity    decimal.NullDecimal
		Price       decimal.NullDecimal
		Commission  decimal.NullDecimal
		Total       decimal.NullDecimal
		XferAccount string
		Category    string
		Subcategory string
		Memo        string
		Source      string
	}

	Loan struct {
		Account        string
		Abbreviation   string
		AccountNumber  string
		LoanAmount     decimal.NullDecimal
		InterestRate   decimal.NullDecimal
		Length         string
		Payment        decimal.NullDecimal
		Frequency      string
		BalloonAmount  decimal.NullDecimal
		Fees           decimal.NullDecimal
		LoanType       string
		InterestWhen   string
		Balance        decimal.NullDecimal
		BalanceAsOf    Date
		PaymentTargets []LoanPayment
	}

	LoanPayment struct {
		Payee       string
		Category    string
		Subcategory string
	}

	AccountBalance struct {
		Account string
		Date    Date
		Balance decimal.Decimal
	}

	CategoryBalance struct {
		CategoryKey
		Date    Date
		Balance decimal.Decimal
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyName     = errors.New("empty name")
)

// IsTransferCategory reports whether category names an account transfer.
func IsTransferCategory(category string) bool {
	return slices.Contains(TransferCategories, category)
}

// Valid reports whether c is Assets or Liabilities.
func (c Classification) Valid() bool {
	return c == Assets || c == Liabilities
}

// ParseClassification accepts the plural report form and the singular form.
func ParseClassification(s string) (Classification, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "assets", "asset":
		return Assets, true
	case "liabilities", "liability":
		return Liabilities, true
	}
	return Undefined, false
}

// ParseTxnType matches case-insensitively.
func ParseTxnType(s string) (TxnType, bool) {
	for _, t := range []TxnType{TxnTypeIncome, TxnTypeExpense, TxnTypeTransfer, TxnTypeInvestment} {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}

// SplitCategoryPair splits "Category : Subcategory" on the first colon.
func SplitCategoryPair(pair string) CategoryKey {
	cat, sub, _ := strings.Cut(pair, ":")
	return CategoryKey{Category: strings.TrimSpace(cat), Subcategory: strings.TrimSpace(sub)}
}

func (k CategoryKey) String() string {
	if k.Subcategory == "" {
		return k.Category
	}
	return k.Category + " : " + k.Subcategory
}

func (a Account) Closed() bool {
	return !a.ClosedDate.IsZero()
}

// CategoryKey returns the key of the category the transaction is posted to.
func (t Txn) CategoryKey() CategoryKey {
	return CategoryKey{Category: t.Category, Subcategory: t.Subcategory}
}

// IsTransfer reports whether the transaction moves money between accounts.
func (t Txn) IsTransfer() bool {
	return t.XferAccount != ""
}

// CategorySubcategory is the "Category : Subcategory" label used by listings
// and pivots. Transfers have none.
func (t Txn) CategorySubcategory() string {
	if t.IsTransfer() {
		return ""
	}
	return t.CategoryKey().String()
}
