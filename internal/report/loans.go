package report

import (
	"mnyxls/internal/core"
	"mnyxls/internal/log"

	"github.com/shopspring/decimal"
)

const loansHeaderLimit = 4

// Money repeats "Amount" and "Interest" in this header; the
// second occurrences are the balloon amount and the interest timing.
var loansRequired = []string{
	"Loan", "Amount", "Rate", "Length", "Interest", "Frequency", "Amount.1",
	"category", "Payee", "Payment", "Fees", "Type", "Interest.1", "Balance",
}

func detectLoanTerms(raw *rawReport) bool {
	return raw.headerIndex(loansRequired[0], loansHeaderLimit) >= 0
}

// parseLoanTerms reads the loan terms report. A loan row starts a loan;
// following rows with an empty Loan cell add more payee/category payment
// lines to it.
func parseLoanTerms(raw *rawReport, opts Options) (*Report, error) {
	asOf, found := raw.asOfOrModTime(loansHeaderLimit)
	if !found {
		opts.logger().Debug("Using file modification time as report date",
			log.FieldReport, raw.Path, log.FieldAsOf, asOf.String())
	}
	rep := &Report{AsOf: asOf}
	if !opts.inRange(asOf) {
		rep.Skipped = true
		return rep, nil
	}

	t, err := newTable(raw, loansRequired, loansHeaderLimit)
	if err != nil {
		return nil, err
	}

	var cur *core.Loan
	for _, rec := range t.rows {
		if name := t.get(rec, "Loan"); name != "" {
			loan, err := loanFromRow(t, rec, asOf)
			if err != nil {
				return nil, err
			}
			rep.Loans = append(rep.Loans, loan)
			cur = &rep.Loans[len(rep.Loans)-1]
			rep.Accounts = append(rep.Accounts, AccountRecord{
				Name:           name,
				Classification: core.Liabilities,
				Category:       core.CategoryLoans,
				Abbreviation:   loan.Abbreviation,
				AccountNumber:  loan.AccountNumber,
				Line:           rec.Line,
			})
			if loan.Balance.Valid {
				rep.AccountBalances = append(rep.AccountBalances, core.AccountBalance{
					Account: name,
					Date:    asOf,
					Balance: loan.Balance.Decimal,
				})
			}
		}
		if cur == nil {
			return nil, raw.fail(rec.Line, "Loan", "payment line without a loan")
		}
		payee := t.get(rec, "Payee")
		if payee == "" {
			continue
		}
		cat := core.SplitCategoryPair(t.get(rec, "category"))
		cur.PaymentTargets = append(cur.PaymentTargets, core.LoanPayment{
			Payee:       payee,
			Category:    cat.Category,
			Subcategory: cat.Subcategory,
		})
	}
	return rep, nil
}

func loanFromRow(t *table, rec record, asOf core.Date) (core.Loan, error) {
	loan := core.Loan{
		Account:       t.get(rec, "Loan"),
		Abbreviation:  t.get(rec, "Abbreviation"),
		AccountNumber: t.get(rec, "Number"),
		Length:        t.get(rec, "Length"),
		Frequency:     t.get(rec, "Frequency"),
		LoanType:      t.get(rec, "Type"),
		InterestWhen:  t.get(rec, "Interest.1"),
		BalanceAsOf:   asOf,
	}
	amounts := []struct {
		col string
		dst *decimal.NullDecimal
	}{
		{"Amount", &loan.LoanAmount},
		{"Rate", &loan.InterestRate},
		{"Interest", &loan.Payment},
		{"Amount.1", &loan.BalloonAmount},
		{"Fees", &loan.Fees},
		{"Balance", &loan.Balance},
	}
	for _, a := range amounts {
		v, err := t.amount(rec, a.col)
		if err != nil {
			return loan, err
		}
		*a.dst = v
	}
	return loan, nil
}
