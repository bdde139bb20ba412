package reconcile

import (
	"mnyxls/internal/core"
)

// Snapshot is the reconciled entity set. It is read-only once built and safe
// for concurrent readers.
type Snapshot struct {
	Accounts         []core.Account  // sorted by name
	Categories       []core.Category // sorted by category, subcategory
	Payees           []core.Payee    // sorted by name
	Txns             []core.Txn      // sorted by date, N from 1
	InvTxns          []core.InvTxn   // sorted by date, N from 1
	Loans            []core.Loan
	AccountBalances  []core.AccountBalance
	CategoryBalances []core.CategoryBalance
	Eras             []Era

	accountIndex  map[string]int
	categoryIndex map[core.CategoryKey]int
	withSubs      map[string]bool
}

func (s *Snapshot) index() {
	s.accountIndex = make(map[string]int, len(s.Accounts))
	for i, a := range s.Accounts {
		s.accountIndex[core.NormalizeName(a.Name)] = i
	}
	s.categoryIndex = make(map[core.CategoryKey]int, len(s.Categories))
	s.withSubs = map[string]bool{}
	for i, c := range s.Categories {
		s.categoryIndex[c.CategoryKey] = i
		if c.Subcategory != "" {
			s.withSubs[c.Category] = true
		}
	}
}

// Account looks up an account by name, ignoring case.
func (s *Snapshot) Account(name string) (core.Account, bool) {
	i, ok := s.accountIndex[core.NormalizeName(name)]
	if !ok {
		return core.Account{}, false
	}
	return s.Accounts[i], true
}

func (s *Snapshot) Category(key core.CategoryKey) (core.Category, bool) {
	i, ok := s.categoryIndex[key]
	if !ok {
		return core.Category{}, false
	}
	return s.Categories[i], true
}

// HasSubcategories reports whether any known category key under category has
// a subcategory.
func (s *Snapshot) HasSubcategories(category string) bool {
	return s.withSubs[category]
}

// TxnDateRange returns the first and last transaction dates.
func (s *Snapshot) TxnDateRange() (core.Date, core.Date) {
	if len(s.Txns) == 0 {
		return core.Date{}, core.Date{}
	}
	return s.Txns[0].Date, s.Txns[len(s.Txns)-1].Date
}

// EraNames lists era names in date order.
func (s *Snapshot) EraNames() []string {
	names := make([]string, len(s.Eras))
	for i, e := range s.Eras {
		names[i] = e.Name
	}
	return names
}
