// Package reconcile merges parsed reports and configuration overrides into a
// single consistent snapshot of accounts, categories and transactions.
//
// Attribute precedence, highest first: explicit configuration, the earlier
// processed report, the later processed report. A populated attribute is
// never replaced by an empty one.
package reconcile

import (
	"cmp"
	"context"
	"slices"

	"mnyxls/internal/config"
	"mnyxls/internal/core"
	"mnyxls/internal/log"
	"mnyxls/internal/report"
)

// Reconciler builds snapshots for one configuration.
type Reconciler struct {
	cfg    *config.Config
	logger *log.Logger
}

func New(cfg *config.Config, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Discard()
	}
	return &Reconciler{cfg: cfg, logger: logger.WithComponent(log.ComponentReconcile)}
}

// Reconcile merges reports, in processing order, into a Snapshot.
func (r *Reconciler) Reconcile(ctx context.Context, reports []*report.Report) (*Snapshot, error) {
	eras, err := ResolveEras(r.cfg)
	if err != nil {
		return nil, err
	}

	accounts := newAccountSet()
	categories := newCategoryResolver(r.cfg)
	var (
		txns    []core.Txn
		invTxns []core.InvTxn
	)
	snap := &Snapshot{Eras: eras}

	for _, rep := range reports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rep.Skipped {
			continue
		}
		accounts.mergeReport(rep)
		categories.learnReport(rep)
		txns = append(txns, rep.Txns...)
		invTxns = append(invTxns, rep.InvTxns...)
		snap.Loans = appendLoans(snap.Loans, rep.Loans)
		snap.AccountBalances = append(snap.AccountBalances, rep.AccountBalances...)
		snap.CategoryBalances = append(snap.CategoryBalances, rep.CategoryBalances...)
	}

	// Transaction references create placeholder accounts.
	for i := range txns {
		txns[i].Account = accounts.get(txns[i].Account).Name
		if txns[i].XferAccount != "" {
			txns[i].XferAccount = accounts.get(txns[i].XferAccount).Name
		}
	}
	for i := range invTxns {
		invTxns[i].Account = accounts.get(invTxns[i].Account).Name
		if invTxns[i].XferAccount != "" {
			invTxns[i].XferAccount = accounts.get(invTxns[i].XferAccount).Name
		}
	}

	if err := applyRewrites(txns, accounts, r.cfg, r.logger); err != nil {
		return nil, err
	}

	classes, err := learnCategoryClassifications(accounts, r.cfg)
	if err != nil {
		return nil, err
	}
	if err := applyAccountConfig(accounts, classes, r.cfg, r.logger); err != nil {
		return nil, err
	}
	finalizeClassifications(accounts, classes, r.cfg, r.logger)

	slices.SortStableFunc(txns, func(a, b core.Txn) int {
		return a.Date.Compare(b.Date.Time)
	})
	snap.Accounts = buildAccounts(accounts, txns)
	snap.index()

	unassigned := 0
	for i := range txns {
		t := &txns[i]
		t.N = i + 1
		if t.IsTransfer() {
			t.Type, t.Class = core.TxnTypeTransfer, core.TxnClassTransfer
		} else {
			t.Type, t.Class = categories.resolve(t.CategoryKey())
		}
		if acct, ok := snap.Account(t.Account); ok {
			t.AccountCategory = acct.Category
			t.AccountClassification = acct.Classification
		}
		if len(eras) > 0 {
			if t.Era = eraOf(eras, t.Date); t.Era == "" {
				unassigned++
			}
		}
	}
	if unassigned > 0 {
		r.logger.Warn("Transactions do not have an era assigned", log.FieldCount, unassigned)
	}
	snap.Txns = txns
	snap.InvTxns = sortInvTxns(invTxns)
	snap.Categories = buildCategories(txns, categories)
	snap.Payees = buildPayees(txns)
	snap.AccountBalances = dedupeAccountBalances(snap.AccountBalances, accounts)
	snap.CategoryBalances = dedupeCategoryBalances(snap.CategoryBalances)
	snap.index()

	lo, hi := snap.TxnDateRange()
	r.logger.Info("Reconciled reports",
		log.FieldOperation, log.OpReconcile,
		"accounts", len(snap.Accounts),
		"categories", len(snap.Categories),
		"txns", len(snap.Txns),
		"inv_txns", len(snap.InvTxns),
		log.FieldDateFrom, lo.String(),
		log.FieldDateTo, hi.String())
	return snap, nil
}

// buildAccounts finalizes the account set, attaching transaction date
// ranges. Accounts only ever named as a transfer counterpart are XferOnly and
// take their date range from those transfers.
func buildAccounts(accounts *accountSet, txns []core.Txn) []core.Account {
	type span struct{ min, max core.Date }
	own := map[string]*span{}
	xfer := map[string]*span{}
	extend := func(m map[string]*span, name string, d core.Date) {
		key := core.NormalizeName(name)
		s, ok := m[key]
		if !ok {
			s = &span{}
			m[key] = s
		}
		s.min, s.max = core.MinDate(s.min, d), core.MaxDate(s.max, d)
	}
	for _, t := range txns {
		extend(own, t.Account, t.Date)
		if t.XferAccount != "" {
			extend(xfer, t.XferAccount, t.Date)
		}
	}

	out := make([]core.Account, 0, len(accounts.keys))
	for _, key := range accounts.keys {
		p := accounts.byKey[key]
		a := core.Account{
			Name:           p.Name,
			Classification: p.Classification,
			Category:       p.Category,
			Abbreviation:   p.Abbreviation,
			BankName:       p.BankName,
			AccountNumber:  p.AccountNumber,
			Limit:          p.Limit,
			OpeningBalance: p.OpeningBalance,
			OpenedDate:     p.OpenedDate,
			ClosedDate:     p.ClosedDate,
		}
		if s, ok := own[key]; ok {
			a.TxnDateMin, a.TxnDateMax = s.min, s.max
		} else if s, ok := xfer[key]; ok {
			a.TxnDateMin, a.TxnDateMax = s.min, s.max
			a.XferOnly = true
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b core.Account) int {
		return cmp.Compare(core.NormalizeName(a.Name), core.NormalizeName(b.Name))
	})
	return out
}

// buildCategories lists the categories used by non-transfer transactions.
func buildCategories(txns []core.Txn, resolver *categoryResolver) []core.Category {
	byKey := map[core.CategoryKey]*core.Category{}
	var keys []core.CategoryKey
	for _, t := range txns {
		if t.IsTransfer() || core.IsTransferCategory(t.Category) || t.Category == "" {
			continue
		}
		key := t.CategoryKey()
		c, ok := byKey[key]
		if !ok {
			typ, class := resolver.resolve(key)
			c = &core.Category{CategoryKey: key, Type: typ, Class: class}
			byKey[key] = c
			keys = append(keys, key)
		}
		c.TxnDateMin, c.TxnDateMax = core.MinDate(c.TxnDateMin, t.Date), core.MaxDate(c.TxnDateMax, t.Date)
	}
	slices.SortFunc(keys, compareCategoryKeys)
	out := make([]core.Category, len(keys))
	for i, k := range keys {
		out[i] = *byKey[k]
	}
	return out
}

func compareCategoryKeys(a, b core.CategoryKey) int {
	return cmp.Or(cmp.Compare(a.Category, b.Category), cmp.Compare(a.Subcategory, b.Subcategory))
}

func buildPayees(txns []core.Txn) []core.Payee {
	byName := map[string]*core.Payee{}
	var names []string
	for _, t := range txns {
		if t.Payee == "" {
			continue
		}
		p, ok := byName[t.Payee]
		if !ok {
			p = &core.Payee{Name: t.Payee}
			byName[t.Payee] = p
			names = append(names, t.Payee)
		}
		p.TxnDateMin, p.TxnDateMax = core.MinDate(p.TxnDateMin, t.Date), core.MaxDate(p.TxnDateMax, t.Date)
	}
	slices.Sort(names)
	out := make([]core.Payee, len(names))
	for i, n := range names {
		out[i] = *byName[n]
	}
	return out
}

// sortInvTxns orders investment transactions by date, keeping report order
// within a day, and renumbers them from 1.
func sortInvTxns(txns []core.InvTxn) []core.InvTxn {
	slices.SortStableFunc(txns, func(a, b core.InvTxn) int {
		return a.Date.Compare(b.Date.Time)
	})
	for i := range txns {
		txns[i].N = i + 1
	}
	return txns
}

// appendLoans keeps the first loan seen for an account.
func appendLoans(loans, more []core.Loan) []core.Loan {
	for _, l := range more {
		if !slices.ContainsFunc(loans, func(x core.Loan) bool { return core.SameName(x.Account, l.Account) }) {
			loans = append(loans, l)
		}
	}
	return loans
}

// dedupeAccountBalances keeps the first balance per account and date and
// sorts by account then date.
func dedupeAccountBalances(in []core.AccountBalance, accounts *accountSet) []core.AccountBalance {
	type key struct {
		account string
		date    core.Date
	}
	seen := map[key]bool{}
	out := make([]core.AccountBalance, 0, len(in))
	for _, b := range in {
		k := key{core.NormalizeName(b.Account), b.Date}
		if seen[k] {
			continue
		}
		seen[k] = true
		b.Account = accounts.canonical(b.Account)
		out = append(out, b)
	}
	slices.SortStableFunc(out, func(a, b core.AccountBalance) int {
		return cmp.Or(cmp.Compare(a.Account, b.Account), a.Date.Compare(b.Date.Time))
	})
	return out
}

func dedupeCategoryBalances(in []core.CategoryBalance) []core.CategoryBalance {
	type key struct {
		cat  core.CategoryKey
		date core.Date
	}
	seen := map[key]bool{}
	out := make([]core.CategoryBalance, 0, len(in))
	for _, b := range in {
		k := key{b.CategoryKey, b.Date}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, b)
	}
	slices.SortStableFunc(out, func(a, b core.CategoryBalance) int {
		return cmp.Or(compareCategoryKeys(a.CategoryKey, b.CategoryKey), a.Date.Compare(b.Date.Time))
	})
	return out
}
