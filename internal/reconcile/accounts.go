package reconcile

import (
	"fmt"
	"slices"
	"strings"

	"mnyxls/internal/config"
	"mnyxls/internal/core"
	"mnyxls/internal/log"
	"mnyxls/internal/report"

	"github.com/shopspring/decimal"
)

// PartialAccount is what one source knows about an account. Empty fields are
// unknown.
type PartialAccount struct {
	Name           string
	Classification core.Classification
	Category       string
	Abbreviation   string
	BankName       string
	AccountNumber  string
	Limit          decimal.NullDecimal
	OpeningBalance decimal.NullDecimal
	OpenedDate     core.Date
	ClosedDate     core.Date
}

func partialFromRecord(rec report.AccountRecord) PartialAccount {
	return PartialAccount{
		Name:           rec.Name,
		Classification: rec.Classification,
		Category:       rec.Category,
		Abbreviation:   rec.Abbreviation,
		BankName:       rec.BankName,
		AccountNumber:  rec.AccountNumber,
		Limit:          rec.Limit,
		OpeningBalance: rec.OpeningBalance,
	}
}

// Merge fills the fields of p that are still empty from lower, a source of
// lower precedence. Populated fields are never overwritten.
func (p *PartialAccount) Merge(lower PartialAccount) {
	fill(&p.Name, lower.Name)
	fill(&p.Classification, lower.Classification)
	fill(&p.Category, lower.Category)
	fill(&p.Abbreviation, lower.Abbreviation)
	fill(&p.BankName, lower.BankName)
	fill(&p.AccountNumber, lower.AccountNumber)
	if !p.Limit.Valid {
		p.Limit = lower.Limit
	}
	if !p.OpeningBalance.Valid {
		p.OpeningBalance = lower.OpeningBalance
	}
	if p.OpenedDate.IsZero() {
		p.OpenedDate = lower.OpenedDate
	}
	if p.ClosedDate.IsZero() {
		p.ClosedDate = lower.ClosedDate
	}
}

func fill[T ~string](dst *T, v T) {
	if *dst == "" {
		*dst = v
	}
}

// accountSet keys accounts by normalized name and keeps the first spelling.
type accountSet struct {
	byKey map[string]*PartialAccount
	keys  []string
}

func newAccountSet() *accountSet {
	return &accountSet{byKey: map[string]*PartialAccount{}}
}

// get returns the account for name, creating an empty one on first mention.
func (s *accountSet) get(name string) *PartialAccount {
	key := core.NormalizeName(name)
	if p, ok := s.byKey[key]; ok {
		return p
	}
	p := &PartialAccount{Name: name}
	s.byKey[key] = p
	s.keys = append(s.keys, key)
	return p
}

func (s *accountSet) lookup(name string) (*PartialAccount, bool) {
	p, ok := s.byKey[core.NormalizeName(name)]
	return p, ok
}

// canonical returns the display spelling for name.
func (s *accountSet) canonical(name string) string {
	if p, ok := s.lookup(name); ok {
		return p.Name
	}
	return name
}

// mergeReport folds the account rows of one report into s. A duplicate row
// within the report replaces the earlier one; across reports the earlier
// report keeps precedence.
func (s *accountSet) mergeReport(rep *report.Report) {
	rows := map[string]PartialAccount{}
	var order []string
	for _, rec := range rep.Accounts {
		key := core.NormalizeName(rec.Name)
		if _, dup := rows[key]; !dup {
			order = append(order, key)
		}
		rows[key] = partialFromRecord(rec)
	}
	for _, key := range order {
		row := rows[key]
		s.get(row.Name).Merge(row)
	}
}

// categoryClassifications maps an account category (normalized) to the
// classification it belongs to.
type categoryClassifications map[string]core.Classification

// learnCategoryClassifications collects the classification of every account
// category stated by reports, then merges the configured account_categories.
// A category listed under both classifications is a configuration error.
func learnCategoryClassifications(accounts *accountSet, cfg *config.Config) (categoryClassifications, error) {
	m := categoryClassifications{}
	for _, key := range accounts.keys {
		p := accounts.byKey[key]
		if p.Category == "" || !p.Classification.Valid() {
			continue
		}
		if _, ok := m[core.NormalizeName(p.Category)]; !ok {
			m[core.NormalizeName(p.Category)] = p.Classification
		}
	}

	for _, classText := range sortedKeys(cfg.AccountCategories) {
		class, ok := core.ParseClassification(classText)
		if !ok {
			return nil, &core.ConfigurationError{
				File:      cfg.File,
				Directive: "account_categories." + classText,
				Msg:       "classification must be Assets or Liabilities",
			}
		}
		for _, cat := range cfg.AccountCategories[classText] {
			key := core.NormalizeName(cat)
			if prev, ok := m[key]; ok && prev != class {
				return nil, &core.ConfigurationError{
					File:      cfg.File,
					Directive: "account_categories." + classText,
					Msg:       fmt.Sprintf("account category '%s' is also classified as %s", cat, prev),
				}
			}
			m[key] = class
		}
	}
	return m, nil
}

// resolve parses "Classification:Category" or a bare category
// looked up in the learned classifications. explicit reports whether the
// value named its classification.
func (m categoryClassifications) resolve(value string) (class core.Classification, cat string, explicit, ok bool) {
	if classText, cat, found := strings.Cut(value, ":"); found {
		class, valid := core.ParseClassification(classText)
		return class, strings.TrimSpace(cat), true, valid
	}
	cat = strings.TrimSpace(value)
	class, ok = m[core.NormalizeName(cat)]
	return class, cat, false, ok
}

// applyAccountConfig overrides report-derived attributes with the accounts
// directive. An explicit classification must agree with the one the account
// category is fixed to.
func applyAccountConfig(accounts *accountSet, classes categoryClassifications, cfg *config.Config, logger *log.Logger) error {
	for _, name := range sortedKeys(cfg.Accounts) {
		ac := cfg.Accounts[name]
		p, ok := accounts.lookup(name)
		if !ok {
			logger.Warn("Configured account is not referenced by any report", log.FieldAccount, name)
			continue
		}

		if ac.Category != "" {
			class, cat, explicit, ok := classes.resolve(ac.Category)
			if !ok {
				logger.Warn("Account category is not associated with a classification",
					log.FieldAccount, name, log.FieldCategory, ac.Category)
			} else {
				if fixed, known := classes[core.NormalizeName(cat)]; explicit && known && fixed != class {
					return &core.ReconciliationError{
						Entity: "account",
						Name:   p.Name,
						Field:  "classification",
						Msg: fmt.Sprintf("accounts.%s.category '%s' conflicts with account category '%s' classified as %s",
							name, ac.Category, cat, fixed),
					}
				}
				if p.Classification.Valid() && p.Classification != class {
					logger.Info("Configured classification replaces the reported one",
						log.FieldAccount, p.Name, "reported", p.Classification, "configured", class)
				}
				p.Classification, p.Category = class, cat
			}
		}

		for _, d := range []struct {
			directive string
			value     string
			dst       *core.Date
		}{
			{"opened_date", ac.OpenedDate, &p.OpenedDate},
			{"closed_date", ac.ClosedDate, &p.ClosedDate},
		} {
			if d.value == "" {
				continue
			}
			date, err := core.ParseISODate(d.value)
			if err != nil {
				return &core.ConfigurationError{File: cfg.File, Directive: "accounts." + name + "." + d.directive, Msg: err.Error()}
			}
			*d.dst = date
		}
	}
	return nil
}

// finalizeClassifications fills missing classifications from the account
// category, then from account_classification_default. Accounts still
// unresolved are logged and keep Undefined.
func finalizeClassifications(accounts *accountSet, classes categoryClassifications, cfg *config.Config, logger *log.Logger) {
	fallback, _ := core.ParseClassification(cfg.AccountClassificationDefault)
	var unresolved []string
	for _, key := range accounts.keys {
		p := accounts.byKey[key]
		if p.Classification.Valid() {
			continue
		}
		if class, ok := classes[core.NormalizeName(p.Category)]; ok && p.Category != "" {
			p.Classification = class
			continue
		}
		if fallback.Valid() {
			p.Classification = fallback
			continue
		}
		p.Classification = core.Undefined
		unresolved = append(unresolved, p.Name)
	}
	if len(unresolved) > 0 {
		slices.Sort(unresolved)
		logger.Warn("Accounts are not assigned a classification; import an account balances report covering them or set accounts.<name>.category",
			log.FieldCount, len(unresolved), "accounts", unresolved)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
