// Package expand partitions transactions or accounts by a foreach dimension
// so one worksheet declaration can yield a worksheet per value.
package expand

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mnyxls/internal/core"
	"mnyxls/internal/reconcile"
)

// Dimension names accepted by foreach.
const (
	DimAccount               = "account"
	DimAccountCategory       = "account_category"
	DimAccountClassification = "account_classification"
	DimTxnClass              = "txnclass"
	DimTxnType               = "txntype"
	DimEra                   = "era"
	DimYYYY                  = "yyyy"
	DimDecade                = "10y"
)

var (
	Dimensions = []string{
		DimAccount, DimAccountCategory, DimAccountClassification,
		DimTxnClass, DimTxnType, DimEra, DimYYYY, DimDecade,
	}

	// AccountDimensions can also partition the accounts listing.
	AccountDimensions = []string{DimAccountCategory, DimAccountClassification}

	placeholder = regexp.MustCompile(`\{\{\s*foreach\s*\}\}`)
)

// Dimension extracts the group value of a transaction.
type Dimension struct {
	Name  string
	value func(t *core.Txn) string
	empty string
}

// Lookup resolves a foreach value; "class" and "type" are accepted aliases.
func Lookup(name string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DimAccount:
		return Dimension{Name: DimAccount, value: func(t *core.Txn) string { return t.Account }}, nil
	case DimAccountCategory:
		return Dimension{Name: DimAccountCategory, value: func(t *core.Txn) string { return t.AccountCategory }, empty: "No category"}, nil
	case DimAccountClassification:
		return Dimension{Name: DimAccountClassification, value: func(t *core.Txn) string { return string(t.AccountClassification) }, empty: "No classification"}, nil
	case DimTxnClass, "class":
		return Dimension{Name: DimTxnClass, value: func(t *core.Txn) string { return string(t.Class) }}, nil
	case DimTxnType, "type":
		return Dimension{Name: DimTxnType, value: func(t *core.Txn) string { return string(t.Type) }}, nil
	case DimEra:
		return Dimension{Name: DimEra, value: func(t *core.Txn) string { return t.Era }, empty: "No era"}, nil
	case DimYYYY:
		return Dimension{Name: DimYYYY, value: func(t *core.Txn) string { return strconv.Itoa(t.Date.Year()) }}, nil
	case DimDecade:
		return Dimension{Name: DimDecade, value: func(t *core.Txn) string { return strconv.Itoa(t.Date.Decade()) }}, nil
	}
	return Dimension{}, fmt.Errorf("unrecognized foreach dimension '%s'; must be one of %s", name, strings.Join(Dimensions, ", "))
}

// Value returns the group value of t.
func (d Dimension) Value(t *core.Txn) string {
	return d.value(t)
}

// Label is the display form of a group value.
func (d Dimension) Label(value string) string {
	if value == "" {
		if d.empty != "" {
			return d.empty
		}
		return "None"
	}
	if d.Name == DimDecade {
		decade, err := strconv.Atoi(value)
		if err == nil {
			return fmt.Sprintf("%d-%d", decade, decade+9)
		}
	}
	return value
}

// SheetName substitutes the label into the {{foreach}} placeholder of
// template. Without a placeholder the label is the name, except that
// calendar dimensions are appended to the template.
func (d Dimension) SheetName(template, value string) string {
	label := d.Label(value)
	if placeholder.MatchString(template) {
		if name := strings.TrimSpace(placeholder.ReplaceAllLiteralString(template, label)); name != "" {
			return name
		}
		return label
	}
	switch d.Name {
	case DimYYYY, DimDecade:
		return template + " " + label
	}
	return label
}

// Group is one partition. Value is the raw dimension value ("" when unset).
type Group[T any] struct {
	Value string
	Label string
	Items []T
}

// PartitionBy groups items by key preserving first-seen order of keys and
// the original order of items within each group.
func PartitionBy[T any](items []T, key func(*T) string) []Group[T] {
	index := map[string]int{}
	var groups []Group[T]
	for i := range items {
		k := key(&items[i])
		gi, ok := index[k]
		if !ok {
			gi = len(groups)
			index[k] = gi
			groups = append(groups, Group[T]{Value: k})
		}
		groups[gi].Items = append(groups[gi].Items, items[i])
	}
	return groups
}

// Partition splits txns by d. When known is given, values in known that have
// no transactions are appended as empty groups.
func (d Dimension) Partition(txns []core.Txn, known []string) []Group[core.Txn] {
	groups := PartitionBy(txns, d.value)
	return finishGroups(d, groups, known)
}

// PartitionAccounts splits accounts by account category or classification.
func (d Dimension) PartitionAccounts(accounts []core.Account, known []string) ([]Group[core.Account], error) {
	var key func(*core.Account) string
	switch d.Name {
	case DimAccountCategory:
		key = func(a *core.Account) string { return a.Category }
	case DimAccountClassification:
		key = func(a *core.Account) string { return string(a.Classification) }
	default:
		return nil, fmt.Errorf("foreach '%s' does not apply to accounts; must be one of %s", d.Name, strings.Join(AccountDimensions, ", "))
	}
	return finishGroups(d, PartitionBy(accounts, key), known), nil
}

func finishGroups[T any](d Dimension, groups []Group[T], known []string) []Group[T] {
	seen := map[string]bool{}
	for _, g := range groups {
		seen[g.Value] = true
	}
	for _, v := range known {
		if !seen[v] {
			seen[v] = true
			groups = append(groups, Group[T]{Value: v})
		}
	}
	for i := range groups {
		groups[i].Label = d.Label(groups[i].Value)
	}
	return groups
}

// Known lists every value d can take in snap, used to emit empty groups.
func (d Dimension) Known(snap *reconcile.Snapshot) []string {
	var out []string
	add := func(v string) {
		for _, have := range out {
			if have == v {
				return
			}
		}
		out = append(out, v)
	}
	switch d.Name {
	case DimAccount:
		for _, a := range snap.Accounts {
			if !a.XferOnly {
				add(a.Name)
			}
		}
	case DimAccountCategory:
		for _, a := range snap.Accounts {
			add(a.Category)
		}
	case DimAccountClassification:
		for _, a := range snap.Accounts {
			add(string(a.Classification))
		}
	case DimEra:
		out = snap.EraNames()
	default:
		for i := range snap.Txns {
			add(d.value(&snap.Txns[i]))
		}
	}
	return out
}
