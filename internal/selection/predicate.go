package selection

import (
	"fmt"
	"slices"
	"strings"

	"mnyxls/internal/core"
)

// Predicate is a compiled selection node.
type Predicate interface {
	Match(t *core.Txn) bool
	String() string
}

// All matches every transaction.
type All struct{}

func (All) Match(*core.Txn) bool { return true }
func (All) String() string       { return "all" }

// And matches when every child matches.
type And []Predicate

func (a And) Match(t *core.Txn) bool {
	for _, p := range a {
		if !p.Match(t) {
			return false
		}
	}
	return true
}

func (a And) String() string { return join("AND", a) }

// Or matches when any child matches.
type Or []Predicate

func (o Or) Match(t *core.Txn) bool {
	for _, p := range o {
		if p.Match(t) {
			return true
		}
	}
	return false
}

func (o Or) String() string { return join("OR", o) }

type Not struct {
	P Predicate
}

func (n Not) Match(t *core.Txn) bool { return !n.P.Match(t) }
func (n Not) String() string         { return "NOT " + n.P.String() }

func join(op string, ps []Predicate) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}

// leaf is a single comparison.
type leaf struct {
	desc string
	fn   func(*core.Txn) bool
}

func (l leaf) Match(t *core.Txn) bool { return l.fn(t) }
func (l leaf) String() string         { return l.desc }

func stringIn(key string, values []string, eq func(a, b string) bool, field func(*core.Txn) string) Predicate {
	return leaf{
		desc: fmt.Sprintf("%s IN %q", key, values),
		fn: func(t *core.Txn) bool {
			v := field(t)
			return slices.ContainsFunc(values, func(want string) bool { return eq(v, want) })
		},
	}
}

// categoryIn matches "Cat" as the category with all its subcategories,
// "Cat:" as the root category only and "Cat:Sub" exactly.
func categoryIn(values []string) Predicate {
	var or Or
	for _, v := range values {
		v := strings.TrimSpace(v)
		switch {
		case strings.HasSuffix(v, ":"):
			cat := strings.TrimSpace(strings.TrimSuffix(v, ":"))
			or = append(or, leaf{
				desc: fmt.Sprintf("category = %q AND subcategory = \"\"", cat),
				fn:   func(t *core.Txn) bool { return t.Category == cat && t.Subcategory == "" },
			})
		case strings.Contains(v, ":"):
			key := core.SplitCategoryPair(v)
			or = append(or, leaf{
				desc: fmt.Sprintf("category = %q AND subcategory = %q", key.Category, key.Subcategory),
				fn:   func(t *core.Txn) bool { return t.Category == key.Category && t.Subcategory == key.Subcategory },
			})
		default:
			or = append(or, leaf{
				desc: fmt.Sprintf("category = %q", v),
				fn:   func(t *core.Txn) bool { return t.Category == v },
			})
		}
	}
	if len(or) == 1 {
		return or[0]
	}
	return or
}

func yearIn(years []int) Predicate {
	return leaf{
		desc: fmt.Sprintf("yyyy IN %v", years),
		fn:   func(t *core.Txn) bool { return slices.Contains(years, t.Date.Year()) },
	}
}

func dateBetween(from, to core.Date) Predicate {
	return leaf{
		desc: fmt.Sprintf("date BETWEEN %q AND %q", from, to),
		fn:   func(t *core.Txn) bool { return t.Date.Between(from, to) },
	}
}

// Filter returns the transactions matching p in their original order.
func Filter(txns []core.Txn, p Predicate) []core.Txn {
	out := make([]core.Txn, 0, len(txns))
	for i := range txns {
		if p.Match(&txns[i]) {
			out = append(out, txns[i])
		}
	}
	return out
}
