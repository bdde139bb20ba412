// Package selection compiles the declarative select mapping of a workbook or
// worksheet into a predicate tree over transactions.
//
// Criteria are ANDed together; the values of one criterion are ORed. A
// criterion is negated by a leading "!" element or by "!"-prefixed values.
package selection

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"mnyxls/internal/config"
	"mnyxls/internal/core"
	"mnyxls/internal/log"
)

// Criterion names.
const (
	KeyAccount               = "account"
	KeyAccountCategory       = "account_category"
	KeyAccountClassification = "account_classification"
	KeyAmount                = "amount"
	KeyCategory              = "category"
	KeyEra                   = "era"
	KeyMemo                  = "memo"
	KeyPayee                 = "payee"
	KeyTxnClass              = "txnclass"
	KeyTxnType               = "txntype"
	KeyDateFrom              = "date_from"
	KeyDateTo                = "date_to"
	KeyYYYY                  = "yyyy"
)

var (
	// Keys lists every criterion in canonical form.
	Keys = []string{
		KeyAccount, KeyAccountCategory, KeyAccountClassification, KeyAmount, KeyCategory,
		KeyEra, KeyMemo, KeyPayee, KeyTxnClass, KeyTxnType, KeyDateFrom, KeyDateTo, KeyYYYY,
	}

	// WorkbookKeys are the criteria allowed in workbook.select.
	WorkbookKeys = []string{
		KeyAccount, KeyAccountCategory, KeyAccountClassification, KeyDateFrom, KeyDateTo, KeyYYYY,
	}

	// RewriteKeys are the criteria allowed in rewrites.select.
	RewriteKeys = []string{
		KeyAccount, KeyAmount, KeyCategory, KeyMemo, KeyPayee, KeyDateFrom, KeyDateTo, KeyYYYY,
	}

	aliases = map[string]string{
		"class": KeyTxnClass,
		"type":  KeyTxnType,
	}
)

// CanonicalKey resolves criterion aliases.
func CanonicalKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if k, ok := aliases[key]; ok {
		return k
	}
	return key
}

// Normalize returns sel with canonical keys. Unknown keys and empty value
// lists are configuration errors reported against directive.
func Normalize(sel config.Select, directive string) (config.Select, error) {
	out := make(config.Select, len(sel))
	for _, raw := range sortedKeys(sel) {
		key := CanonicalKey(raw)
		if !slices.Contains(Keys, key) {
			return nil, core.NewConfigError(directive+"."+raw, "unknown criterion; must be one of %s", strings.Join(Keys, ", "))
		}
		if _, dup := out[key]; dup {
			return nil, core.NewConfigError(directive+"."+raw, "criterion '%s' given more than once", key)
		}
		values, _ := splitNegation(sel[raw])
		if len(values) == 0 {
			return nil, core.NewConfigError(directive+"."+raw, "at least one value is required")
		}
		out[key] = sel[raw]
	}
	return out, nil
}

// Merge combines workbook and worksheet criteria. The workbook may only use
// WorkbookKeys; worksheet criteria replace workbook criteria key by key.
func Merge(workbook, worksheet config.Select, worksheetDirective string) (config.Select, error) {
	wb, err := Normalize(workbook, "workbook.select")
	if err != nil {
		return nil, err
	}
	for _, key := range sortedKeys(wb) {
		if !slices.Contains(WorkbookKeys, key) {
			return nil, core.NewConfigError("workbook.select."+key, "criterion not allowed at workbook level; must be one of %s", strings.Join(WorkbookKeys, ", "))
		}
	}
	ws, err := Normalize(worksheet, worksheetDirective)
	if err != nil {
		return nil, err
	}
	out := make(config.Select, len(wb)+len(ws))
	for k, v := range wb {
		out[k] = v
	}
	for k, v := range ws {
		out[k] = v
	}
	return out, nil
}

// Restrict keeps only the allowed keys of merged. A key the worksheet itself
// declared but that its sheet type does not support is an error; inherited
// workbook keys are dropped silently.
func Restrict(merged, worksheet config.Select, allowed []string, directive string) (config.Select, error) {
	declared := map[string]bool{}
	for k := range worksheet {
		declared[CanonicalKey(k)] = true
	}
	out := config.Select{}
	for _, key := range sortedKeys(merged) {
		if slices.Contains(allowed, key) {
			out[key] = merged[key]
			continue
		}
		if declared[key] {
			return nil, core.NewConfigError(directive+"."+key, "criterion not supported by this sheet type; must be one of %s", strings.Join(allowed, ", "))
		}
	}
	return out, nil
}

// SingleValue returns the value of key when it selects exactly one value
// without negation.
func SingleValue(sel config.Select, key string) (string, bool) {
	values, negated := splitNegation(sel[key])
	if negated || len(values) != 1 {
		return "", false
	}
	return values[0], true
}

// splitNegation strips the negation markers from values. The first value
// decides: "!" alone negates the rest, "!x" negates every value and the
// prefix is removed where present.
func splitNegation(values config.StringList) ([]string, bool) {
	if len(values) == 0 || !strings.HasPrefix(values[0], "!") {
		return values, false
	}
	if values[0] == "!" {
		return values[1:], true
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimPrefix(v, "!")
	}
	return out, true
}

// Env is what compilation needs besides the criteria.
type Env struct {
	// Directive prefixes configuration errors, e.g. "workbook.worksheets.Txns.select".
	Directive string
	// LatestTxnDate anchors relative dates such as "-3m".
	LatestTxnDate core.Date
	Logger        *log.Logger
}

func (e Env) logger() *log.Logger {
	if e.Logger == nil {
		return log.Discard()
	}
	return e.Logger
}

func (e Env) errorf(key, format string, args ...any) error {
	directive := key
	if e.Directive != "" {
		directive = e.Directive + "." + key
	}
	return core.NewConfigError(directive, format, args...)
}

// Compile builds the predicate for normalized criteria. An empty selection
// matches everything.
func Compile(sel config.Select, env Env) (Predicate, error) {
	var preds And
	for _, key := range sortedKeys(sel) {
		if key == KeyDateFrom || key == KeyDateTo {
			continue
		}
		p, err := compileCriterion(key, sel[key], env)
		if err != nil {
			return nil, err
		}
		if p != nil {
			preds = append(preds, p)
		}
	}

	if _, ok := sel[KeyYYYY]; ok {
		if _, from := sel[KeyDateFrom]; from {
			env.logger().Warn("'yyyy' overrides 'date_from'", "directive", env.Directive)
		}
		if _, to := sel[KeyDateTo]; to {
			env.logger().Warn("'yyyy' overrides 'date_to'", "directive", env.Directive)
		}
	} else {
		p, err := compileDateRange(sel, env)
		if err != nil {
			return nil, err
		}
		if p != nil {
			preds = append(preds, p)
		}
	}

	switch len(preds) {
	case 0:
		return All{}, nil
	case 1:
		return preds[0], nil
	}
	return preds, nil
}

func compileCriterion(key string, raw config.StringList, env Env) (Predicate, error) {
	switch key {
	case KeyAmount:
		return compileAmount(raw, env)
	}

	values, negated := splitNegation(raw)
	if len(values) == 0 {
		return nil, env.errorf(key, "at least one value is required")
	}

	var p Predicate
	switch key {
	case KeyAccount:
		p = stringIn(key, values, core.SameName, func(t *core.Txn) string { return t.Account })
	case KeyAccountCategory:
		p = stringIn(key, values, core.SameName, func(t *core.Txn) string { return t.AccountCategory })
	case KeyAccountClassification:
		classes := make([]string, len(values))
		for i, v := range values {
			c, ok := core.ParseClassification(v)
			if !ok {
				return nil, env.errorf(key, "invalid classification '%s'; must be Assets or Liabilities", v)
			}
			classes[i] = string(c)
		}
		p = stringIn(key, classes, equal, func(t *core.Txn) string { return string(t.AccountClassification) })
	case KeyCategory:
		p = categoryIn(values)
	case KeyEra:
		p = stringIn(key, values, equal, func(t *core.Txn) string { return t.Era })
	case KeyMemo:
		p = stringIn(key, values, equal, func(t *core.Txn) string { return t.Memo })
	case KeyPayee:
		p = stringIn(key, values, equal, func(t *core.Txn) string { return t.Payee })
	case KeyTxnClass:
		p = stringIn(key, values, strings.EqualFold, func(t *core.Txn) string { return string(t.Class) })
	case KeyTxnType:
		for _, v := range values {
			if _, ok := core.ParseTxnType(v); !ok {
				return nil, env.errorf(key, "invalid transaction type '%s'", v)
			}
		}
		p = stringIn(key, values, strings.EqualFold, func(t *core.Txn) string { return string(t.Type) })
	case KeyYYYY:
		years, err := parseYears(values)
		if err != nil {
			return nil, env.errorf(key, "%v", err)
		}
		p = yearIn(years)
	default:
		return nil, env.errorf(key, "unknown criterion")
	}

	if negated {
		return Not{P: p}, nil
	}
	return p, nil
}

func equal(a, b string) bool { return a == b }

func parseYears(values []string) ([]int, error) {
	years := make([]int, len(values))
	for i, v := range values {
		y, err := strconv.Atoi(v)
		if err != nil || len(v) != 4 {
			return nil, fmt.Errorf("invalid year '%s'", v)
		}
		years[i] = y
	}
	return years, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
