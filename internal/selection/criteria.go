package selection

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mnyxls/internal/config"
	"mnyxls/internal/core"

	"github.com/shopspring/decimal"
)

var (
	amountPattern   = regexp.MustCompile(`^([<>=!]+)\s*(-?[\d,.]+)$`)
	relativePattern = regexp.MustCompile(`^-?(\d+)([dwmy])$`)
)

var amountOps = map[string]func(a, b decimal.Decimal) bool{
	"=":  func(a, b decimal.Decimal) bool { return a.Equal(b) },
	"!":  func(a, b decimal.Decimal) bool { return !a.Equal(b) },
	"!=": func(a, b decimal.Decimal) bool { return !a.Equal(b) },
	"<":  func(a, b decimal.Decimal) bool { return a.LessThan(b) },
	"<=": func(a, b decimal.Decimal) bool { return a.LessThanOrEqual(b) },
	">":  func(a, b decimal.Decimal) bool { return a.GreaterThan(b) },
	">=": func(a, b decimal.Decimal) bool { return a.GreaterThanOrEqual(b) },
}

// compileAmount accepts "op value", [op, value] or ["<>", lower, upper]. A
// bare value means equality.
func compileAmount(values config.StringList, env Env) (Predicate, error) {
	if len(values) == 0 {
		return nil, env.errorf(KeyAmount, "at least one value is required")
	}
	parse := func(s string) (decimal.Decimal, error) {
		v, err := core.ParseAmount(s)
		if err != nil || !v.Valid {
			return decimal.Decimal{}, env.errorf(KeyAmount, "'%s': amount is not a decimal number", s)
		}
		return v.Decimal, nil
	}

	if strings.HasPrefix(values[0], "<>") {
		if len(values) != 3 {
			return nil, env.errorf(KeyAmount, "operator requires 3 values ['<>', <lower>, <upper>]")
		}
		lo, err := parse(values[1])
		if err != nil {
			return nil, err
		}
		hi, err := parse(values[2])
		if err != nil {
			return nil, err
		}
		if hi.LessThan(lo) {
			lo, hi = hi, lo
		}
		return leaf{
			desc: fmt.Sprintf("amount BETWEEN %s AND %s", lo, hi),
			fn: func(t *core.Txn) bool {
				return t.Amount.GreaterThanOrEqual(lo) && t.Amount.LessThanOrEqual(hi)
			},
		}, nil
	}

	var op, text string
	switch len(values) {
	case 1:
		if m := amountPattern.FindStringSubmatch(strings.TrimSpace(values[0])); m != nil {
			op, text = m[1], m[2]
		} else {
			op, text = "=", values[0]
		}
	case 2:
		op, text = strings.TrimSpace(values[0]), values[1]
	default:
		return nil, env.errorf(KeyAmount, "expected 'op value', [op, value] or ['<>', lower, upper]")
	}
	cmp, ok := amountOps[op]
	if !ok {
		return nil, env.errorf(KeyAmount, "'%s': invalid operator", op)
	}
	want, err := parse(text)
	if err != nil {
		return nil, err
	}
	return leaf{
		desc: fmt.Sprintf("amount %s %s", op, want),
		fn:   func(t *core.Txn) bool { return cmp(t.Amount, want) },
	}, nil
}

// compileDateRange handles date_from and date_to. Swapped bounds are
// corrected with a warning.
func compileDateRange(sel config.Select, env Env) (Predicate, error) {
	var from, to core.Date
	if values, ok := sel[KeyDateFrom]; ok && len(values) > 0 {
		d, err := ParseDateSpec(values[0], env.LatestTxnDate, true)
		if err != nil {
			return nil, env.errorf(KeyDateFrom, "%v", err)
		}
		from = d
	}
	if values, ok := sel[KeyDateTo]; ok && len(values) > 0 {
		d, err := ParseDateSpec(values[0], env.LatestTxnDate, false)
		if err != nil {
			return nil, env.errorf(KeyDateTo, "%v", err)
		}
		to = d
	}
	if from.IsZero() && to.IsZero() {
		return nil, nil
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		env.logger().Warn("'date_to' is before 'date_from'; swapping",
			"directive", env.Directive, "date_from", from.String(), "date_to", to.String())
		from, to = to, from
	}
	return dateBetween(from, to), nil
}

// ParseDateSpec parses YYYY, YYYY-MM, YYYY-MM-DD or a relative "-N[dwmy]"
// measured back from latest. firstDay selects the start of a period rather
// than its end.
func ParseDateSpec(spec string, latest core.Date, firstDay bool) (core.Date, error) {
	spec = strings.TrimSpace(spec)
	if m := relativePattern.FindStringSubmatch(spec); m != nil {
		return relativeDate(m, latest, firstDay)
	}
	return core.ParsePartialDate(spec, !firstDay)
}

func relativeDate(m []string, latest core.Date, firstDay bool) (core.Date, error) {
	if latest.IsZero() {
		return core.Date{}, fmt.Errorf("relative date '%s' needs at least one transaction", m[0])
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid relative date '%s'", m[0])
	}

	var d core.Date
	switch m[2] {
	case "d", "w":
		if n == 0 {
			return core.Date{}, fmt.Errorf("invalid relative date '%s': must be at least 1", m[0])
		}
		if m[2] == "w" {
			n *= 7
		}
		return core.DateOf(latest.AddDate(0, 0, -n)), nil
	case "m":
		d = latest.FirstOfMonth().AddMonths(-n)
	case "y":
		month := 12
		if firstDay {
			month = 1
		}
		d = core.NewDate(latest.Year()-n, month, 1)
	}
	if !firstDay {
		d = d.LastOfMonth()
	}
	return d, nil
}
