package pivot

import (
	"slices"
	"strings"

	"mnyxls/internal/config"
	"mnyxls/internal/core"
)

// Dimension names for options.rows and options.columns.
const (
	Era                   = "era"
	AccountClassification = "account_classification"
	AccountCategory       = "account_category"
	Account               = "account"
	TxnType               = "txntype"
	TxnClass              = "txnclass"
	Category              = "category"
	CategorySubcategory   = "category_subcategory"
	Subcategory           = "subcategory"
	Payee                 = "payee"
	YYYY                  = "yyyy"
	YYYYMM                = "yyyymm"

	// Total collapses the columns into a single grand total per row.
	Total = "total"
)

var (
	// RowDims is ordered by hierarchy; chosen rows are emitted in this order.
	RowDims = []string{
		Era, AccountClassification, AccountCategory, Account, TxnType, TxnClass,
		Category, CategorySubcategory, Subcategory, Payee, YYYY, YYYYMM,
	}

	// ColumnDims is ordered by hierarchy like RowDims.
	ColumnDims = []string{
		Era, AccountClassification, AccountCategory, TxnType, TxnClass, Category, YYYY, YYYYMM, Total,
	}

	DefaultRows    = []string{Category, Subcategory}
	DefaultColumns = []string{YYYY}

	aliases = map[string]string{"type": TxnType, "class": TxnClass}

	headers = map[string]string{
		Era:                   "Era",
		AccountClassification: "AccountClassification",
		AccountCategory:       "AccountCategory",
		Account:               "Account",
		TxnType:               "TxnType",
		TxnClass:              "TxnClass",
		Category:              "Category",
		CategorySubcategory:   "CategorySubcategory",
		Subcategory:           "Subcategory",
		Payee:                 "Payee",
		YYYY:                  "Year",
		YYYYMM:                "Month",
	}
)

// Options are validated pivot dimensions.
type Options struct {
	Rows    []string
	Columns []string
	// TotalOnly replaces the column breakdown with one total column.
	TotalOnly bool
}

// Header is the column heading of a row dimension.
func Header(dim string) string {
	if h, ok := headers[dim]; ok {
		return h
	}
	return dim
}

// ParseOptions validates and normalizes worksheet pivot options. Duplicates
// are removed, category_subcategory replaces category and subcategory,
// subcategory implies category, and dimensions are put in hierarchy order.
// directive prefixes configuration errors, e.g. "workbook.worksheets.Pivot".
func ParseOptions(opts config.Options, directive string) (Options, error) {
	rows, err := normalize(opts.Rows, RowDims, directive+".options.rows")
	if err != nil {
		return Options{}, err
	}
	columns, err := normalize(opts.Columns, ColumnDims, directive+".options.columns")
	if err != nil {
		return Options{}, err
	}
	if len(rows) == 0 {
		rows = slices.Clone(DefaultRows)
	}

	out := Options{Rows: rows}
	if slices.Contains(columns, Total) {
		out.TotalOnly = true
		return out, nil
	}
	if len(columns) == 0 {
		columns = slices.Clone(DefaultColumns)
	}
	out.Columns = columns

	var overlap []string
	for _, c := range columns {
		if slices.Contains(rows, c) {
			overlap = append(overlap, c)
		}
	}
	if len(overlap) > 0 {
		return Options{}, core.NewConfigError(directive+".options", "pivot columns and pivot rows cannot overlap; both contain %s", strings.Join(overlap, ", "))
	}
	return out, nil
}

func normalize(values []string, valid []string, directive string) ([]string, error) {
	var out []string
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if a, ok := aliases[v]; ok {
			v = a
		}
		if !slices.Contains(valid, v) {
			return nil, core.NewConfigError(directive, "invalid option '%s'; must be one of %s", v, strings.Join(valid, ", "))
		}
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}

	if slices.Contains(out, CategorySubcategory) {
		out = slices.DeleteFunc(out, func(v string) bool { return v == Category || v == Subcategory })
	} else if slices.Contains(out, Subcategory) && !slices.Contains(out, Category) {
		out = append(out, Category)
	}

	slices.SortFunc(out, func(a, b string) int {
		return slices.Index(valid, a) - slices.Index(valid, b)
	})
	return out, nil
}
