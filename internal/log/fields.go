package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRunID      = "run_id"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldReport     = "report"
	FieldReportKind = "report_kind"
	FieldLine       = "line"
	FieldAsOf       = "as_of"
	FieldAccount    = "account"
	FieldCategory   = "category"
	FieldSheet      = "sheet"
	FieldSheetType  = "sheet_type"
	FieldRows       = "rows"
	FieldCount      = "count"
	FieldDateFrom   = "date_from"
	FieldDateTo     = "date_to"
	FieldPath       = "path"
	FieldDuration   = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentReport    = "report"
	ComponentReconcile = "reconcile"
	ComponentSelection = "selection"
	ComponentWorkbook  = "workbook"
	ComponentStorage   = "storage"
	ComponentSheets    = "sheets"
	ComponentNotify    = "notify"
	ComponentConfig    = "config"
)

// Operations defines standard operation names
const (
	OpParse     = "parse"
	OpReconcile = "reconcile"
	OpResolve   = "resolve"
	OpRender    = "render"
	OpPersist   = "persist"
	OpPublish   = "publish"
	OpValidate  = "validate"
	OpStartup   = "startup"
	OpImport    = "import"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeParse         = "parse_error"
	ErrorTypeReconcile     = "reconciliation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithReport adds the report path and kind
func (f LogFields) WithReport(path, kind string) LogFields {
	f[FieldReport] = path
	f[FieldReportKind] = kind
	return f
}

func (f LogFields) WithSheet(name, sheetType string, rows int) LogFields {
	f[FieldSheet] = name
	f[FieldSheetType] = sheetType
	f[FieldRows] = rows
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
