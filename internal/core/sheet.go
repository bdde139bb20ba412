package core

// Sheet is one resolved worksheet, ready to be rendered. Cell values are
// string, int, bool, decimal.Decimal, Date or nil for a blank cell.
type Sheet struct {
	Name    string
	Type    string
	Columns []string
	Rows    [][]any

	// IndexColumns counts the leading columns that label rows, e.g. the row
	// dimensions of a pivot. Writers freeze them.
	IndexColumns int

	// UseExisting asks the writer to replace a template sheet of the same
	// name instead of adding a new one.
	UseExisting bool
	Autofit     bool
}

// Empty reports whether the sheet has no data rows.
func (s *Sheet) Empty() bool {
	return len(s.Rows) == 0
}
