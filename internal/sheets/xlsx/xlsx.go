// Package xlsx writes resolved worksheets to an Excel workbook.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"mnyxls/internal/core"
	"mnyxls/internal/log"
	ports "mnyxls/internal/sheets"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var _ ports.WorkbookWriter = (*Writer)(nil)

const (
	minColumnWidth = 8
	maxColumnWidth = 60

	dateFormat   = "yyyy-mm-dd"
	amountFormat = "#,##0.00;[Red]-#,##0.00"
)

// Writer renders sheets into the file at Path. When Template names an
// existing workbook, output starts from a copy of it.
type Writer struct {
	Path     string
	Template string
	logger   *log.Logger
}

func New(path, template string, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Writer{Path: path, Template: template, logger: logger.WithComponent(log.ComponentSheets)}
}

type styles struct {
	header, date, amount int
}

// Write builds the workbook and atomically replaces Path with it.
func (w *Writer) Write(ctx context.Context, sheets []core.Sheet) error {
	if w.Path == "" {
		return errors.New("missing xlsx output path")
	}
	start := time.Now()
	logger := log.FromContext(ctx, w.logger)

	f, templated, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	existing := f.GetSheetList()
	placeholder := ""
	if !templated && len(existing) == 1 {
		placeholder = existing[0]
	}

	for _, s := range sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, err := w.prepare(f, s, placeholder, logger)
		if err != nil {
			return fmt.Errorf("sheet %s: %w", s.Name, err)
		}
		if err := writeSheet(f, name, s, st); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
		logger.DebugContext(ctx, "Rendered worksheet", log.NewFields().WithSheet(name, s.Type, len(s.Rows)).ToSlice()...)
	}

	if placeholder != "" && len(sheets) > 0 && !slices.ContainsFunc(sheets, func(s core.Sheet) bool { return strings.EqualFold(s.Name, placeholder) }) {
		if err := f.DeleteSheet(placeholder); err != nil {
			return fmt.Errorf("remove default sheet: %w", err)
		}
	}
	f.SetActiveSheet(0)

	if err := w.save(f); err != nil {
		return err
	}
	logger.InfoContext(ctx, "Wrote workbook",
		log.FieldOperation, log.OpRender,
		log.FieldPath, w.Path,
		log.FieldCount, len(sheets),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (w *Writer) open() (*excelize.File, bool, error) {
	if w.Template == "" {
		return excelize.NewFile(), false, nil
	}
	f, err := excelize.OpenFile(w.Template)
	if err != nil {
		return nil, false, fmt.Errorf("open template %s: %w", w.Template, err)
	}
	return f, true, nil
}

// prepare returns the name to render s under. A template sheet is cleared
// and reused when s asks for it; otherwise a new sheet is added with a name
// no template sheet uses.
func (w *Writer) prepare(f *excelize.File, s core.Sheet, placeholder string, logger *log.Logger) (string, error) {
	current := f.GetSheetList()
	i := slices.IndexFunc(current, func(n string) bool { return strings.EqualFold(n, s.Name) })
	if i >= 0 && (s.UseExisting || strings.EqualFold(current[i], placeholder)) {
		return current[i], clearSheet(f, current[i])
	}
	name := s.Name
	for n := 2; i >= 0; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncate(s.Name, 31-len(suffix)) + suffix
		i = slices.IndexFunc(current, func(c string) bool { return strings.EqualFold(c, name) })
	}
	if name != s.Name {
		logger.Warn("Worksheet name taken by template", log.FieldSheet, s.Name, "renamed", name)
	}
	_, err := f.NewSheet(name)
	return name, err
}

func clearSheet(f *excelize.File, name string) error {
	rows, err := f.GetRows(name)
	if err != nil {
		return err
	}
	for r, row := range rows {
		for c := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue(name, cell, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	if st.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return st, err
	}
	df := dateFormat
	if st.date, err = f.NewStyle(&excelize.Style{CustomNumFmt: &df}); err != nil {
		return st, err
	}
	af := amountFormat
	st.amount, err = f.NewStyle(&excelize.Style{CustomNumFmt: &af})
	return st, err
}

func writeSheet(f *excelize.File, name string, s core.Sheet, st styles) error {
	header := make([]any, len(s.Columns))
	for i, c := range s.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	if len(s.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(s.Columns), 1)
		if err := f.SetCellStyle(name, "A1", last, st.header); err != nil {
			return err
		}
	}

	widths := make([]int, len(s.Columns))
	for i, c := range s.Columns {
		widths[i] = utf8.RuneCountInString(c)
	}
	kinds := make([]int, len(s.Columns))

	for r, row := range s.Rows {
		values := make([]any, len(row))
		for c, v := range row {
			values[c] = cellValue(v)
			if c < len(widths) {
				widths[c] = max(widths[c], utf8.RuneCountInString(display(v)))
				switch v.(type) {
				case core.Date:
					kinds[c] = st.date
				case decimal.Decimal:
					kinds[c] = st.amount
				}
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return err
		}
	}

	for c, style := range kinds {
		if style == 0 || len(s.Rows) == 0 {
			continue
		}
		top, _ := excelize.CoordinatesToCellName(c+1, 2)
		bottom, _ := excelize.CoordinatesToCellName(c+1, len(s.Rows)+1)
		if err := f.SetCellStyle(name, top, bottom, style); err != nil {
			return err
		}
	}

	if s.Autofit {
		for c, width := range widths {
			col, _ := excelize.ColumnNumberToName(c + 1)
			w := float64(min(max(width+2, minColumnWidth), maxColumnWidth))
			if err := f.SetColWidth(name, col, col, w); err != nil {
				return err
			}
		}
	}

	topLeft, _ := excelize.CoordinatesToCellName(s.IndexColumns+1, 2)
	return f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		XSplit:      s.IndexColumns,
		YSplit:      1,
		TopLeftCell: topLeft,
		ActivePane:  "bottomRight",
	})
}

// cellValue converts a sheet value into one excelize stores natively.
func cellValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return ports.Number(x)
	case core.Date:
		return x.Time
	}
	return v
}

func display(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case decimal.Decimal:
		return core.FormatAmount(x)
	case core.Date:
		return x.String()
	}
	return fmt.Sprint(v)
}

// save writes to a temporary file next to Path and renames it into place.
func (w *Writer) save(f *excelize.File) error {
	dir := filepath.Dir(w.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".mnyxls-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()

	if err := f.SaveAs(tmpName); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save workbook: %w", err)
	}
	if err := os.Rename(tmpName, w.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", w.Path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
