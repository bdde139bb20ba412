package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mnyxls/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

var asOfPattern = regexp.MustCompile(`^As of ([\d/]+)`)

// record is one non-blank CSV row and the physical line it started on.
type record struct {
	Line   int
	Fields []string
}

// rawReport is a decoded report file before any kind-specific parsing.
type rawReport struct {
	Path    string
	ModTime time.Time
	Records []record
}

func readFile(path string) (*rawReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat report: %w", err)
	}
	return readRaw(path, f, info.ModTime())
}

// readRaw decodes Windows-1252 text and tokenizes it as CSV. Money pads rows
// inconsistently so the field count is not enforced.
func readRaw(path string, r io.Reader, modTime time.Time) (*rawReport, error) {
	cr := csv.NewReader(charmap.Windows1252.NewDecoder().Reader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	raw := &rawReport{Path: path, ModTime: modTime}
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &core.ParseError{File: path, Msg: err.Error()}
		}
		line, _ := cr.FieldPos(0)
		if isBlank(fields) {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		raw.Records = append(raw.Records, record{Line: line, Fields: fields})
	}
	return raw, nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// headerIndex returns the position of the first record within limit whose
// first field is name.
func (r *rawReport) headerIndex(name string, limit int) int {
	for i, rec := range r.Records {
		if limit > 0 && i >= limit {
			break
		}
		if len(rec.Fields) > 1 && rec.Fields[0] == name {
			return i
		}
	}
	return -1
}

// hasRowStarting reports whether any record's first field equals name.
func (r *rawReport) hasRowStarting(name string) bool {
	for _, rec := range r.Records {
		if len(rec.Fields) > 1 && rec.Fields[0] == name {
			return true
		}
	}
	return false
}

// asOf finds an "As of MM/DD/YYYY" title line within limit records.
func (r *rawReport) asOf(limit int) (core.Date, bool) {
	for i, rec := range r.Records {
		if i >= limit {
			break
		}
		m := asOfPattern.FindStringSubmatch(rec.Fields[0])
		if m == nil {
			continue
		}
		if d, err := core.ParseReportDate(m[1]); err == nil {
			return d, true
		}
	}
	return core.Date{}, false
}

// asOfOrModTime falls back to the file modification date.
func (r *rawReport) asOfOrModTime(limit int) (core.Date, bool) {
	if d, ok := r.asOf(limit); ok {
		return d, true
	}
	return core.DateOf(r.ModTime), false
}

func (r *rawReport) fail(line int, field, format string, args ...any) error {
	return &core.ParseError{File: r.Path, Line: line, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// table is the header-mapped view of the records following a header row.
type table struct {
	raw     *rawReport
	columns map[string]int
	names   []string
	rows    []record
}

// newTable locates the header and maps column names. Duplicate names get a
// ".1", ".2" suffix in order of appearance.
func newTable(raw *rawReport, required []string, limit int) (*table, error) {
	idx := raw.headerIndex(required[0], limit)
	if idx < 0 {
		return nil, raw.fail(0, "", "failed to find header row; looking for '%s'", required[0])
	}
	header := raw.Records[idx]
	t := &table{raw: raw, columns: map[string]int{}, rows: raw.Records[idx+1:]}
	seen := map[string]int{}
	for i, name := range header.Fields {
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n)
		} else {
			seen[name] = 1
		}
		t.columns[name] = i
		t.names = append(t.names, name)
	}

	var missing []string
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, raw.fail(header.Line, "", "missing columns: %s", strings.Join(missing, ", "))
	}
	return t, nil
}

func (t *table) has(col string) bool {
	_, ok := t.columns[col]
	return ok
}

// get returns the cell or "" when the row is short or the column is absent.
func (t *table) get(rec record, col string) string {
	i, ok := t.columns[col]
	if !ok || i >= len(rec.Fields) {
		return ""
	}
	return rec.Fields[i]
}

func (t *table) amount(rec record, col string) (decimal.NullDecimal, error) {
	v, err := core.ParseAmount(t.get(rec, col))
	if err != nil {
		return v, t.raw.fail(rec.Line, col, "%v", err)
	}
	return v, nil
}

// dateColumns returns the header columns named MM/DD/YYYY in header order.
func (t *table) dateColumns() []dateColumn {
	var out []dateColumn
	for _, name := range t.names {
		if d, err := core.ParseReportDate(name); err == nil {
			out = append(out, dateColumn{Name: name, Date: d})
		}
	}
	return out
}

type dateColumn struct {
	Name string
	Date core.Date
}
