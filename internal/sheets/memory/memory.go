package memory

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"

	"mnyxls/internal/core"
	ports "mnyxls/internal/sheets"
)

var (
	_ ports.WorkbookWriter = (*Store)(nil)
	_ ports.WorkbookReader = (*Store)(nil)
)

// Store keeps the last written workbook in memory. Template sheets seeded
// with New behave like sheets of an existing workbook: a sheet marked
// UseExisting replaces its template in place, every other sheet is added
// after the templates.
type Store struct {
	mu        sync.Mutex
	templates []core.Sheet
	sheets    []core.Sheet
	writes    int
}

func New(templates ...core.Sheet) *Store {
	return &Store{templates: dedupe(templates)}
}

// Write replaces the stored workbook.
func (s *Store) Write(ctx context.Context, sheets []core.Sheet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := slices.Clone(s.templates)
	for _, sh := range sheets {
		sh.Rows = slices.Clone(sh.Rows)
		i := slices.IndexFunc(out, func(t core.Sheet) bool { return strings.EqualFold(t.Name, sh.Name) })
		switch {
		case i >= 0 && sh.UseExisting:
			out[i] = sh
		case i >= 0:
			// A template keeps its name; the new sheet takes a unique one.
			sh.Name = uniqueName(out, sh.Name)
			out = append(out, sh)
		default:
			out = append(out, sh)
		}
	}
	s.sheets = out
	s.writes++
	return nil
}

// Sheet returns the named sheet, ignoring case.
func (s *Store) Sheet(name string) (core.Sheet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range s.sheets {
		if strings.EqualFold(sh.Name, name) {
			return sh, true
		}
	}
	return core.Sheet{}, false
}

// Names lists the stored sheets in workbook order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sheets))
	for i, sh := range s.sheets {
		out[i] = sh.Name
	}
	return out
}

// Writes counts successful calls to Write.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func uniqueName(sheets []core.Sheet, name string) string {
	taken := func(n string) bool {
		return slices.ContainsFunc(sheets, func(t core.Sheet) bool { return strings.EqualFold(t.Name, n) })
	}
	candidate := name
	for i := 2; taken(candidate); i++ {
		candidate = name + " (" + strconv.Itoa(i) + ")"
	}
	return candidate
}

func dedupe(in []core.Sheet) []core.Sheet {
	out := make([]core.Sheet, 0, len(in))
	for _, sh := range in {
		if strings.TrimSpace(sh.Name) == "" {
			continue
		}
		if slices.ContainsFunc(out, func(t core.Sheet) bool { return strings.EqualFold(t.Name, sh.Name) }) {
			continue
		}
		out = append(out, sh)
	}
	return out
}
