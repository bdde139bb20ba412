package workbook

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"mnyxls/internal/core"
	"mnyxls/internal/log"
)

// MaxSheetName is the spreadsheet limit on sheet name length.
const MaxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(
	"*", "_", "/", "_", `\`, "_", "?", "_", "[", "_", "]", "_", ":", "_",
)

// SafeSheetName replaces characters spreadsheets reject and truncates long
// names with an ellipsis.
func SafeSheetName(name string) string {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	if name == "" {
		return "Sheet"
	}
	if utf8.RuneCountInString(name) > MaxSheetName {
		name = truncate(name, MaxSheetName-3) + "..."
	}
	return name
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// sheetNames hands out unique names, ignoring case.
type sheetNames struct {
	used    map[string]bool
	claimed map[string]string
}

func newSheetNames() *sheetNames {
	return &sheetNames{used: map[string]bool{}, claimed: map[string]string{}}
}

// claim registers a use_existing request. A template sheet can be replaced
// once per run.
func (n *sheetNames) claim(name, directive string) error {
	key := strings.ToUpper(name)
	if prev, ok := n.claimed[key]; ok {
		return core.NewConfigError(directive+".use_existing", "worksheet '%s' is already replaced by '%s'", name, prev)
	}
	n.claimed[key] = directive
	return nil
}

// unique returns name or name with a " (n)" suffix that no earlier sheet
// uses.
func (n *sheetNames) unique(name string) string {
	candidate := name
	for i := 2; n.used[strings.ToUpper(candidate)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		candidate = truncate(name, MaxSheetName-len(suffix)) + suffix
	}
	n.used[strings.ToUpper(candidate)] = true
	return candidate
}

// finish drops or keeps empty sheets, assigns final names and enforces the
// sheet limit.
func (b *Builder) finish(all []resolved) ([]core.Sheet, error) {
	names := newSheetNames()
	sheets := make([]core.Sheet, 0, len(all))
	for _, r := range all {
		s := r.sheet
		if s.Empty() {
			warning := &core.EmptyResultWarning{Sheet: s.Name}
			if r.skipEmpty {
				b.logger.Debug("Skipping empty worksheet", log.FieldSheet, s.Name, log.FieldSheetType, s.Type)
				continue
			}
			b.logger.Warn(warning.Error(), log.FieldSheet, s.Name, log.FieldSheetType, s.Type)
		}

		requested := s.Name
		s.Name = SafeSheetName(s.Name)
		if s.UseExisting {
			if err := names.claim(s.Name, r.directive); err != nil {
				return nil, err
			}
		}
		name := names.unique(s.Name)
		if name != s.Name {
			s.UseExisting = false
		}
		s.Name = name
		if s.Name != requested {
			b.logger.Debug("Worksheet renamed", "requested", requested, log.FieldSheet, s.Name)
		}

		b.logger.Debug("Resolved worksheet", log.NewFields().WithSheet(s.Name, s.Type, len(s.Rows)).ToSlice()...)
		sheets = append(sheets, s)
	}

	if len(sheets) > MaxSheets {
		return nil, core.NewConfigError("workbook.worksheets", "too many worksheets (%d); limit is %d", len(sheets), MaxSheets)
	}
	if len(sheets) == 0 {
		b.logger.Warn("No worksheets were generated")
	}
	return sheets, nil
}
