package google

import (
	"fmt"
	"slices"
	"strings"

	"mnyxls/internal/core"
	ports "mnyxls/internal/sheets"

	"github.com/shopspring/decimal"
	gsheet "google.golang.org/api/sheets/v4"
)

type tab struct {
	title  string
	id     int64
	create bool
}

// planTabs picks the tab each sheet is written to, in sheet order.
func planTabs(existing []tab, sheets []core.Sheet) []tab {
	existing = slices.Clone(existing)
	taken := func(title string) int {
		for i, t := range existing {
			if strings.EqualFold(t.title, title) {
				return i
			}
		}
		return -1
	}
	out := make([]tab, len(sheets))
	for i, s := range sheets {
		j := taken(s.Name)
		if j >= 0 && s.UseExisting {
			out[i] = existing[j]
			continue
		}
		title := s.Name
		for n := 2; j >= 0; n++ {
			title = fmt.Sprintf("%s (%d)", s.Name, n)
			j = taken(title)
		}
		out[i] = tab{title: title, create: true}
		existing = append(existing, out[i])
	}
	return out
}

// assignIDs copies the ids of added tabs from the batch replies, which
// follow request order.
func assignIDs(targets []tab, replies []*gsheet.Response) {
	r := 0
	for i := range targets {
		if !targets[i].create {
			continue
		}
		if r < len(replies) && replies[r].AddSheet != nil && replies[r].AddSheet.Properties != nil {
			targets[i].id = replies[r].AddSheet.Properties.SheetId
		}
		r++
	}
}

// layoutRequests freezes the header row and index columns and resizes
// autofit sheets.
func layoutRequests(targets []tab, sheets []core.Sheet) []*gsheet.Request {
	var out []*gsheet.Request
	for i, s := range sheets {
		id := targets[i].id
		out = append(out, &gsheet.Request{UpdateSheetProperties: &gsheet.UpdateSheetPropertiesRequest{
			Properties: &gsheet.SheetProperties{
				SheetId: id,
				GridProperties: &gsheet.GridProperties{
					FrozenRowCount:    1,
					FrozenColumnCount: int64(s.IndexColumns),
					ForceSendFields:   []string{"FrozenColumnCount"},
				},
				ForceSendFields: []string{"SheetId"},
			},
			Fields: "gridProperties.frozenRowCount,gridProperties.frozenColumnCount",
		}})
		if s.Autofit && len(s.Columns) > 0 {
			out = append(out, &gsheet.Request{AutoResizeDimensions: &gsheet.AutoResizeDimensionsRequest{
				Dimensions: &gsheet.DimensionRange{
					SheetId:         id,
					Dimension:       "COLUMNS",
					StartIndex:      0,
					EndIndex:        int64(len(s.Columns)),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			}})
		}
	}
	return out
}

// values renders a sheet as a header row plus data rows.
func values(s core.Sheet) [][]any {
	out := make([][]any, 0, len(s.Rows)+1)
	header := make([]any, len(s.Columns))
	for i, c := range s.Columns {
		header[i] = c
	}
	out = append(out, header)
	for _, row := range s.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = cellValue(v)
		}
		out = append(out, cells)
	}
	return out
}

func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case decimal.Decimal:
		return ports.Number(x)
	case core.Date:
		return x.String()
	}
	return v
}

// a1 quotes a tab title for A1 notation.
func a1(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
