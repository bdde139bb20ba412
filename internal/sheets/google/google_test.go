package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mnyxls/internal/config"
	"mnyxls/internal/core"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestNewFromConfig_MissingSpreadsheetID(t *testing.T) {
	_, err := NewFromConfig(context.Background(), config.GoogleConfig{}, nil)
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromConfig_MissingCredentialsFile(t *testing.T) {
	_, err := NewFromConfig(context.Background(), config.GoogleConfig{
		SpreadsheetID:   "test-id",
		CredentialsFile: t.TempDir() + "/missing.json",
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got: %v", err)
	}
}

func TestClient_WriteWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if err := c.Write(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil service")
	}
}

func TestPlanTabs(t *testing.T) {
	existing := []tab{{title: "Summary", id: 7}, {title: "Notes", id: 8}}
	sheets := []core.Sheet{
		{Name: "summary", UseExisting: true},
		{Name: "Notes"},
		{Name: "Notes (2)"},
		{Name: "Txns"},
	}
	got := planTabs(existing, sheets)
	want := []tab{
		{title: "Summary", id: 7},
		{title: "Notes (2)", create: true},
		{title: "Notes (2) (2)", create: true},
		{title: "Txns", create: true},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tab %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestValues(t *testing.T) {
	s := core.Sheet{
		Columns: []string{"Date", "Payee", "Amount", "Memo"},
		Rows:    [][]any{{core.NewDate(2023, 1, 5), "Shop", decimal.RequireFromString("-50.25"), nil}},
	}
	got := values(s)
	if len(got) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(got))
	}
	if got[0][1] != "Payee" {
		t.Errorf("header = %v", got[0])
	}
	row := got[1]
	if row[0] != "2023-01-05" || row[1] != "Shop" || row[2] != -50.25 || row[3] != "" {
		t.Errorf("row = %#v", row)
	}
}

func TestA1(t *testing.T) {
	if got := a1("Bob's sheet"); got != "'Bob''s sheet'" {
		t.Errorf("a1 = %q", got)
	}
}

func TestLayoutRequests(t *testing.T) {
	targets := []tab{{title: "Pivot", id: 0}, {title: "Txns", id: 5}}
	sheets := []core.Sheet{
		{Name: "Pivot", Columns: []string{"Category", "Total"}, IndexColumns: 1, Autofit: true},
		{Name: "Txns", Columns: []string{"N"}},
	}
	reqs := layoutRequests(targets, sheets)
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(reqs))
	}
	if reqs[0].UpdateSheetProperties.Properties.GridProperties.FrozenColumnCount != 1 {
		t.Errorf("pivot should freeze its index column")
	}
	if reqs[1].AutoResizeDimensions.Dimensions.EndIndex != 2 {
		t.Errorf("autofit should cover both columns")
	}
	if reqs[2].UpdateSheetProperties.Properties.SheetId != 5 {
		t.Errorf("unexpected sheet id")
	}
}

// fakeSheets records the calls a Client makes against the Sheets API.
type fakeSheets struct {
	calls  []string
	values *gsheet.BatchUpdateValuesRequest
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	f.calls = append(f.calls, r.Method+" "+path)
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sid"):
		w.Write([]byte(`{"sheets":[{"properties":{"sheetId":3,"title":"Summary"}}]}`))
	case strings.HasSuffix(path, "/values:batchUpdate"):
		f.values = &gsheet.BatchUpdateValuesRequest{}
		json.NewDecoder(r.Body).Decode(f.values)
		w.Write([]byte(`{}`))
	case strings.HasSuffix(path, ":clear"):
		w.Write([]byte(`{}`))
	case strings.HasSuffix(path, "/spreadsheets/sid:batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := gsheet.BatchUpdateSpreadsheetResponse{}
		for i, rq := range req.Requests {
			reply := &gsheet.Response{}
			if rq.AddSheet != nil {
				reply.AddSheet = &gsheet.AddSheetResponse{Properties: &gsheet.SheetProperties{SheetId: int64(100 + i), Title: rq.AddSheet.Properties.Title}}
			}
			resp.Replies = append(resp.Replies, reply)
		}
		json.NewEncoder(w).Encode(resp)
	default:
		http.NotFound(w, r)
	}
}

func TestClient_Write(t *testing.T) {
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(), goption.WithEndpoint(srv.URL+"/"), goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	c := NewWithService(svc, "sid", nil)

	err = c.Write(context.Background(), []core.Sheet{
		{Name: "Summary", UseExisting: true, Columns: []string{"Account"}, Rows: [][]any{{"Checking"}}},
		{Name: "Txns", Columns: []string{"Amount"}, Rows: [][]any{{decimal.NewFromInt(-20)}}, Autofit: true},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	var cleared, added bool
	for _, call := range fake.calls {
		if strings.HasSuffix(call, "'Summary':clear") {
			cleared = true
		}
		if strings.HasSuffix(call, "sid:batchUpdate") {
			added = true
		}
	}
	if !cleared || !added {
		t.Fatalf("unexpected calls: %v", fake.calls)
	}
	if fake.values == nil || len(fake.values.Data) != 2 {
		t.Fatalf("expected two value ranges, got %+v", fake.values)
	}
	if fake.values.Data[1].Range != "'Txns'!A1" || fake.values.ValueInputOption != "USER_ENTERED" {
		t.Errorf("unexpected range: %+v", fake.values.Data[1])
	}
}
