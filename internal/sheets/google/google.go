package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"mnyxls/internal/config"
	"mnyxls/internal/core"
	"mnyxls/internal/log"
	ports "mnyxls/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.WorkbookWriter = (*Client)(nil)

// NewFromConfig creates a Sheets client for the configured spreadsheet.
// Credentials come from the inline JSON, the credentials file or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func NewFromConfig(ctx context.Context, cfg config.GoogleConfig, logger *log.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, logger: logger}, nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, logger: logger.WithComponent(log.ComponentSheets)}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg config.GoogleConfig, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.DebugContext(ctx, "Reading credentials from file", log.FieldPath, serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Write renders every sheet into the spreadsheet. Sheets marked UseExisting
// replace the contents of a tab with the same title; every other sheet gets a
// new tab. Values are sent in one batch after all tabs exist.
func (c *Client) Write(ctx context.Context, sheets []core.Sheet) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	start := time.Now()

	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	existing := make([]tab, 0, len(meta.Sheets))
	for _, s := range meta.Sheets {
		if s.Properties != nil {
			existing = append(existing, tab{title: s.Properties.Title, id: s.Properties.SheetId})
		}
	}

	targets := planTabs(existing, sheets)

	var adds []*gsheet.Request
	for _, t := range targets {
		if t.create {
			adds = append(adds, &gsheet.Request{AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: t.title},
			}})
		}
	}
	if len(adds) > 0 {
		resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: adds}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("add sheets: %w", err)
		}
		assignIDs(targets, resp.Replies)
	}

	for _, t := range targets {
		if t.create {
			continue
		}
		if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, a1(t.title), &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
			return fmt.Errorf("clear %s: %w", t.title, err)
		}
	}

	data := make([]*gsheet.ValueRange, len(sheets))
	for i, s := range sheets {
		data[i] = &gsheet.ValueRange{Range: a1(targets[i].title) + "!A1", Values: values(s)}
	}
	_, err = c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write values: %w", err)
	}

	if layout := layoutRequests(targets, sheets); len(layout) > 0 {
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: layout}).Context(ctx).Do(); err != nil {
			return fmt.Errorf("format sheets: %w", err)
		}
	}

	log.FromContext(ctx, c.logger).InfoContext(ctx, "Wrote spreadsheet",
		log.FieldOperation, log.OpRender,
		"spreadsheet_id", c.spreadsheetID,
		log.FieldCount, len(sheets),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}
