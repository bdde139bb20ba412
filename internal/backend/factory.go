package backend

import (
	"context"
	"fmt"

	"mnyxls/internal/log"
	gsheet "mnyxls/internal/sheets/google"
	"mnyxls/internal/sheets/memory"
	"mnyxls/internal/sheets/xlsx"
	"mnyxls/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new sink factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentApp)}
}

// CreateBackend implements Factory.CreateBackend. Without a file or
// spreadsheet output the workbook goes to an in-memory store, which makes
// the run a dry run.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	result := &BackendResult{}
	for _, t := range config.Types() {
		switch t {
		case XLSXBackend:
			result.Workbooks = append(result.Workbooks, Sink{Type: t, Writer: xlsx.New(config.XLSXPath, config.XLSXTemplate, f.logger)})
			f.logger.Info("Initialized xlsx output", log.FieldPath, config.XLSXPath, "template", config.XLSXTemplate)
		case SheetsBackend:
			cli, err := gsheet.NewFromConfig(ctx, config.Google, f.logger)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
			}
			result.Workbooks = append(result.Workbooks, Sink{Type: t, Writer: cli})
			f.logger.Info("Initialized Google Sheets output")
		case MemoryBackend:
			result.Workbooks = append(result.Workbooks, Sink{Type: t, Writer: memory.New()})
			f.logger.Info("No workbook output configured; resolving worksheets only")
		case SQLiteBackend:
			result.Database = storage.NewWriter(config.SQLiteDBPath, f.logger)
			f.logger.Info("Initialized SQLite output", log.FieldPath, config.SQLiteDBPath)
		default:
			return nil, fmt.Errorf("unsupported backend type: %s", t)
		}
	}
	return result, nil
}
