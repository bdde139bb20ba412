package backend

import (
	"context"

	"mnyxls/internal/reconcile"
	"mnyxls/internal/sheets"
)

// SnapshotWriter persists the reconciled entities.
type SnapshotWriter interface {
	Write(ctx context.Context, snap *reconcile.Snapshot) error
}

// Sink is one configured workbook writer.
type Sink struct {
	Type   BackendType
	Writer sheets.WorkbookWriter
}

// BackendResult contains the output sinks of one run. Database is nil when
// no database is written.
type BackendResult struct {
	Workbooks []Sink
	Database  SnapshotWriter
}

// Factory creates output sinks based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of an output sink
type BackendType string

const (
	XLSXBackend   BackendType = "xlsx"
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case XLSXBackend, SheetsBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
