// Package services runs one import: parse, reconcile, resolve the workbook,
// write every sink and announce the result.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mnyxls/internal/backend"
	"mnyxls/internal/config"
	"mnyxls/internal/core"
	"mnyxls/internal/log"
	"mnyxls/internal/notify"
	"mnyxls/internal/reconcile"
	"mnyxls/internal/report"
	"mnyxls/internal/sheets"
	"mnyxls/internal/workbook"

	"github.com/shopspring/decimal"
)

// RunPublisher announces finished runs.
type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, summary core.RunSummary) error
}

// ImportService orchestrates a run across the configured sinks.
type ImportService struct {
	cfg       *config.Config
	sinks     *backend.BackendResult
	publisher RunPublisher
	logger    *log.Logger
}

// NewImportService wires a run. publisher may be nil.
func NewImportService(cfg *config.Config, sinks *backend.BackendResult, publisher RunPublisher, logger *log.Logger) *ImportService {
	if logger == nil {
		logger = log.Discard()
	}
	if sinks == nil {
		sinks = &backend.BackendResult{}
	}
	return &ImportService{cfg: cfg, sinks: sinks, publisher: publisher, logger: logger}
}

// Run performs one import. Nothing is written unless every report parses,
// reconciliation succeeds and every worksheet resolves.
func (s *ImportService) Run(ctx context.Context) (core.RunSummary, error) {
	start := time.Now()
	summary := core.RunSummary{RunID: notify.NewRunID()}
	logger := s.logger.With(log.FieldRunID, summary.RunID)
	ctx = log.WithContext(ctx, logger)

	from, to, err := s.cfg.ImportDateRange()
	if err != nil {
		return summary, err
	}
	reports, err := report.ParseAll(ctx, s.cfg.Reports, report.Options{
		ImportFrom:  from,
		ImportTo:    to,
		CheckTotals: s.cfg.ShouldCheckTotals(),
	})
	if err != nil {
		return summary, fmt.Errorf("parse reports: %w", err)
	}
	summary.Reports = len(reports)

	snap, err := reconcile.New(s.cfg, logger).Reconcile(ctx, reports)
	if err != nil {
		return summary, fmt.Errorf("reconcile: %w", err)
	}
	summary.Accounts = len(snap.Accounts)
	summary.Categories = len(snap.Categories)
	summary.Txns = len(snap.Txns)
	summary.TxnDateMin, summary.TxnDateMax = snap.TxnDateRange()
	summary.Total = decimal.Zero
	for _, t := range snap.Txns {
		summary.Total = summary.Total.Add(t.Amount)
	}

	built, err := workbook.New(s.cfg, logger).Build(ctx, snap)
	if err != nil {
		return summary, fmt.Errorf("resolve workbook: %w", err)
	}
	summary.Sheets = sheets.Summaries(built)

	for _, sink := range s.sinks.Workbooks {
		if err := sink.Writer.Write(ctx, built); err != nil {
			return summary, fmt.Errorf("write %s workbook: %w", sink.Type, err)
		}
	}
	if s.sinks.Database != nil {
		if err := s.sinks.Database.Write(ctx, snap); err != nil {
			return summary, fmt.Errorf("write database: %w", err)
		}
	}

	// Publishing is best effort.
	if s.publisher != nil {
		if err := s.publisher.PublishRunCompleted(ctx, summary); err != nil {
			logger.ErrorContext(ctx, "Failed to publish run completed message", log.FieldError, err)
		}
	}

	logger.InfoContext(ctx, "Import finished",
		log.FieldOperation, log.OpImport,
		"reports", summary.Reports,
		"accounts", summary.Accounts,
		"txns", summary.Txns,
		"sheets", len(summary.Sheets),
		log.FieldDuration, time.Since(start).Milliseconds())
	return summary, nil
}

// ExitCode maps a run error to the process exit status: 2 for bad
// configuration, 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *core.ConfigurationError
	if errors.As(err, &ce) {
		return 2
	}
	return 1
}
