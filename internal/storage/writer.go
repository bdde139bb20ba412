// Package storage writes a reconciled snapshot to a SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mnyxls/internal/log"
	"mnyxls/internal/reconcile"

	_ "modernc.org/sqlite"
)

// Writer replaces the database at Path with the contents of a snapshot.
type Writer struct {
	Path   string
	logger *log.Logger
}

func NewWriter(path string, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Writer{Path: path, logger: logger.WithComponent(log.ComponentStorage)}
}

// Write builds a fresh database next to Path, loads the snapshot in one
// transaction and renames the file into place. A failed write leaves Path
// untouched.
func (w *Writer) Write(ctx context.Context, snap *reconcile.Snapshot) error {
	start := time.Now()
	logger := log.FromContext(ctx, w.logger)
	dir := filepath.Dir(w.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".mnyxls-*.db")
	if err != nil {
		return fmt.Errorf("create temp database: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := RunMigrations(tmpPath); err != nil {
		return err
	}
	if err := w.load(ctx, logger, tmpPath, snap); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, w.Path); err != nil {
		return fmt.Errorf("replace %s: %w", w.Path, err)
	}

	logger.InfoContext(ctx, "Wrote database",
		log.FieldOperation, log.OpPersist,
		log.FieldPath, w.Path,
		log.FieldCount, len(snap.Txns),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (w *Writer) load(ctx context.Context, logger *log.Logger, path string, snap *reconcile.Snapshot) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	q := New(db).WithTx(tx)

	for _, a := range snap.Accounts {
		if err := q.InsertAccount(ctx, a); err != nil {
			return fmt.Errorf("insert account %s: %w", a.Name, err)
		}
	}
	for _, l := range snap.Loans {
		if err := q.InsertLoan(ctx, l); err != nil {
			return fmt.Errorf("insert loan %s: %w", l.Account, err)
		}
		for _, p := range l.PaymentTargets {
			if err := q.InsertLoanPayment(ctx, l.Account, p); err != nil {
				return fmt.Errorf("insert loan payment %s: %w", l.Account, err)
			}
		}
	}
	for _, p := range snap.Payees {
		if err := q.InsertPayee(ctx, p); err != nil {
			return fmt.Errorf("insert payee %s: %w", p.Name, err)
		}
	}
	for _, c := range snap.Categories {
		if err := q.InsertCategory(ctx, c); err != nil {
			return fmt.Errorf("insert category %s: %w", c.CategoryKey, err)
		}
	}
	for _, b := range snap.AccountBalances {
		if err := q.InsertAccountBalance(ctx, b); err != nil {
			return fmt.Errorf("insert account balance %s: %w", b.Account, err)
		}
	}
	for _, b := range snap.CategoryBalances {
		if err := q.InsertCategoryBalance(ctx, b); err != nil {
			return fmt.Errorf("insert category balance %s: %w", b.CategoryKey, err)
		}
	}
	for i, t := range snap.Txns {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := q.InsertTxn(ctx, t); err != nil {
			return fmt.Errorf("insert txn %d: %w", t.N, err)
		}
	}
	for _, t := range snap.InvTxns {
		if err := q.InsertInvTxn(ctx, t); err != nil {
			return fmt.Errorf("insert investment txn %d: %w", t.N, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	for _, table := range Tables {
		n, err := New(db).CountRows(ctx, table)
		if err != nil {
			return fmt.Errorf("count %s: %w", table, err)
		}
		logger.DebugContext(ctx, "Loaded table", "table", table, log.FieldRows, n)
	}
	return nil
}
