// Package workbook resolves the configured worksheets against a reconciled
// snapshot into an ordered list of named tables.
package workbook

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"mnyxls/internal/config"
	"mnyxls/internal/core"
	"mnyxls/internal/expand"
	"mnyxls/internal/log"
	"mnyxls/internal/pivot"
	"mnyxls/internal/reconcile"
	"mnyxls/internal/selection"

	"golang.org/x/sync/errgroup"
)

// MaxSheets bounds the number of worksheets in one workbook.
const MaxSheets = 75

var (
	txnCriteria      = selection.Keys
	accountCriteria  = []string{selection.KeyAccount, selection.KeyAccountCategory, selection.KeyAccountClassification}
	categoryCriteria = []string{selection.KeyCategory, selection.KeyTxnType, selection.KeyTxnClass}

	// allowedCriteria lists the select keys each sheet type understands.
	allowedCriteria = map[string][]string{
		config.SheetTxns:                  txnCriteria,
		config.SheetTxnsPivot:             txnCriteria,
		config.SheetCategoriesNaked:       txnCriteria,
		config.SheetCategoriesSinglePayee: txnCriteria,
		config.SheetAccounts:              accountCriteria,
		config.SheetCategories:            categoryCriteria,
	}

	// allowedForeach lists the foreach dimensions each sheet type understands.
	allowedForeach = map[string][]string{
		config.SheetTxns:                  expand.Dimensions,
		config.SheetTxnsPivot:             expand.Dimensions,
		config.SheetCategoriesNaked:       expand.Dimensions,
		config.SheetCategoriesSinglePayee: expand.Dimensions,
		config.SheetAccounts:              expand.AccountDimensions,
		config.SheetCategories:            {expand.DimTxnType, expand.DimTxnClass},
	}
)

// Builder turns worksheet declarations into sheets.
type Builder struct {
	cfg     *config.Config
	logger  *log.Logger
	workers int
}

func New(cfg *config.Config, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.Discard()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Builder{cfg: cfg, logger: logger.WithComponent(log.ComponentWorkbook), workers: workers}
}

// plan is one validated worksheet declaration.
type plan struct {
	ws        config.Worksheet
	directive string
	sel       config.Select
	pred      selection.Predicate
	env       selection.Env
	dim       *expand.Dimension
	pivot     pivot.Options
	columns   columnFilter

	skipEmpty   bool
	useExisting bool
	autofit     bool
}

// resolved carries a sheet together with the declaration it came from.
type resolved struct {
	sheet     core.Sheet
	directive string
	skipEmpty bool
}

// Build validates every worksheet declaration, then resolves them against
// snap. Configuration errors are returned before any sheet is built. The
// result follows declaration order, foreach groups in first-seen order.
func (b *Builder) Build(ctx context.Context, snap *reconcile.Snapshot) ([]core.Sheet, error) {
	start := time.Now()
	plans, err := b.planAll(snap)
	if err != nil {
		return nil, err
	}

	slots := make([][]resolved, len(plans))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range plans {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := b.resolve(plans[i], snap)
			if err != nil {
				return fmt.Errorf("%s: %w", plans[i].directive, err)
			}
			slots[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []resolved
	for _, s := range slots {
		all = append(all, s...)
	}
	sheets, err := b.finish(all)
	if err != nil {
		return nil, err
	}

	b.logger.Info("Resolved workbook",
		log.FieldOperation, log.OpResolve,
		log.FieldCount, len(sheets),
		log.FieldDuration, time.Since(start).Milliseconds())
	return sheets, nil
}

// planAll validates the worksheet declarations without building anything.
func (b *Builder) planAll(snap *reconcile.Snapshot) ([]*plan, error) {
	worksheets := b.cfg.Workbook.Worksheets
	if len(worksheets) == 0 {
		b.logger.Debug("Using default workbook configuration")
		worksheets = config.DefaultWorksheets()
	}
	_, latest := snap.TxnDateRange()

	plans := make([]*plan, 0, len(worksheets))
	for _, ws := range worksheets {
		p, err := b.plan(ws, latest)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (b *Builder) plan(ws config.Worksheet, latest core.Date) (*plan, error) {
	directive := "workbook.worksheets." + ws.Name
	allowed, ok := allowedCriteria[ws.SheetType]
	if !ok {
		return nil, core.NewConfigError(directive+".sheet_type", "unrecognized sheet type '%s'; must be one of %v", ws.SheetType, config.SheetTypes)
	}

	merged, err := selection.Merge(b.cfg.Workbook.Select, ws.Select, directive+".select")
	if err != nil {
		return nil, err
	}
	sel, err := selection.Restrict(merged, ws.Select, allowed, directive+".select")
	if err != nil {
		return nil, err
	}
	env := selection.Env{Directive: directive + ".select", LatestTxnDate: latest, Logger: b.logger}
	pred, err := selection.Compile(sel, env)
	if err != nil {
		return nil, err
	}

	p := &plan{
		ws:          ws,
		directive:   directive,
		sel:         sel,
		pred:        pred,
		env:         env,
		skipEmpty:   option(ws.SkipEmpty, b.cfg.Workbook.SkipEmpty, true),
		useExisting: option(ws.UseExisting, b.cfg.Workbook.UseExisting, false),
		autofit:     option(ws.Autofit, b.cfg.Workbook.Autofit, true),
	}

	if ws.Foreach != "" {
		d, err := expand.Lookup(ws.Foreach)
		if err != nil {
			return nil, core.NewConfigError(directive+".foreach", "%v", err)
		}
		if !slices.Contains(allowedForeach[ws.SheetType], d.Name) {
			return nil, core.NewConfigError(directive+".foreach", "'%s' is not supported by sheet type '%s'; must be one of %v", ws.Foreach, ws.SheetType, allowedForeach[ws.SheetType])
		}
		p.dim = &d
	}

	switch ws.SheetType {
	case config.SheetTxns:
		if p.columns, err = parseColumns(ws.Columns, directive+".columns"); err != nil {
			return nil, err
		}
		if ws.Consolidate != "" && !slices.Contains(config.ConsolidateValues, ws.Consolidate) {
			return nil, core.NewConfigError(directive+".consolidate", "unrecognized option '%s'; must be one of %v", ws.Consolidate, config.ConsolidateValues)
		}
	case config.SheetTxnsPivot:
		if p.pivot, err = pivot.ParseOptions(ws.Options, directive); err != nil {
			return nil, err
		}
	}
	if ws.Consolidate != "" && ws.SheetType != config.SheetTxns {
		return nil, core.NewConfigError(directive+".consolidate", "only valid for sheet type '%s'", config.SheetTxns)
	}
	return p, nil
}

func option(sheet, workbook *bool, fallback bool) bool {
	switch {
	case sheet != nil:
		return *sheet
	case workbook != nil:
		return *workbook
	}
	return fallback
}

// resolve builds the sheets of one declaration. Expanded declarations yield
// one sheet per group.
func (b *Builder) resolve(p *plan, snap *reconcile.Snapshot) ([]resolved, error) {
	var sheets []core.Sheet
	var err error
	switch p.ws.SheetType {
	case config.SheetAccounts:
		sheets, err = b.accountSheets(p, snap)
	case config.SheetCategories:
		sheets = b.categorySheets(p, snap)
	default:
		sheets, err = b.txnSheets(p, snap)
	}
	if err != nil {
		return nil, err
	}

	out := make([]resolved, len(sheets))
	for i, s := range sheets {
		s.Type = p.ws.SheetType
		s.UseExisting = p.useExisting
		s.Autofit = p.autofit
		out[i] = resolved{sheet: s, directive: p.directive, skipEmpty: p.skipEmpty}
	}
	return out, nil
}

// txnSheets filters the snapshot's transactions and renders them, once per
// foreach group when the declaration expands.
func (b *Builder) txnSheets(p *plan, snap *reconcile.Snapshot) ([]core.Sheet, error) {
	txns := selection.Filter(snap.Txns, p.pred)
	if p.dim == nil {
		s, err := b.renderTxns(p, snap, p.ws.Name, txns, "")
		if err != nil {
			return nil, err
		}
		return []core.Sheet{s}, nil
	}

	groups := p.dim.Partition(txns, b.known(p, snap))
	sheets := make([]core.Sheet, 0, len(groups))
	for _, g := range groups {
		s, err := b.renderTxns(p, snap, p.dim.SheetName(p.ws.Name, g.Value), g.Items, g.Value)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}

func (b *Builder) renderTxns(p *plan, snap *reconcile.Snapshot, name string, txns []core.Txn, group string) (core.Sheet, error) {
	switch p.ws.SheetType {
	case config.SheetTxns:
		return txnsSheet(p, name, txns, group)
	case config.SheetTxnsPivot:
		return pivotSheet(p, name, txns, snap.EraNames()), nil
	case config.SheetCategoriesNaked:
		return nakedCategoriesSheet(name, txns, snap), nil
	case config.SheetCategoriesSinglePayee:
		return singlePayeeSheet(name, txns), nil
	}
	return core.Sheet{}, fmt.Errorf("sheet type '%s' does not list transactions", p.ws.SheetType)
}

// known returns the values an expansion must cover even without
// transactions. It is empty unless skipempty is off. A criterion on the
// same dimension still limits the values.
func (b *Builder) known(p *plan, snap *reconcile.Snapshot) []string {
	if p.skipEmpty {
		return nil
	}
	values := p.dim.Known(snap)
	raw, ok := p.sel[p.dim.Name]
	if !ok {
		return values
	}
	pred, err := selection.Compile(config.Select{p.dim.Name: raw}, p.env)
	if err != nil {
		return values
	}
	return slices.DeleteFunc(values, func(v string) bool {
		t := stamp(p.dim.Name, v)
		return !pred.Match(&t)
	})
}

// stamp builds a transaction carrying value in the field of dimension dim.
func stamp(dim, value string) core.Txn {
	var t core.Txn
	switch dim {
	case expand.DimAccount:
		t.Account = value
	case expand.DimAccountCategory:
		t.AccountCategory = value
	case expand.DimAccountClassification:
		t.AccountClassification = core.Classification(value)
	case expand.DimTxnClass:
		t.Class = core.TxnClass(value)
	case expand.DimTxnType:
		t.Type = core.TxnType(value)
	case expand.DimEra:
		t.Era = value
	case expand.DimYYYY:
		if y, err := strconv.Atoi(value); err == nil {
			t.Date = core.NewDate(y, 1, 1)
		}
	}
	return t
}
