// Package export gathers a complete transaction set across pages and hands it
// to a sink.
package export

import (
	"context"
	"errors"
	"time"

	"praondefoi/internal/core"
	"praondefoi/internal/finance"
	"praondefoi/internal/log"
	"praondefoi/internal/paging"
)

const (
	DefaultMaxPageSize = 2000
	DefaultMaxPages    = 50
	DefaultPageTimeout = 15 * time.Second
)

type Config struct {
	MaxPageSize int
	// MaxPages bounds the loop against a server that never stops reporting
	// more data.
	MaxPages    int
	PageTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxPageSize: DefaultMaxPageSize,
		MaxPages:    DefaultMaxPages,
		PageTimeout: DefaultPageTimeout,
	}
}

type Exporter struct {
	lister finance.TransactionLister
	cfg    Config
	logger *log.Logger
}

func New(lister finance.TransactionLister, cfg Config, logger *log.Logger) *Exporter {
	def := DefaultConfig()
	if cfg.MaxPageSize < 1 {
		cfg.MaxPageSize = def.MaxPageSize
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = def.PageTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Exporter{lister: lister, cfg: cfg, logger: logger.WithComponent(log.ComponentExport)}
}

// Pager walks the pages of one query. It is not safe for concurrent use.
type Pager struct {
	e       *Exporter
	query   finance.TransactionQuery
	page    int
	fetched int
	seen    map[int64]struct{}
	done    bool
	err     error
}

// Pager starts a walk from page 1. Any paging already set on q is replaced.
func (e *Exporter) Pager(q finance.TransactionQuery) *Pager {
	return &Pager{e: e, query: q, seen: map[int64]struct{}{}}
}

// Next fetches the next page. It returns false once the set is exhausted or
// after an error; Err reports which. Records whose id was already returned
// on an earlier page are skipped.
func (p *Pager) Next(ctx context.Context) ([]core.Transaction, bool) {
	if p.done {
		return nil, false
	}
	if p.page >= p.e.cfg.MaxPages {
		p.finish(&core.ExportIncompleteError{Fetched: p.fetched, Pages: p.page})
		return nil, false
	}
	p.page++

	size := p.e.cfg.MaxPageSize
	q := p.query
	q.Paging = paging.ForPage(p.page, size)

	pageCtx, cancel := context.WithTimeout(ctx, p.e.cfg.PageTimeout)
	res, err := p.e.lister.ListTransactions(pageCtx, q)
	cancel()
	if err != nil {
		p.finish(&core.ExportFailedError{Fetched: p.fetched, Page: p.page, Err: err})
		return nil, false
	}

	items := make([]core.Transaction, 0, len(res.Items))
	for _, tx := range res.Items {
		if tx.ID != 0 {
			if _, dup := p.seen[tx.ID]; dup {
				continue
			}
			p.seen[tx.ID] = struct{}{}
		}
		items = append(items, tx)
	}
	p.fetched += len(items)

	p.e.logger.DebugContext(ctx, "Export page fetched", log.NewFields().
		WithAccount(q.AccountID).
		WithPage(p.page, size, len(res.Items)).ToSlice()...)

	if !paging.HasMore(res.Meta, len(res.Items), size) {
		p.done = true
	}
	return items, true
}

func (p *Pager) finish(err error) {
	p.done = true
	p.err = err
}

// Err returns the error that stopped the walk, if any.
func (p *Pager) Err() error { return p.err }

// Fetched is the number of records returned so far.
func (p *Pager) Fetched() int { return p.fetched }

// Pages is the number of pages requested so far.
func (p *Pager) Pages() int { return p.page }

// Result is a gathered set and the number of pages it took.
type Result struct {
	Transactions []core.Transaction
	Pages        int
}

// FetchAll gathers every record matching q in server order.
//
// A failing page yields an *core.ExportFailedError and no records. Hitting
// the page bound yields an *core.ExportIncompleteError together with the
// records gathered so far, which callers must not publish as a full export.
func (e *Exporter) FetchAll(ctx context.Context, q finance.TransactionQuery) ([]core.Transaction, error) {
	res, err := e.Collect(ctx, q)
	return res.Transactions, err
}

// Collect is FetchAll reporting the page count as well.
func (e *Exporter) Collect(ctx context.Context, q finance.TransactionQuery) (Result, error) {
	start := time.Now()
	p := e.Pager(q)

	var out []core.Transaction
	for {
		items, ok := p.Next(ctx)
		if !ok {
			break
		}
		out = append(out, items...)
	}

	fields := log.NewFields().
		WithOperation(log.OpExport).
		WithAccount(q.AccountID)
	fields[log.FieldRecords] = p.Fetched()
	fields[log.FieldDuration] = time.Since(start).Milliseconds()

	if err := p.Err(); err != nil {
		if errors.Is(err, core.ErrExportIncomplete) {
			e.logger.WarnContext(ctx, "Export stopped at page bound", fields.
				WithError(err).
				WithErrorType(log.ErrorTypeIncomplete).ToSlice()...)
			return Result{Transactions: out, Pages: p.Pages()}, err
		}
		e.logger.ErrorContext(ctx, "Export failed", fields.WithError(err).ToSlice()...)
		return Result{Pages: p.Pages()}, err
	}

	e.logger.InfoContext(ctx, "Export gathered", fields.ToSlice()...)
	if out == nil {
		out = []core.Transaction{}
	}
	return Result{Transactions: out, Pages: p.Pages()}, nil
}
