// Package dashboard assembles the monthly overview from independent queries.
package dashboard

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"praondefoi/internal/account"
	"praondefoi/internal/balance"
	"praondefoi/internal/core"
	"praondefoi/internal/finance"
	"praondefoi/internal/log"
	"praondefoi/internal/metrics"
	"praondefoi/internal/paging"
)

const (
	RecentLimit          = 10
	DefaultSearchSize    = 20
	DefaultHistoryMonths = 12
)

// ErrSuperseded is returned to a caller whose request was overtaken by a
// newer one for the same view. Its results were dropped.
var ErrSuperseded = errors.New("superseded by a newer request")

// Section names reported in Snapshot.Failed.
const (
	SectionSummary  = "summary"
	SectionAnalysis = "analysis"
	SectionRecent   = "recent"
	SectionBalance  = "balance"
	SectionStatus   = "status"
	SectionInsights = "insights"
)

// Source is everything the overview reads.
type Source interface {
	finance.SummaryReader
	finance.BudgetReader
	finance.TransactionLister
	finance.BalanceReader
	finance.InsightsReader
}

type Snapshot struct {
	AccountID    int64
	Period       core.Period
	Summary      core.MonthlySummary
	Balance      decimal.Decimal
	Budget       metrics.Aggregate
	Categories   []metrics.CategoryBudget
	Distribution []metrics.Slice
	Recent       []core.Transaction
	Insights     []string
	// Failed lists the sections that fell back to empty values.
	Failed    []string
	UpdatedAt time.Time
}

type View struct {
	src      Source
	accounts *account.Resolver
	logger   *log.Logger
	now      func() time.Time

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	snapshot *Snapshot

	searchMu     sync.Mutex
	searchGen    uint64
	searchCancel context.CancelFunc
}

func NewView(src Source, accounts *account.Resolver, logger *log.Logger) *View {
	if logger == nil {
		logger = log.Nop()
	}
	return &View{
		src:      src,
		accounts: accounts,
		logger:   logger.WithComponent(log.ComponentDashboard),
		now:      time.Now,
	}
}

// begin registers a new refresh, cancelling the one in flight.
func (v *View) begin(ctx context.Context) (context.Context, uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
	}
	v.gen++
	ctx, v.cancel = context.WithCancel(ctx)
	return ctx, v.gen
}

// commit stores snap unless a newer refresh has started since gen.
func (v *View) commit(gen uint64, snap *Snapshot) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return false
	}
	v.snapshot = snap
	v.cancel()
	v.cancel = nil
	return true
}

// Current returns the last committed snapshot, if any.
func (v *View) Current() (Snapshot, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.snapshot == nil {
		return Snapshot{}, false
	}
	return *v.snapshot, true
}

// Refresh loads every section concurrently. A failing section is logged and
// left empty; it never fails the others. Only the newest refresh commits.
func (v *View) Refresh(ctx context.Context, period core.Period) (Snapshot, error) {
	if err := period.Validate(); err != nil {
		return Snapshot{}, err
	}
	ctx, gen := v.begin(ctx)
	accountID := v.accounts.Resolve(ctx)

	var (
		summary  core.MonthlySummary
		loaded   bool
		analysis core.BudgetAnalysis
		recent   finance.Page
		rawBal   any
		status   core.BudgetStatus
		insights []string

		failedMu sync.Mutex
		failed   []string
	)
	run := func(g *errgroup.Group, section string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				failedMu.Lock()
				failed = append(failed, section)
				failedMu.Unlock()
				if ctx.Err() == nil {
					fields := log.NewFields().
						WithOperation(log.OpRefresh).
						WithAccount(accountID).
						WithError(err)
					fields[log.FieldSection] = section
					v.logger.WarnContext(ctx, "Dashboard section unavailable", fields.ToSlice()...)
				}
			}
			return nil
		})
	}

	var g errgroup.Group
	run(&g, SectionSummary, func() (err error) {
		summary, err = v.src.MonthlySummary(ctx, accountID, period)
		loaded = err == nil
		return err
	})
	run(&g, SectionAnalysis, func() (err error) {
		analysis, err = v.src.BudgetAnalysis(ctx, accountID, period)
		return err
	})
	run(&g, SectionRecent, func() (err error) {
		recent, err = v.src.ListTransactions(ctx, finance.TransactionQuery{
			AccountID: accountID,
			Paging:    paging.ForWindow(RecentLimit, 0),
		})
		return err
	})
	run(&g, SectionBalance, func() (err error) {
		rawBal, err = v.src.CurrentBalance(ctx, accountID)
		return err
	})
	run(&g, SectionStatus, func() (err error) {
		status, err = v.src.BudgetStatus(ctx, accountID, period)
		return err
	})
	run(&g, SectionInsights, func() (err error) {
		insights, err = v.src.Insights(ctx, accountID, DefaultHistoryMonths)
		return err
	})
	_ = g.Wait()

	var sum *core.MonthlySummary
	if loaded {
		sum = &summary
	}
	snap := assemble(accountID, period, sum, analysis, recent.Items, rawBal, status, insights)
	slices.Sort(failed)
	snap.Failed = failed
	snap.UpdatedAt = v.now()

	if !v.commit(gen, &snap) {
		return Snapshot{}, ErrSuperseded
	}
	return snap, nil
}

// assemble derives the view model. summary is nil when it failed to load, in
// which case the balance has no fallback.
func assemble(accountID int64, period core.Period, summary *core.MonthlySummary, analysis core.BudgetAnalysis,
	recent []core.Transaction, rawBal any, status core.BudgetStatus, insights []string) Snapshot {
	snap := Snapshot{
		AccountID:    accountID,
		Period:       period,
		Categories:   metrics.Categories(analysis.Usage),
		Distribution: metrics.Distribution(analysis.Distribution),
		Recent:       recent,
		Insights:     insights,
	}
	if snap.Recent == nil {
		snap.Recent = []core.Transaction{}
	}
	if snap.Insights == nil {
		snap.Insights = []string{}
	}

	if summary != nil {
		snap.Summary = *summary
	}
	snap.Balance = balance.Resolve(rawBal, summary)

	if status.Limit.IsPositive() || !status.UsagePercent.IsZero() {
		snap.Budget = metrics.AggregateFromStatus(status)
	} else {
		snap.Budget = metrics.AggregateOf(analysis.Usage)
	}
	return snap
}

// SearchResult is one page of a transaction search.
type SearchResult struct {
	Items   []core.Transaction
	Offset  int
	Total   *int
	HasNext bool
}

// Search lists one page of transactions matching filter. Unlike Refresh,
// errors are returned to the caller. A newer search supersedes this one.
func (v *View) Search(ctx context.Context, filter finance.TransactionFilter, offset, size int) (SearchResult, error) {
	if size <= 0 {
		size = DefaultSearchSize
	}
	if offset < 0 {
		offset = 0
	}

	v.searchMu.Lock()
	if v.searchCancel != nil {
		v.searchCancel()
	}
	v.searchGen++
	gen := v.searchGen
	ctx, cancel := context.WithCancel(ctx)
	v.searchCancel = cancel
	v.searchMu.Unlock()
	defer cancel()

	accountID := v.accounts.Resolve(ctx)
	page, err := v.src.ListTransactions(ctx, finance.TransactionQuery{
		AccountID: accountID,
		Filter:    filter,
		Paging:    paging.ForWindow(size, offset),
	})

	v.searchMu.Lock()
	stale := gen != v.searchGen
	v.searchMu.Unlock()
	if stale {
		return SearchResult{}, ErrSuperseded
	}
	if err != nil {
		v.logger.WarnContext(ctx, "Transaction search failed", log.NewFields().
			WithOperation(log.OpList).
			WithAccount(accountID).
			WithError(err).ToSlice()...)
		return SearchResult{}, err
	}

	res := SearchResult{
		Items:  page.Items,
		Offset: offset,
		Total:  page.Meta.TotalItems,
	}
	if res.Total != nil {
		res.HasNext = offset+len(page.Items) < *res.Total
	} else {
		res.HasNext = paging.HasMore(page.Meta, len(page.Items), size)
	}
	return res, nil
}
