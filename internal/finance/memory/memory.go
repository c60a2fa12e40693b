// Package memory is an in-process finance backend. It honours the same paging
// contract as the REST API, including a server-side page size cap.
package memory

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"praondefoi/internal/core"
	"praondefoi/internal/finance"
	"praondefoi/internal/paging"
)

// DefaultMaxPageSize mirrors the API's cap on listing pages.
const DefaultMaxPageSize = 2000

var (
	ErrNotFound = errors.New("not found")
	// ErrImportUnsupported is returned by ImportStatement; parsing bank
	// statements happens server side.
	ErrImportUnsupported = errors.New("statement import is not supported by the memory backend")
)

var (
	_ finance.SummaryReader     = (*Store)(nil)
	_ finance.TransactionLister = (*Store)(nil)
	_ finance.TransactionWriter = (*Store)(nil)
	_ finance.BudgetReader      = (*Store)(nil)
	_ finance.BudgetWriter      = (*Store)(nil)
	_ finance.BalanceReader     = (*Store)(nil)
	_ finance.GoalStore         = (*Store)(nil)
	_ finance.RecurrenceLister  = (*Store)(nil)
	_ finance.TaxonomyReader    = (*Store)(nil)
	_ finance.InsightsReader    = (*Store)(nil)
	_ finance.StatementImporter = (*Store)(nil)
)

type txRecord struct {
	account int64
	tx      core.Transaction
}

type budgetRecord struct {
	account    int64
	period     core.Period
	id         int64
	categoryID int64
	limit      decimal.Decimal
}

type goalRecord struct {
	account int64
	goal    core.Goal
}

type Store struct {
	mu          sync.Mutex
	maxPageSize int
	nextID      int64
	now         func() time.Time

	txs           []txRecord
	budgets       []budgetRecord
	goals         []goalRecord
	categories    []core.Category
	tags          []core.Tag
	recurrences   []core.Recurrence
	subscriptions []core.Subscription
}

type Option func(*Store)

// WithMaxPageSize caps the number of records a listing returns.
func WithMaxPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithRecurrences(rs ...core.Recurrence) Option {
	return func(s *Store) { s.recurrences = append(s.recurrences, rs...) }
}

func WithSubscriptions(subs ...core.Subscription) Option {
	return func(s *Store) { s.subscriptions = append(s.subscriptions, subs...) }
}

func New(categories []string, opts ...Option) *Store {
	s := &Store{maxPageSize: DefaultMaxPageSize, now: time.Now}
	for _, name := range dedupe(categories) {
		s.nextID++
		s.categories = append(s.categories, core.Category{ID: s.nextID, Name: name})
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt, one per line.
// Blank lines and # comments are ignored.
func NewFromFiles(base string, opts ...Option) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = []string{"Alimentação", "Moradia", "Transporte", "Lazer", "Salário"}
	}
	return New(cats, opts...)
}

func (s *Store) MonthlySummary(_ context.Context, accountID int64, period core.Period) (core.MonthlySummary, error) {
	if err := period.Validate(); err != nil {
		return core.MonthlySummary{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := core.MonthlySummary{
		AccountID: accountID,
		Month:     period.Month,
		Year:      period.Year,
		Currency:  core.DefaultCurrency,
	}
	filter := finance.TransactionFilter{}.ForPeriod(period)
	for _, r := range s.txs {
		if r.account != accountID || !filter.Matches(r.tx) {
			continue
		}
		if r.tx.Kind == core.KindIncome {
			sum.TotalIncome = sum.TotalIncome.Add(r.tx.Amount)
		} else {
			sum.TotalExpense = sum.TotalExpense.Add(r.tx.Amount)
		}
	}
	sum.MonthBalance = sum.Balance()
	for _, rec := range s.recurrences {
		if rec.Kind == core.KindIncome {
			sum.RecurringIncome = sum.RecurringIncome.Add(rec.Amount)
		} else {
			sum.RecurringExpense = sum.RecurringExpense.Add(rec.Amount)
		}
	}
	for _, sub := range s.subscriptions {
		sum.SubscriptionExpense = sum.SubscriptionExpense.Add(sub.Amount)
	}
	return sum, nil
}

// ListTransactions returns the newest transactions first. Page sizes above
// the cap are silently reduced, as the API does.
func (s *Store) ListTransactions(_ context.Context, q finance.TransactionQuery) (finance.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []core.Transaction
	for _, r := range s.txs {
		if r.account == q.AccountID && q.Filter.Matches(r.tx) {
			matched = append(matched, r.tx)
		}
	}
	slices.SortStableFunc(matched, func(a, b core.Transaction) int {
		if c := b.OccurredAt.Compare(a.OccurredAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	p := paging.Reconcile(q.Paging)
	limit := s.maxPageSize
	if p.Limit != nil && *p.Limit > 0 && *p.Limit < limit {
		limit = *p.Limit
	}
	offset := 0
	if p.Offset != nil && *p.Offset > 0 {
		offset = *p.Offset
	}

	total := len(matched)
	start := min(offset, total)
	end := min(start+limit, total)
	items := make([]core.Transaction, end-start)
	for i, tx := range matched[start:end] {
		items[i] = cloneTx(tx)
	}

	totalPages := (total + limit - 1) / limit
	return finance.Page{
		Items: items,
		Meta: paging.Meta{
			TotalItems: paging.Int(total),
			TotalPages: paging.Int(totalPages),
			HasNext:    paging.Bool(end < total),
		},
	}, nil
}

func (s *Store) CreateTransaction(_ context.Context, accountID int64, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	tx.ID = s.nextID
	s.fill(&tx)
	s.txs = append(s.txs, txRecord{account: accountID, tx: cloneTx(tx)})
	return tx.ID, nil
}

func (s *Store) UpdateTransaction(_ context.Context, accountID int64, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.txs {
		if s.txs[i].tx.ID == tx.ID && s.txs[i].account == accountID {
			s.fill(&tx)
			s.txs[i].tx = cloneTx(tx)
			return nil
		}
	}
	return fmt.Errorf("transaction %d: %w", tx.ID, ErrNotFound)
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.txs {
		if s.txs[i].tx.ID == id {
			s.txs = slices.Delete(s.txs, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
}

// fill applies the defaults the API would. Callers hold the lock.
func (s *Store) fill(tx *core.Transaction) {
	if tx.Currency == "" {
		tx.Currency = core.DefaultCurrency
	}
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = s.now()
	}
	tx.CategoryName = core.DefaultCategoryName
	if c, ok := s.category(tx.CategoryID); ok {
		tx.CategoryName = c.Name
	}
}

func (s *Store) category(id int64) (core.Category, bool) {
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

func (s *Store) ListBudgets(_ context.Context, accountID int64, period core.Period) ([]core.BudgetUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usages(accountID, period), nil
}

// usages computes spending per budget for the period. Callers hold the lock.
func (s *Store) usages(accountID int64, period core.Period) []core.BudgetUsage {
	spent := s.expenseByCategory(accountID, period)
	out := []core.BudgetUsage{}
	for _, b := range s.budgets {
		if b.account != accountID || b.period != period {
			continue
		}
		u := core.BudgetUsage{
			BudgetID:     b.id,
			CategoryID:   b.categoryID,
			CategoryName: core.DefaultCategoryName,
			Limit:        b.limit,
			Spent:        spent[b.categoryID],
		}
		if c, ok := s.category(b.categoryID); ok {
			u.CategoryName = c.Name
		}
		if u.Limit.IsPositive() {
			u.UsageRatio = u.Spent.Div(u.Limit)
		}
		out = append(out, u)
	}
	return out
}

func (s *Store) expenseByCategory(accountID int64, period core.Period) map[int64]decimal.Decimal {
	filter := finance.TransactionFilter{Kind: finance.KindPtr(core.KindExpense)}.ForPeriod(period)
	out := map[int64]decimal.Decimal{}
	for _, r := range s.txs {
		if r.account == accountID && filter.Matches(r.tx) {
			out[r.tx.CategoryID] = out[r.tx.CategoryID].Add(r.tx.Amount)
		}
	}
	return out
}

func (s *Store) BudgetAnalysis(_ context.Context, accountID int64, period core.Period) (core.BudgetAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usages := s.usages(accountID, period)
	a := core.BudgetAnalysis{Usage: usages}
	if n := int64(len(usages)); n > 0 {
		var limit, spent, pct decimal.Decimal
		for _, u := range usages {
			limit = limit.Add(u.Limit)
			spent = spent.Add(u.Spent)
			pct = pct.Add(u.UsageRatio.Mul(decimal.NewFromInt(100)))
		}
		count := decimal.NewFromInt(n)
		a.Average = core.BudgetAverage{
			Limit:        limit.Div(count),
			Spent:        spent.Div(count),
			UsagePercent: pct.Div(count),
		}
	}

	byCategory := s.expenseByCategory(accountID, period)
	var total decimal.Decimal
	for _, v := range byCategory {
		total = total.Add(v)
	}
	a.Distribution.TotalExpense = total
	ids := make([]int64, 0, len(byCategory))
	for id := range byCategory {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		item := core.DistributionItem{
			CategoryID:   id,
			CategoryName: core.DefaultCategoryName,
			Total:        byCategory[id],
		}
		if c, ok := s.category(id); ok {
			item.CategoryName = c.Name
		}
		if total.IsPositive() {
			item.Percent = item.Total.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
		}
		a.Distribution.Items = append(a.Distribution.Items, item)
	}
	return a, nil
}

func (s *Store) BudgetStatus(_ context.Context, accountID int64, period core.Period) (core.BudgetStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st core.BudgetStatus
	for _, u := range s.usages(accountID, period) {
		st.Limit = st.Limit.Add(u.Limit)
		st.Spent = st.Spent.Add(u.Spent)
	}
	if st.Limit.IsPositive() {
		st.UsagePercent = st.Spent.Div(st.Limit).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return st, nil
}

func (s *Store) CreateBudget(_ context.Context, accountID int64, period core.Period, categoryID int64, limit decimal.Decimal) (int64, error) {
	if err := period.Validate(); err != nil {
		return 0, err
	}
	if !limit.IsPositive() {
		return 0, core.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.budgets {
		b := &s.budgets[i]
		if b.account == accountID && b.period == period && b.categoryID == categoryID {
			b.limit = limit
			return b.id, nil
		}
	}
	s.nextID++
	s.budgets = append(s.budgets, budgetRecord{
		account:    accountID,
		period:     period,
		id:         s.nextID,
		categoryID: categoryID,
		limit:      limit,
	})
	return s.nextID, nil
}

// CurrentBalance answers with the same shape the API uses.
func (s *Store) CurrentBalance(_ context.Context, accountID int64) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var balance decimal.Decimal
	for _, r := range s.txs {
		if r.account == accountID {
			balance = balance.Add(r.tx.Signed())
		}
	}
	return map[string]any{"saldoAtual": json.Number(balance.StringFixed(2))}, nil
}

func (s *Store) ListGoals(_ context.Context, accountID int64) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []core.Goal{}
	for _, g := range s.goals {
		if g.account == accountID {
			out = append(out, g.goal)
		}
	}
	return out, nil
}

func (s *Store) CreateGoal(_ context.Context, accountID int64, g core.Goal) (int64, error) {
	if !g.TargetAmount.IsPositive() {
		return 0, core.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	g.ID = s.nextID
	if c, ok := s.category(g.CategoryID); ok {
		g.CategoryName = c.Name
	}
	s.goals = append(s.goals, goalRecord{account: accountID, goal: g})
	return g.ID, nil
}

func (s *Store) Contribute(_ context.Context, goalID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return core.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.goals {
		if s.goals[i].goal.ID == goalID {
			g := &s.goals[i].goal
			g.CurrentAmount = g.CurrentAmount.Add(amount)
			return nil
		}
	}
	return fmt.Errorf("goal %d: %w", goalID, ErrNotFound)
}

func (s *Store) ListRecurrences(context.Context, int64) ([]core.Recurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.recurrences), nil
}

func (s *Store) ListSubscriptions(context.Context, int64) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.subscriptions), nil
}

func (s *Store) ListCategories(context.Context, int64) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories), nil
}

// ListTags returns every distinct tag used by the account's transactions.
func (s *Store) ListTags(_ context.Context, accountID int64) ([]core.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	out := []core.Tag{}
	for _, r := range s.txs {
		if r.account != accountID {
			continue
		}
		for _, name := range r.tx.Tags {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, core.Tag{ID: int64(len(out) + 1), Name: name})
		}
	}
	return out, nil
}

// Insights compares this month's spending per category with the average of
// the previous historyMonths months.
func (s *Store) Insights(_ context.Context, accountID int64, historyMonths int) ([]string, error) {
	if historyMonths <= 0 {
		historyMonths = 12
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := core.CurrentPeriod(s.now())
	now := s.expenseByCategory(accountID, current)

	past := map[int64]decimal.Decimal{}
	start, _ := current.Bounds()
	for i := 1; i <= historyMonths; i++ {
		p := core.CurrentPeriod(start.AddDate(0, -i, 0))
		for id, v := range s.expenseByCategory(accountID, p) {
			past[id] = past[id].Add(v)
		}
	}

	ids := make([]int64, 0, len(now))
	for id := range now {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	months := decimal.NewFromInt(int64(historyMonths))
	out := []string{}
	for _, id := range ids {
		avg := past[id].Div(months)
		if !avg.IsPositive() || now[id].LessThanOrEqual(avg) {
			continue
		}
		name := core.DefaultCategoryName
		if c, ok := s.category(id); ok {
			name = c.Name
		}
		growth := core.Percent(now[id].Sub(avg).Div(avg))
		out = append(out, fmt.Sprintf("Gastos com %s estão %d%% acima da média (%s)", name, growth, core.FormatBRL(avg)))
	}
	return out, nil
}

func (s *Store) ImportStatement(context.Context, int64, string, io.Reader) error {
	return ErrImportUnsupported
}

func cloneTx(tx core.Transaction) core.Transaction {
	tx.Tags = slices.Clone(tx.Tags)
	return tx
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// dedupe keeps the first occurrence of each name, in input order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
