package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praondefoi/internal/balance"
	"praondefoi/internal/core"
	"praondefoi/internal/finance"
	"praondefoi/internal/paging"
)

var march = core.Period{Month: 3, Year: 2024}

func seed(t *testing.T, s *Store, n int) {
	t.Helper()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range n {
		_, err := s.CreateTransaction(context.Background(), 1, core.Transaction{
			Amount:      decimal.NewFromInt(int64(i + 1)),
			Kind:        core.KindExpense,
			Description: "item",
			CategoryID:  1,
			OccurredAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
}

func TestListTransactionsCapsPageSize(t *testing.T) {
	s := New([]string{"Mercado"}, WithMaxPageSize(5))
	seed(t, s, 12)

	page, err := s.ListTransactions(context.Background(), finance.TransactionQuery{
		AccountID: 1,
		Paging:    paging.ForPage(1, 100),
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.Equal(t, 12, *page.Meta.TotalItems)
	assert.Equal(t, 3, *page.Meta.TotalPages)
	assert.True(t, *page.Meta.HasNext)
}

func TestListTransactionsNewestFirstAndOffset(t *testing.T) {
	s := New([]string{"Mercado"})
	seed(t, s, 4)

	page, err := s.ListTransactions(context.Background(), finance.TransactionQuery{
		AccountID: 1,
		Paging:    paging.ForPage(2, 2),
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.Items[0].Amount.Equal(decimal.NewFromInt(2)))
	assert.True(t, page.Items[1].Amount.Equal(decimal.NewFromInt(1)))
	assert.False(t, *page.Meta.HasNext)
	assert.Equal(t, "Mercado", page.Items[0].CategoryName)
}

func TestListTransactionsIsolatesAccounts(t *testing.T) {
	s := New(nil)
	seed(t, s, 3)

	page, err := s.ListTransactions(context.Background(), finance.TransactionQuery{AccountID: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, *page.Meta.HasNext)
}

func TestSummaryAndBalance(t *testing.T) {
	ctx := context.Background()
	s := New([]string{"Salário"})
	_, err := s.CreateTransaction(ctx, 1, core.Transaction{
		Amount: decimal.NewFromInt(5000), Kind: core.KindIncome, Description: "salário",
		OccurredAt: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	seed(t, s, 3) // 1+2+3 expense

	sum, err := s.MonthlySummary(ctx, 1, march)
	require.NoError(t, err)
	assert.True(t, sum.TotalIncome.Equal(decimal.NewFromInt(5000)))
	assert.True(t, sum.TotalExpense.Equal(decimal.NewFromInt(6)))
	assert.True(t, sum.MonthBalance.Equal(decimal.NewFromInt(4994)))

	raw, err := s.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Resolve(raw, nil).Equal(decimal.NewFromInt(4994)))
}

func TestBudgets(t *testing.T) {
	ctx := context.Background()
	s := New([]string{"Mercado", "Lazer"})
	seed(t, s, 4) // 10 spent in Mercado

	id, err := s.CreateBudget(ctx, 1, march, 1, decimal.NewFromInt(8))
	require.NoError(t, err)
	again, err := s.CreateBudget(ctx, 1, march, 1, decimal.NewFromInt(20))
	require.NoError(t, err)
	assert.Equal(t, id, again, "same category and month updates the limit")
	_, err = s.CreateBudget(ctx, 1, march, 2, decimal.NewFromInt(30))
	require.NoError(t, err)

	usages, err := s.ListBudgets(ctx, 1, march)
	require.NoError(t, err)
	require.Len(t, usages, 2)
	assert.Equal(t, "Mercado", usages[0].CategoryName)
	assert.True(t, usages[0].UsageRatio.Equal(decimal.RequireFromString("0.5")))

	st, err := s.BudgetStatus(ctx, 1, march)
	require.NoError(t, err)
	assert.True(t, st.Limit.Equal(decimal.NewFromInt(50)))
	assert.True(t, st.UsagePercent.Equal(decimal.NewFromInt(20)))

	a, err := s.BudgetAnalysis(ctx, 1, march)
	require.NoError(t, err)
	assert.True(t, a.Distribution.TotalExpense.Equal(decimal.NewFromInt(10)))
	require.Len(t, a.Distribution.Items, 1)
	assert.True(t, a.Distribution.Items[0].Percent.Equal(decimal.NewFromInt(100)))

	_, err = s.CreateBudget(ctx, 1, core.Period{Month: 13, Year: 2024}, 1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestGoals(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	id, err := s.CreateGoal(ctx, 1, core.Goal{Name: "Reserva", TargetAmount: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	require.NoError(t, s.Contribute(ctx, id, decimal.NewFromInt(250)))
	assert.ErrorIs(t, s.Contribute(ctx, id+100, decimal.NewFromInt(1)), ErrNotFound)
	assert.ErrorIs(t, s.Contribute(ctx, id, decimal.Zero), core.ErrInvalidAmount)

	goals, err := s.ListGoals(ctx, 1)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.True(t, goals[0].CurrentAmount.Equal(decimal.NewFromInt(250)))
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	seed(t, s, 1)

	page, _ := s.ListTransactions(ctx, finance.TransactionQuery{AccountID: 1})
	tx := page.Items[0]
	tx.Description = "editado"
	tx.Tags = []string{"casa"}
	require.NoError(t, s.UpdateTransaction(ctx, 1, tx))

	tags, err := s.ListTags(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []core.Tag{{ID: 1, Name: "casa"}}, tags)

	require.NoError(t, s.DeleteTransaction(ctx, tx.ID))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, tx.ID), ErrNotFound)
}

func TestInsights(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	s := New([]string{"Lazer"}, WithClock(func() time.Time { return now }))

	add := func(day time.Time, amount int64) {
		_, err := s.CreateTransaction(ctx, 1, core.Transaction{
			Amount: decimal.NewFromInt(amount), Description: "x", CategoryID: 1, OccurredAt: day,
		})
		require.NoError(t, err)
	}
	add(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), 100)
	add(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 150)

	got, err := s.Insights(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gastos com Lazer estão 50% acima da média (R$ 100,00)"}, got)
}

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	cats, _ := s.ListCategories(context.Background(), 1)
	assert.NotEmpty(t, cats, "defaults when the seed file is missing")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte("# header\nA\nB\nA\n\n"), 0o644))
	s = NewFromFiles(dir)
	cats, _ = s.ListCategories(context.Background(), 1)
	assert.Equal(t, []core.Category{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}, cats)
}

func TestImportUnsupported(t *testing.T) {
	assert.ErrorIs(t, New(nil).ImportStatement(context.Background(), 1, "f.ofx", nil), ErrImportUnsupported)
}
