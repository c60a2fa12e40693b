package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praondefoi/internal/core"
	"praondefoi/internal/finance"
	"praondefoi/internal/finance/memory"
	"praondefoi/internal/paging"
)

// fakeLister serves pages from a function and records the queries it saw.
type fakeLister struct {
	pageFn  func(q finance.TransactionQuery) (finance.Page, error)
	queries []finance.TransactionQuery
}

func (f *fakeLister) ListTransactions(ctx context.Context, q finance.TransactionQuery) (finance.Page, error) {
	f.queries = append(f.queries, q)
	if _, ok := ctx.Deadline(); !ok {
		return finance.Page{}, errors.New("page request without deadline")
	}
	return f.pageFn(q)
}

func txs(startID, n int) []core.Transaction {
	out := make([]core.Transaction, n)
	for i := range out {
		out[i] = core.Transaction{ID: int64(startID + i), Amount: decimal.NewFromInt(1), Description: "t"}
	}
	return out
}

func TestFetchAllAcrossPages(t *testing.T) {
	sizes := []int{2000, 2000, 437}
	f := &fakeLister{pageFn: func(q finance.TransactionQuery) (finance.Page, error) {
		page := *q.Paging.Page
		return finance.Page{Items: txs((page-1)*2000+1, sizes[page-1])}, nil
	}}
	e := New(f, Config{}, nil)

	got, err := e.FetchAll(context.Background(), finance.TransactionQuery{AccountID: 1})
	require.NoError(t, err)
	assert.Len(t, got, 4437)
	assert.Len(t, f.queries, 3)
	for i, q := range f.queries {
		assert.Equal(t, i+1, *q.Paging.Page)
		assert.Equal(t, 2000, *q.Paging.PageSize)
	}
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1].ID, got[i].ID, "server order preserved")
	}
}

func TestCollectReportsPages(t *testing.T) {
	f := &fakeLister{pageFn: func(q finance.TransactionQuery) (finance.Page, error) {
		if *q.Paging.Page == 3 {
			return finance.Page{Items: txs(21, 2)}, nil
		}
		return finance.Page{Items: txs((*q.Paging.Page-1)*10+1, 10)}, nil
	}}

	res, err := New(f, Config{MaxPageSize: 10}, nil).Collect(context.Background(), finance.TransactionQuery{})
	require.NoError(t, err)
	assert.Len(t, res.Transactions, 22)
	assert.Equal(t, 3, res.Pages)
}

func TestFetchAllStopsOnShortPageDespiteFlag(t *testing.T) {
	f := &fakeLister{pageFn: func(q finance.TransactionQuery) (finance.Page, error) {
		return finance.Page{Items: txs(1, 3), Meta: paging.Meta{HasNext: paging.Bool(true)}}, nil
	}}
	got, err := New(f, Config{MaxPageSize: 10}, nil).FetchAll(context.Background(), finance.TransactionQuery{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Len(t, f.queries, 1)
}

func TestFetchAllHonoursExplicitNoMore(t *testing.T) {
	f := &fakeLister{pageFn: func(q finance.TransactionQuery) (finance.Page, error) {
		return finance.Page{Items: txs(1, 10), Meta: paging.Meta{HasNext: paging.Bool(false)}}, nil
	}}
	got, err := New(f, Config{MaxPageSize: 10}, nil).FetchAll(context.Background(), finance.TransactionQuery{})
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.Len(t, f.queries, 1)
}

func TestFetchAllEmpty(t *testing.T) {
	f := &fakeLister{pageFn: func(q finance.TransactionQuery) (finance.Page, error) {
		return finance.Page{}, nil
	}}
	got, err := New(f, Config{}, nil).FetchAll(context.Background(), finance.TransactionQuery{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFetchAllBoundIsIncomplete(t *testing.T) {
	next := 1
	f := &fakeLister{pageFn: func(q finance.TransactionQuery) (finance.Page, error) {
		items := txs(next, 5)
		next += 5
		return finance.Page{Items: items, Meta: paging.Meta{HasNext: paging.Bool(true)}}, nil
	}}
	got, err := New(f, Config{MaxPageSize: 5, MaxPages: 4}, nil).FetchAll(context.Background(), finance.TransactionQuery{})

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExportIncomplete)
	var inc *core.ExportIncompleteError
	require.True(t, errors.As(err, &inc))
	assert.Equal(t, 20, inc.Fetched)
	assert.Equal(t, 4, inc.Pages)
	assert.Len(t, got, 20)
	assert.Len(t, f.queries, 4)
}

func TestFetchAllFailureDiscardsPartial(t *testing.T) {
	boom := &core.RequestError{Op: "list transactions", Status: 500}
	f := &fakeLister{pageFn: func(q finance.TransactionQuery) (finance.Page, error) {
		if *q.Paging.Page == 3 {
			return finance.Page{}, boom
		}
		return finance.Page{Items: txs((*q.Paging.Page-1)*10+1, 10)}, nil
	}}
	got, err := New(f, Config{MaxPageSize: 10}, nil).FetchAll(context.Background(), finance.TransactionQuery{})

	assert.Nil(t, got)
	assert.ErrorIs(t, err, core.ErrExportFailed)
	assert.ErrorIs(t, err, core.ErrRequestFailed)
	var failed *core.ExportFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 20, failed.Fetched)
	assert.Equal(t, 3, failed.Page)
}

func TestPagerSkipsRepeatedIDs(t *testing.T) {
	f := &fakeLister{pageFn: func(q finance.TransactionQuery) (finance.Page, error) {
		if *q.Paging.Page == 1 {
			return finance.Page{Items: txs(1, 4)}, nil
		}
		// Row 4 shifted onto the second page.
		return finance.Page{Items: append(txs(4, 1), core.Transaction{ID: 0, Description: "no id"})}, nil
	}}
	p := New(f, Config{MaxPageSize: 4}, nil).Pager(finance.TransactionQuery{})

	first, ok := p.Next(context.Background())
	require.True(t, ok)
	assert.Len(t, first, 4)

	second, ok := p.Next(context.Background())
	require.True(t, ok)
	require.Len(t, second, 1)
	assert.Equal(t, "no id", second[0].Description)

	_, ok = p.Next(context.Background())
	assert.False(t, ok)
	assert.NoError(t, p.Err())
	assert.Equal(t, 5, p.Fetched())
	assert.Equal(t, 2, p.Pages())
}

func TestFetchAllAgainstMemoryBackendCap(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil, memory.WithMaxPageSize(7))
	for i := range 30 {
		_, err := store.CreateTransaction(ctx, 1, core.Transaction{
			Amount:      decimal.NewFromInt(int64(i + 1)),
			Description: "x",
			OccurredAt:  time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	// A backend capping below the requested size returns a short first page,
	// which ends the walk. MaxPageSize must not exceed the server cap.
	got, err := New(store, Config{MaxPageSize: 10}, nil).FetchAll(ctx, finance.TransactionQuery{AccountID: 1})
	require.NoError(t, err)
	assert.Len(t, got, 7)
}

func TestTotals(t *testing.T) {
	tot := TotalsOf([]core.Transaction{
		{Amount: decimal.RequireFromString("100.50"), Kind: core.KindIncome},
		{Amount: decimal.RequireFromString("40.25"), Kind: core.KindExpense},
		{Amount: decimal.RequireFromString("10"), Kind: core.KindExpense},
	})
	assert.Equal(t, 3, tot.Count)
	assert.True(t, tot.Income.Equal(decimal.RequireFromString("100.50")))
	assert.True(t, tot.Expense.Equal(decimal.RequireFromString("50.25")))
	assert.True(t, tot.Balance.Equal(decimal.RequireFromString("50.25")))
}

func TestCSVSink(t *testing.T) {
	dir := t.TempDir()
	exp := NewExport("run-1", 1, time.Time{}, time.Time{}, []core.Transaction{
		{ID: 7, Amount: decimal.RequireFromString("12.5"), Kind: core.KindExpense, Description: "Café, pão",
			CategoryName: "Alimentação", Currency: "BRL", OccurredAt: time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)},
	}, time.Now())

	ref, err := NewCSVSink(dir).Write(context.Background(), exp)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "transacoes-run-1.csv"), ref)

	body, err := os.ReadFile(ref)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,Data,Descrição,Tipo,Valor,Categoria,Moeda", lines[0])
	assert.Equal(t, `7,2024-05-02,"Café, pão",saida,12.50,Alimentação,BRL`, lines[1])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
