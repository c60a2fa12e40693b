// Package finance declares the ports the client uses to reach a finance
// backend and the query types shared by every adapter.
package finance

import (
	"context"
	"io"

	"github.com/shopspring/decimal"

	"praondefoi/internal/core"
	"praondefoi/internal/paging"
)

// Page is one page of a transaction listing.
type Page struct {
	Items []core.Transaction
	Meta  paging.Meta
}

// Ports for outbound adapters.
type (
	SummaryReader interface {
		MonthlySummary(ctx context.Context, accountID int64, period core.Period) (core.MonthlySummary, error)
	}

	TransactionLister interface {
		// ListTransactions returns one page. The query's paging is reconciled
		// before it is sent.
		ListTransactions(ctx context.Context, q TransactionQuery) (Page, error)
	}

	TransactionWriter interface {
		CreateTransaction(ctx context.Context, accountID int64, tx core.Transaction) (int64, error)
		UpdateTransaction(ctx context.Context, accountID int64, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id int64) error
	}

	BudgetReader interface {
		ListBudgets(ctx context.Context, accountID int64, period core.Period) ([]core.BudgetUsage, error)
		BudgetAnalysis(ctx context.Context, accountID int64, period core.Period) (core.BudgetAnalysis, error)
		BudgetStatus(ctx context.Context, accountID int64, period core.Period) (core.BudgetStatus, error)
	}

	BudgetWriter interface {
		CreateBudget(ctx context.Context, accountID int64, period core.Period, categoryID int64, limit decimal.Decimal) (int64, error)
	}

	// BalanceReader returns the saldo-atual payload untouched. Its shape
	// varies, so callers resolve it with the balance package.
	BalanceReader interface {
		CurrentBalance(ctx context.Context, accountID int64) (any, error)
	}

	GoalStore interface {
		ListGoals(ctx context.Context, accountID int64) ([]core.Goal, error)
		CreateGoal(ctx context.Context, accountID int64, g core.Goal) (int64, error)
		Contribute(ctx context.Context, goalID int64, amount decimal.Decimal) error
	}

	RecurrenceLister interface {
		ListRecurrences(ctx context.Context, accountID int64) ([]core.Recurrence, error)
		ListSubscriptions(ctx context.Context, accountID int64) ([]core.Subscription, error)
	}

	TaxonomyReader interface {
		ListCategories(ctx context.Context, accountID int64) ([]core.Category, error)
		ListTags(ctx context.Context, accountID int64) ([]core.Tag, error)
	}

	InsightsReader interface {
		// Insights returns advice computed over the last historyMonths months.
		Insights(ctx context.Context, accountID int64, historyMonths int) ([]string, error)
	}

	// StatementImporter uploads a bank statement file for server-side import.
	StatementImporter interface {
		ImportStatement(ctx context.Context, accountID int64, filename string, content io.Reader) error
	}
)
