package export

import (
	"time"

	"github.com/shopspring/decimal"

	"praondefoi/internal/core"
)

// Totals aggregates an exported set.
type Totals struct {
	Count   int
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

func TotalsOf(txs []core.Transaction) Totals {
	t := Totals{Count: len(txs)}
	for _, tx := range txs {
		if tx.Kind == core.KindIncome {
			t.Income = t.Income.Add(tx.Amount)
		} else {
			t.Expense = t.Expense.Add(tx.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// Export is a complete transaction set ready for a sink.
type Export struct {
	RunID        string
	AccountID    int64
	From         time.Time
	To           time.Time
	GeneratedAt  time.Time
	Transactions []core.Transaction
	Totals       Totals
}

func NewExport(runID string, accountID int64, from, to time.Time, txs []core.Transaction, now time.Time) Export {
	return Export{
		RunID:        runID,
		AccountID:    accountID,
		From:         from,
		To:           to,
		GeneratedAt:  now,
		Transactions: txs,
		Totals:       TotalsOf(txs),
	}
}
