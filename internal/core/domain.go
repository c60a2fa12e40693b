package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultDescription is shown for transactions without a description.
	DefaultDescription = "Sem descrição"
	// DefaultCategoryName is shown for transactions without a category.
	DefaultCategoryName = "Outros"
	// DefaultCurrency is assumed when the server omits one.
	DefaultCurrency = "BRL"
)

// Kind is the direction of a transaction.
type Kind int

const (
	KindExpense Kind = iota
	KindIncome
)

// Wire codes used by the finance API for tipo.
const (
	incomeCode  = 1
	expenseCode = 2
)

type (
	Transaction struct {
		ID           int64
		Amount       decimal.Decimal // magnitude, never negative
		Kind         Kind
		Description  string
		CategoryID   int64 // 0 when absent
		CategoryName string
		Tags         []string
		OccurredAt   time.Time
		Currency     string
	}

	Period struct {
		Month int
		Year  int
	}

	MonthlySummary struct {
		AccountID           int64
		Month               int
		Year                int
		TotalIncome         decimal.Decimal
		TotalExpense        decimal.Decimal
		MonthBalance        decimal.Decimal
		RecurringIncome     decimal.Decimal
		RecurringExpense    decimal.Decimal
		SubscriptionExpense decimal.Decimal
		Currency            string
	}

	BudgetUsage struct {
		BudgetID     int64
		CategoryID   int64
		CategoryName string
		Limit        decimal.Decimal
		Spent        decimal.Decimal
		// UsageRatio is spent/limit, either reported by the server or derived.
		UsageRatio decimal.Decimal
	}

	BudgetAverage struct {
		Limit        decimal.Decimal
		Spent        decimal.Decimal
		UsagePercent decimal.Decimal
	}

	DistributionItem struct {
		CategoryID   int64
		CategoryName string
		Total        decimal.Decimal
		Percent      decimal.Decimal
	}

	Distribution struct {
		TotalExpense decimal.Decimal
		Items        []DistributionItem
	}

	BudgetAnalysis struct {
		Average      BudgetAverage
		Usage        []BudgetUsage
		Distribution Distribution
	}

	// BudgetStatus is the account-wide budget aggregate reported by the server.
	BudgetStatus struct {
		UsagePercent decimal.Decimal
		Limit        decimal.Decimal
		Spent        decimal.Decimal
	}

	Goal struct {
		ID            int64
		Name          string
		TargetAmount  decimal.Decimal
		CurrentAmount decimal.Decimal
		StartDate     time.Time
		EndDate       time.Time
		CategoryID    int64
		CategoryName  string
	}

	Recurrence struct {
		ID          int64
		Kind        Kind
		Amount      decimal.Decimal
		Description string
		Frequency   string
		StartDate   time.Time
		NextRun     *time.Time
	}

	Subscription struct {
		ID         int64
		Name       string
		Amount     decimal.Decimal
		Frequency  string
		StartDate  time.Time
		NextCharge *time.Time
	}

	Category struct {
		ID   int64
		Name string
		Kind Kind
	}

	Tag struct {
		ID   int64
		Name string
	}
)

var (
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
)

// KindFromCode maps the numeric wire code. Only 1 is income.
func KindFromCode(code int64) Kind {
	if code == incomeCode {
		return KindIncome
	}
	return KindExpense
}

// ParseKind maps a textual tipo. Unknown values are expenses.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "entrada", "receita", "income":
		return KindIncome
	default:
		return KindExpense
	}
}

// Code returns the numeric value the API expects for tipo.
func (k Kind) Code() int {
	if k == KindIncome {
		return incomeCode
	}
	return expenseCode
}

func (k Kind) String() string {
	if k == KindIncome {
		return "entrada"
	}
	return "saida"
}

// Signed returns the amount with the sign implied by the kind.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == KindIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Validate checks a transaction before it is sent to the server.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Balance is income minus expense for the month.
func (s MonthlySummary) Balance() decimal.Decimal {
	return s.TotalIncome.Sub(s.TotalExpense)
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Bounds returns the first instant of the month and the first instant of the next one.
func (p Period) Bounds() (time.Time, time.Time) {
	start := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// CurrentPeriod returns the month containing now.
func CurrentPeriod(now time.Time) Period {
	return Period{Month: int(now.Month()), Year: now.Year()}
}
