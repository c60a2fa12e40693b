// Package metrics derives the budget and goal figures shown to the user.
//
// Percentages are whole numbers rounded half away from zero. Per-category
// budget percentages are left unclamped so overspending stays visible; goal
// percentages and the aggregate budget bar are clamped to 0..100.
package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"praondefoi/internal/core"
)

// Tier classifies budget consumption.
type Tier string

const (
	TierOK      Tier = "ok"
	TierWarning Tier = "warning"
	TierOver    Tier = "over"
)

const (
	warningThreshold = 80
	overThreshold    = 100
)

// GoalStage classifies goal progress.
type GoalStage string

const (
	GoalStarting    GoalStage = "starting"
	GoalProgressing GoalStage = "progressing"
	GoalAdvanced    GoalStage = "advanced"
	GoalReached     GoalStage = "reached"
)

// UsagePercent is round(spent/limit*100), or 0 when there is no positive limit.
func UsagePercent(spent, limit decimal.Decimal) int64 {
	if !limit.IsPositive() {
		return 0
	}
	return core.Percent(spent.Div(limit))
}

// Remaining is max(0, ceiling-used).
func Remaining(ceiling, used decimal.Decimal) decimal.Decimal {
	r := ceiling.Sub(used)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Clamp bounds p to [0,100].
func Clamp(p int64) int64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// TierFor maps a percentage to a tier. Each tier includes its lower bound.
func TierFor(percent int64) Tier {
	switch {
	case percent >= overThreshold:
		return TierOver
	case percent >= warningThreshold:
		return TierWarning
	default:
		return TierOK
	}
}

// CategoryBudget is a per-category row ready for display.
type CategoryBudget struct {
	Usage     core.BudgetUsage
	Percent   int64 // unclamped
	Remaining decimal.Decimal
	Tier      Tier
}

// Category derives the display figures for one budget row. The percentage
// comes from the usage ratio the server reported, or the derived one.
func Category(u core.BudgetUsage) CategoryBudget {
	p := core.Percent(u.UsageRatio)
	return CategoryBudget{
		Usage:     u,
		Percent:   p,
		Remaining: Remaining(u.Limit, u.Spent),
		Tier:      TierFor(p),
	}
}

// Categories derives every row and orders them by percentage, highest first.
// Ties keep their original order.
func Categories(usages []core.BudgetUsage) []CategoryBudget {
	out := make([]CategoryBudget, 0, len(usages))
	for _, u := range usages {
		out = append(out, Category(u))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percent > out[j].Percent })
	return out
}

// Aggregate is the account-wide budget indicator.
type Aggregate struct {
	Limit      decimal.Decimal
	Spent      decimal.Decimal
	Percent    int64 // true percentage
	BarPercent int64 // clamped for the progress bar
	Remaining  decimal.Decimal
	Tier       Tier
	Empty      bool // no budgets defined
}

// AggregateOf sums limits and spending across categories and divides once,
// so small budgets do not skew the result.
func AggregateOf(usages []core.BudgetUsage) Aggregate {
	if len(usages) == 0 {
		return Aggregate{Limit: decimal.Zero, Spent: decimal.Zero, Remaining: decimal.Zero, Tier: TierOK, Empty: true}
	}
	limit, spent := decimal.Zero, decimal.Zero
	for _, u := range usages {
		limit = limit.Add(u.Limit)
		spent = spent.Add(u.Spent)
	}
	return aggregate(limit, spent, UsagePercent(spent, limit))
}

// AggregateFromStatus builds the indicator from the server's own aggregate,
// whose percentage is already scaled to 0..100.
func AggregateFromStatus(s core.BudgetStatus) Aggregate {
	return aggregate(s.Limit, s.Spent, s.UsagePercent.Round(0).IntPart())
}

func aggregate(limit, spent decimal.Decimal, percent int64) Aggregate {
	return Aggregate{
		Limit:      limit,
		Spent:      spent,
		Percent:    percent,
		BarPercent: Clamp(percent),
		Remaining:  Remaining(limit, spent),
		Tier:       TierFor(percent),
	}
}

// GoalProgress is a goal ready for display.
type GoalProgress struct {
	Goal      core.Goal
	Percent   int64 // 0..100
	Remaining decimal.Decimal
	Stage     GoalStage
}

// Goal derives progress for one savings goal.
func Goal(g core.Goal) GoalProgress {
	p := Clamp(UsagePercent(g.CurrentAmount, g.TargetAmount))
	return GoalProgress{
		Goal:      g,
		Percent:   p,
		Remaining: Remaining(g.TargetAmount, g.CurrentAmount),
		Stage:     StageFor(p),
	}
}

func Goals(goals []core.Goal) []GoalProgress {
	out := make([]GoalProgress, 0, len(goals))
	for _, g := range goals {
		out = append(out, Goal(g))
	}
	return out
}

// StageFor buckets goal progress: reached at 100, advanced above 60,
// progressing above 30.
func StageFor(percent int64) GoalStage {
	switch {
	case percent >= 100:
		return GoalReached
	case percent > 60:
		return GoalAdvanced
	case percent > 30:
		return GoalProgressing
	default:
		return GoalStarting
	}
}

// Slice is one wedge of the expense distribution.
type Slice struct {
	CategoryID   int64
	CategoryName string
	Total        decimal.Decimal
	Percent      int64
}

// Distribution turns the server's expense distribution into rounded slices,
// largest first. Items with no spending are dropped.
func Distribution(d core.Distribution) []Slice {
	out := make([]Slice, 0, len(d.Items))
	for _, item := range d.Items {
		if !item.Total.IsPositive() {
			continue
		}
		p := item.Percent.Round(0).IntPart()
		if item.Percent.IsZero() && d.TotalExpense.IsPositive() {
			p = UsagePercent(item.Total, d.TotalExpense)
		}
		out = append(out, Slice{
			CategoryID:   item.CategoryID,
			CategoryName: item.CategoryName,
			Total:        item.Total,
			Percent:      p,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total.GreaterThan(out[j].Total) })
	return out
}
