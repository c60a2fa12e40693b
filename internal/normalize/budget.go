package normalize

import (
	"praondefoi/internal/core"
)

// Summary maps the monthly summary (resumo-mensal) response.
func Summary(raw any) core.MonthlySummary {
	obj := Unwrap(raw)
	s := core.MonthlySummary{
		AccountID:           integer(obj, summaryAccountKeys),
		Month:               int(integer(obj, summaryMonthKeys)),
		Year:                int(integer(obj, summaryYearKeys)),
		TotalIncome:         number(obj, summaryIncomeKeys),
		TotalExpense:        number(obj, summaryExpenseKeys),
		MonthBalance:        number(obj, summaryMonthBalanceKeys),
		RecurringIncome:     number(obj, summaryRecurringIncomeKeys),
		RecurringExpense:    number(obj, summaryRecurringExpenseKeys),
		SubscriptionExpense: number(obj, summarySubscriptionExpenseKeys),
		Currency:            text(obj, summaryCurrencyKeys),
	}
	if s.Currency == "" {
		s.Currency = core.DefaultCurrency
	}
	return s
}

// BudgetUsage maps one per-category budget row. When the server omits the
// usage ratio it is derived from spent and limit.
func BudgetUsage(raw any) core.BudgetUsage {
	obj, _ := Object(raw)
	u := core.BudgetUsage{
		BudgetID:     integer(obj, budgetIDKeys),
		CategoryID:   integer(obj, budgetCategoryIDKeys),
		CategoryName: text(obj, budgetCategoryNameKeys),
		Limit:        number(obj, budgetLimitKeys),
		Spent:        number(obj, budgetSpentKeys),
	}
	if u.CategoryName == "" {
		u.CategoryName = core.DefaultCategoryName
	}
	if v, ok := Lookup(obj, budgetRatioKeys); ok {
		u.UsageRatio = Number(v)
	} else if u.Limit.IsPositive() {
		u.UsageRatio = u.Spent.Div(u.Limit)
	}
	return u
}

// BudgetUsages maps a budget list response.
func BudgetUsages(raw any) []core.BudgetUsage {
	items := List(raw)
	out := make([]core.BudgetUsage, 0, len(items))
	for _, item := range items {
		out = append(out, BudgetUsage(item))
	}
	return out
}

// BudgetAnalysis maps the orcamentos/analises response.
func BudgetAnalysis(raw any) core.BudgetAnalysis {
	obj := Unwrap(raw)
	var a core.BudgetAnalysis

	if v, ok := Lookup(obj, analysisAverageKeys); ok {
		avg, _ := Object(v)
		a.Average = core.BudgetAverage{
			Limit:        number(avg, averageLimitKeys),
			Spent:        number(avg, averageSpentKeys),
			UsagePercent: number(avg, averageUsageKeys),
		}
	}

	a.Usage = []core.BudgetUsage{}
	if v, ok := Lookup(obj, analysisUsageKeys); ok {
		a.Usage = BudgetUsages(v)
	}

	a.Distribution.Items = []core.DistributionItem{}
	if v, ok := Lookup(obj, analysisDistributionKeys); ok {
		dist, _ := Object(v)
		a.Distribution.TotalExpense = number(dist, distributionTotalKeys)
		items, _ := Lookup(dist, distributionItemsKeys)
		for _, item := range List(items) {
			it, _ := Object(item)
			di := core.DistributionItem{
				CategoryID:   integer(it, budgetCategoryIDKeys),
				CategoryName: text(it, budgetCategoryNameKeys),
				Total:        number(it, distributionItemTotalKeys),
				Percent:      number(it, distributionItemPercentKeys),
			}
			if di.CategoryName == "" {
				di.CategoryName = core.DefaultCategoryName
			}
			a.Distribution.Items = append(a.Distribution.Items, di)
		}
	}
	return a
}

// BudgetStatus maps the orcamentos/status aggregate. The percent is reported
// already scaled to 0..100.
func BudgetStatus(raw any) core.BudgetStatus {
	obj := Unwrap(raw)
	return core.BudgetStatus{
		UsagePercent: number(obj, statusPercentKeys),
		Limit:        number(obj, statusLimitKeys),
		Spent:        number(obj, statusSpentKeys),
	}
}

// HasBudgetStatus reports whether the payload carried any budget figure.
func HasBudgetStatus(raw any) bool {
	obj := Unwrap(raw)
	for _, keys := range [][]string{statusPercentKeys, statusLimitKeys, statusSpentKeys} {
		if _, ok := Lookup(obj, keys); ok {
			return true
		}
	}
	return false
}

