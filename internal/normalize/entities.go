package normalize

import (
	"praondefoi/internal/core"
)

func Goal(raw any) core.Goal {
	obj, _ := Object(raw)
	g := core.Goal{
		ID:            integer(obj, entityIDKeys),
		Name:          text(obj, goalNameKeys),
		TargetAmount:  number(obj, goalTargetKeys),
		CurrentAmount: number(obj, goalCurrentKeys),
		StartDate:     timestamp(obj, goalStartKeys),
		EndDate:       timestamp(obj, goalEndKeys),
		CategoryID:    integer(obj, goalCategoryIDKeys),
	}
	if v, ok := Lookup(obj, goalCategoryKeys); ok {
		if c, ok := Object(v); ok {
			g.CategoryName = text(c, entityNameKeys)
			if g.CategoryID == 0 {
				g.CategoryID = integer(c, entityIDKeys)
			}
		}
	}
	if g.CurrentAmount.IsNegative() {
		g.CurrentAmount = g.CurrentAmount.Abs()
	}
	return g
}

func Goals(raw any) []core.Goal {
	items := List(raw)
	out := make([]core.Goal, 0, len(items))
	for _, item := range items {
		out = append(out, Goal(item))
	}
	return out
}

func Recurrence(raw any) core.Recurrence {
	obj, _ := Object(raw)
	r := core.Recurrence{
		ID:          integer(obj, entityIDKeys),
		Kind:        kind(obj, transactionKindKeys),
		Amount:      number(obj, transactionAmountKeys).Abs(),
		Description: text(obj, transactionDescriptionKeys),
		Frequency:   text(obj, recurrenceFrequencyKeys),
		StartDate:   timestamp(obj, recurrenceStartKeys),
		NextRun:     optionalTimestamp(obj, recurrenceNextKeys),
	}
	if r.Description == "" {
		r.Description = core.DefaultDescription
	}
	return r
}

func Recurrences(raw any) []core.Recurrence {
	items := List(raw)
	out := make([]core.Recurrence, 0, len(items))
	for _, item := range items {
		out = append(out, Recurrence(item))
	}
	return out
}

func Subscription(raw any) core.Subscription {
	obj, _ := Object(raw)
	return core.Subscription{
		ID:         integer(obj, entityIDKeys),
		Name:       text(obj, entityNameKeys),
		Amount:     number(obj, transactionAmountKeys).Abs(),
		Frequency:  text(obj, recurrenceFrequencyKeys),
		StartDate:  timestamp(obj, recurrenceStartKeys),
		NextCharge: optionalTimestamp(obj, subscriptionNextKeys),
	}
}

func Subscriptions(raw any) []core.Subscription {
	items := List(raw)
	out := make([]core.Subscription, 0, len(items))
	for _, item := range items {
		out = append(out, Subscription(item))
	}
	return out
}

// Categories maps the category directory. Entries without an id are skipped.
func Categories(raw any) []core.Category {
	items := List(raw)
	out := make([]core.Category, 0, len(items))
	for _, item := range items {
		obj, _ := Object(item)
		c := core.Category{
			ID:   integer(obj, entityIDKeys),
			Name: text(obj, entityNameKeys),
			Kind: kind(obj, transactionKindKeys),
		}
		if c.ID == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// TagList maps the tag directory.
func TagList(raw any) []core.Tag {
	items := List(raw)
	out := make([]core.Tag, 0, len(items))
	for _, item := range items {
		obj, _ := Object(item)
		t := core.Tag{ID: integer(obj, entityIDKeys), Name: text(obj, entityNameKeys)}
		if t.Name == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Insights accepts a bare list of messages or an object carrying them under
// one of the known keys, either as a list or as a single string.
func Insights(raw any) []string {
	var v any = raw
	if obj, ok := Object(raw); ok {
		v = nil
		for _, k := range insightsKeys {
			if candidate, ok := obj[k]; ok && truthy(candidate) {
				v = candidate
				break
			}
		}
	}

	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := stringOf(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if list == "" {
			return []string{}
		}
		return []string{list}
	default:
		return []string{}
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	default:
		return true
	}
}
