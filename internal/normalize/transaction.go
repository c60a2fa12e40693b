package normalize

import (
	"strings"

	"praondefoi/internal/core"
)

// Transaction maps one raw transaction record.
func Transaction(raw any) core.Transaction {
	obj, _ := Object(raw)

	tx := core.Transaction{
		ID:          integer(obj, transactionIDKeys),
		Amount:      number(obj, transactionAmountKeys).Abs(),
		Kind:        kind(obj, transactionKindKeys),
		Description: text(obj, transactionDescriptionKeys),
		Tags:        Tags(firstValue(obj, transactionTagKeys)),
		OccurredAt:  timestamp(obj, transactionDateKeys),
		Currency:    text(obj, transactionCurrencyKeys),
	}
	tx.CategoryID, tx.CategoryName = category(obj)

	if tx.Description == "" {
		tx.Description = core.DefaultDescription
	}
	if tx.CategoryName == "" {
		tx.CategoryName = core.DefaultCategoryName
	}
	if tx.Currency == "" {
		tx.Currency = core.DefaultCurrency
	}
	return tx
}

// Transactions maps every record of a list response, in order.
func Transactions(raw any) []core.Transaction {
	items := List(raw)
	out := make([]core.Transaction, 0, len(items))
	for _, item := range items {
		out = append(out, Transaction(item))
	}
	return out
}

// category prefers a nested categoria object over the flat id/name pair.
func category(obj map[string]any) (int64, string) {
	if nested, ok := Lookup(obj, transactionCategoryKeys); ok {
		if c, ok := Object(nested); ok {
			id := integer(c, entityIDKeys)
			if id == 0 {
				id = integer(obj, transactionCategoryIDKeys)
			}
			name := text(c, entityNameKeys)
			if name == "" {
				name = text(obj, transactionCategoryNameKeys)
			}
			return id, name
		}
		// Some endpoints send the category name as a plain string.
		if s := stringOf(nested); s != "" && !IsNumeric(nested) {
			return integer(obj, transactionCategoryIDKeys), s
		}
	}
	return integer(obj, transactionCategoryIDKeys), text(obj, transactionCategoryNameKeys)
}

// Tags coerces a tag list made of strings or of objects with a name field.
// Entries are trimmed, empty ones dropped and order preserved. Duplicates
// are kept as received.
func Tags(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		var name string
		switch v := item.(type) {
		case string:
			name = v
		case map[string]any:
			name = text(v, entityNameKeys)
		default:
			name = stringOf(v)
		}
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func firstValue(obj map[string]any, keys []string) any {
	v, _ := Lookup(obj, keys)
	return v
}

var knownExpenseKinds = map[string]bool{"2": true, "saida": true, "despesa": true, "expense": true}

// UnknownKinds counts records whose tipo is neither a recognized income nor
// a recognized expense encoding. Such records are still mapped to expenses;
// the count only feeds data-quality logging.
func UnknownKinds(raw any) int {
	n := 0
	for _, item := range List(raw) {
		obj, _ := Object(item)
		v, ok := Lookup(obj, transactionKindKeys)
		if !ok {
			n++
			continue
		}
		s := strings.ToLower(stringOf(v))
		if core.ParseKind(s) == core.KindIncome || knownExpenseKinds[s] {
			continue
		}
		n++
	}
	return n
}
