// Package balance resolves the single current-balance figure shown to the user.
package balance

import (
	"github.com/shopspring/decimal"

	"praondefoi/internal/core"
	"praondefoi/internal/normalize"
)

// balanceKeys is the lookup order for object responses.
var balanceKeys = []string{"saldo", "saldoAtual", "valor", "balance", "Saldo"}

// Resolve picks the balance out of a saldo-atual response.
//
// A numeric payload is used as is; an object is searched in a fixed key order.
// A resolved zero is ambiguous between a true zero and a missing field, so
// when a monthly summary is available its income minus expense wins.
func Resolve(raw any, summary *core.MonthlySummary) decimal.Decimal {
	value := extract(raw)
	if value.IsZero() && summary != nil {
		return summary.Balance()
	}
	return value
}

func extract(raw any) decimal.Decimal {
	if normalize.IsNumeric(raw) {
		return normalize.Number(raw)
	}
	obj := normalize.Unwrap(raw)
	if obj == nil {
		return normalize.Number(raw)
	}
	v, ok := normalize.Lookup(obj, balanceKeys)
	if !ok {
		return decimal.Zero
	}
	return normalize.Number(v)
}
