package balance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"praondefoi/internal/core"
	"praondefoi/internal/normalize"
)

func raw(t *testing.T, body string) any {
	t.Helper()
	v, err := normalize.Decode([]byte(body))
	if err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return v
}

func TestResolve(t *testing.T) {
	summary := &core.MonthlySummary{
		TotalIncome:  decimal.NewFromInt(500),
		TotalExpense: decimal.NewFromInt(200),
	}

	tests := []struct {
		name    string
		body    string
		summary *core.MonthlySummary
		want    string
	}{
		{"bare number", `1234.56`, nil, "1234.56"},
		{"saldo key", `{"saldo": 900}`, summary, "900"},
		{"lookup order prefers saldo over saldoAtual", `{"saldoAtual": 5, "saldo": 7}`, nil, "7"},
		{"saldoAtual", `{"saldoAtual": "42.10"}`, nil, "42.10"},
		{"valor", `{"valor": 3}`, nil, "3"},
		{"balance", `{"balance": -15}`, nil, "-15"},
		{"pascal Saldo", `{"Saldo": 8}`, nil, "8"},
		{"wrapped in data", `{"data": {"saldo": 11}}`, nil, "11"},
		{"zero falls back to summary", `{"saldo": 0}`, summary, "300"},
		{"bare zero falls back to summary", `0`, summary, "300"},
		{"missing field falls back to summary", `{}`, summary, "300"},
		{"zero without summary", `{"saldo": 0}`, nil, "0"},
		{"garbage without summary", `"n/a"`, nil, "0"},
		{"null body", ``, nil, "0"},
		{"numeric string", `"77.5"`, nil, "77.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(raw(t, tt.body), tt.summary)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}
