package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praondefoi/internal/core"
)

func TestSummaryCasing(t *testing.T) {
	camel := Summary(decode(t, `{"contaId":2,"mes":3,"ano":2025,"totalEntradas":5000,"totalSaidas":"1200.40","saldoMes":3799.6,"totalAssinaturasSaida":89.9}`))
	pascal := Summary(decode(t, `{"ContaId":2,"Mes":3,"Ano":2025,"TotalEntradas":5000,"TotalSaidas":"1200.40","SaldoMes":3799.6,"TotalAssinaturasSaida":89.9}`))

	assert.Equal(t, camel, pascal)
	assert.Equal(t, int64(2), camel.AccountID)
	assert.Equal(t, 3, camel.Month)
	assert.True(t, camel.TotalExpense.Equal(dec("1200.40")))
	assert.True(t, camel.Balance().Equal(dec("3799.60")))
	assert.Equal(t, core.DefaultCurrency, camel.Currency)
}

func TestSummaryEnvelopeAndGarbage(t *testing.T) {
	s := Summary(decode(t, `{"data":{"totalEntradas":10}}`))
	assert.True(t, s.TotalIncome.Equal(dec("10")))

	s = Summary(decode(t, `"nope"`))
	assert.True(t, s.TotalIncome.IsZero())
	assert.True(t, s.TotalExpense.IsZero())
}

func TestBudgetAnalysis(t *testing.T) {
	body := `{
		"media": {"mediaLimite": 500, "mediaGasto": 250, "mediaUsoPercentual": 50},
		"orcamentosUsoPercentual": [
			{"orcamentoId": 1, "categoriaId": 3, "categoriaNome": "Mercado", "limite": 800, "gasto": 1000, "percentualUso": 1.25},
			{"orcamentoId": 2, "categoriaId": 4, "limite": 200, "gasto": 50}
		],
		"distribuicaoPizza": {"totalGastos": 1050, "itens": [
			{"categoriaId": 3, "categoriaNome": "Mercado", "total": 1000, "percentual": 95.24},
			{"categoriaId": 4, "total": 50, "percentual": 4.76}
		]}
	}`
	a := BudgetAnalysis(decode(t, body))

	assert.True(t, a.Average.Limit.Equal(dec("500")))
	require.Len(t, a.Usage, 2)
	assert.True(t, a.Usage[0].UsageRatio.Equal(dec("1.25")))
	assert.Equal(t, "Mercado", a.Usage[0].CategoryName)
	assert.True(t, a.Usage[1].UsageRatio.Equal(dec("0.25")), "derived ratio = %s", a.Usage[1].UsageRatio)
	assert.Equal(t, core.DefaultCategoryName, a.Usage[1].CategoryName)

	require.Len(t, a.Distribution.Items, 2)
	assert.True(t, a.Distribution.TotalExpense.Equal(dec("1050")))
	assert.Equal(t, core.DefaultCategoryName, a.Distribution.Items[1].CategoryName)
}

func TestBudgetAnalysisEmpty(t *testing.T) {
	a := BudgetAnalysis(nil)
	assert.NotNil(t, a.Usage)
	assert.Empty(t, a.Usage)
	assert.NotNil(t, a.Distribution.Items)
	assert.True(t, a.Average.Spent.IsZero())
}

func TestBudgetUsageZeroLimit(t *testing.T) {
	u := BudgetUsage(decode(t, `{"limite":0,"gasto":40}`))
	assert.True(t, u.UsageRatio.IsZero())
}

func TestBudgetStatusProbeOrder(t *testing.T) {
	s := BudgetStatus(decode(t, `{"percentual":70,"percentualUso":10,"limite":1000,"gastoTotal":700,"gasto":1}`))
	assert.True(t, s.UsagePercent.Equal(dec("70")))
	assert.True(t, s.Limit.Equal(dec("1000")))
	assert.True(t, s.Spent.Equal(dec("700")))

	assert.True(t, HasBudgetStatus(decode(t, `{"limiteTotal":1}`)))
	assert.False(t, HasBudgetStatus(decode(t, `{}`)))
}

func TestGoals(t *testing.T) {
	body := `[{"id":1,"nome":"Viagem","valorAlvo":"5000","valorAtual":1250.5,"dataInicio":"2025-01-01","dataFim":"2025-12-31","categoria":{"id":8,"nome":"Lazer"}}]`
	goals := Goals(decode(t, body))
	require.Len(t, goals, 1)
	g := goals[0]
	assert.Equal(t, "Viagem", g.Name)
	assert.True(t, g.TargetAmount.Equal(dec("5000")))
	assert.True(t, g.CurrentAmount.Equal(dec("1250.5")))
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), g.EndDate)
	assert.Equal(t, int64(8), g.CategoryID)
	assert.Equal(t, "Lazer", g.CategoryName)
}

func TestRecurrencesAndSubscriptions(t *testing.T) {
	recs := Recurrences(decode(t, `{"data":[{"id":1,"tipo":1,"valor":3000,"descricao":"Salário","frequencia":"Mensal","dataInicio":"2025-01-05","proximaExecucao":"2025-04-05"},{"id":2,"tipo":2,"valor":120,"proximaExecucao":null}]}`))
	require.Len(t, recs, 2)
	assert.Equal(t, core.KindIncome, recs[0].Kind)
	require.NotNil(t, recs[0].NextRun)
	assert.Equal(t, 4, int(recs[0].NextRun.Month()))
	assert.Nil(t, recs[1].NextRun)
	assert.Equal(t, core.DefaultDescription, recs[1].Description)

	subs := Subscriptions(decode(t, `[{"Id":3,"Nome":"Streaming","Valor":39.9,"Frequencia":"Mensal","ProximaCobranca":"2025-04-10"}]`))
	require.Len(t, subs, 1)
	assert.Equal(t, "Streaming", subs[0].Name)
	assert.True(t, subs[0].Amount.Equal(dec("39.9")))
	require.NotNil(t, subs[0].NextCharge)
}

func TestCategoriesAndTags(t *testing.T) {
	cats := Categories(decode(t, `[{"id":1,"nome":"Mercado"},{"nome":"sem id"},{"Id":2,"Name":"Salário","tipo":"receita"}]`))
	require.Len(t, cats, 2)
	assert.Equal(t, core.KindIncome, cats[1].Kind)

	tags := TagList(decode(t, `{"items":[{"id":1,"nome":"casa"},{"id":2,"nome":""}]}`))
	require.Len(t, tags, 1)
	assert.Equal(t, "casa", tags[0].Name)
}

func TestInsights(t *testing.T) {
	cases := []struct {
		name string
		body string
		want []string
	}{
		{"bare list", `["Gaste menos", "", 42]`, []string{"Gaste menos", "42"}},
		{"insights key", `{"insights":["a","b"]}`, []string{"a", "b"}},
		{"empty list under first key", `{"insights":[],"mensagens":["x"]}`, []string{}},
		{"single message", `{"mensagem":"Tudo certo"}`, []string{"Tudo certo"}},
		{"texto key", `{"texto":"ok"}`, []string{"ok"}},
		{"unknown object", `{"foo":"bar"}`, []string{}},
		{"scalar", `12`, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Insights(decode(t, tc.body)))
		})
	}
}
