package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"praondefoi/internal/core"
)

func decode(t *testing.T, body string) any {
	t.Helper()
	v, err := Decode([]byte(body))
	require.NoError(t, err)
	return v
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDecodeMalformed(t *testing.T) {
	v, err := Decode([]byte("<html>oops</html>"))
	assert.ErrorIs(t, err, core.ErrMalformedResponse)
	assert.Nil(t, v)
	assert.Empty(t, Transactions(v))

	v, err = Decode([]byte("  "))
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func TestListEnvelopes(t *testing.T) {
	shapes := map[string]string{
		"bare array":  `[{"id":1},{"id":2}]`,
		"data":        `{"data":[{"id":1},{"id":2}]}`,
		"Data":        `{"Data":[{"id":1},{"id":2}]}`,
		"items":       `{"items":[{"id":1},{"id":2}]}`,
		"Items":       `{"Items":[{"Id":1},{"Id":2}]}`,
		"nested data": `{"data":{"items":[{"id":1},{"id":2}]}}`,
	}
	for name, body := range shapes {
		t.Run(name, func(t *testing.T) {
			txs := Transactions(decode(t, body))
			require.Len(t, txs, 2)
			assert.Equal(t, int64(1), txs[0].ID)
			assert.Equal(t, int64(2), txs[1].ID)
		})
	}

	assert.Empty(t, List(decode(t, `{"message":"nothing"}`)))
	assert.Empty(t, List(decode(t, `42`)))
	assert.Empty(t, List(nil))
}

func TestTransactionKinds(t *testing.T) {
	income := []string{`1`, `"1"`, `"entrada"`, `"receita"`, `"income"`, `" Entrada "`}
	expense := []string{`null`, `2`, `"2"`, `"saida"`, `"despesa"`, `true`, `1.5`, `{}`}

	for _, raw := range income {
		tx := Transaction(decode(t, `{"tipo":`+raw+`}`))
		assert.Equal(t, core.KindIncome, tx.Kind, "tipo=%s", raw)
	}
	for _, raw := range expense {
		tx := Transaction(decode(t, `{"tipo":`+raw+`}`))
		assert.Equal(t, core.KindExpense, tx.Kind, "tipo=%s", raw)
	}
	assert.Equal(t, core.KindExpense, Transaction(decode(t, `{}`)).Kind)
	assert.Equal(t, core.KindIncome, Transaction(decode(t, `{"Tipo":"receita"}`)).Kind)
}

func TestTransactionFieldPriority(t *testing.T) {
	body := `{
		"Id": 7,
		"transacaoId": 99,
		"Valor": "120.50",
		"value": 1,
		"Descricao": "Mercado",
		"type": "income",
		"dataTransacao": "2025-03-10T12:00:00",
		"data": "2024-01-01",
		"categoriaId": 3,
		"CategoriaNome": "Alimentação",
		"tags": ["feira", {"nome":"casa"}, {"name":" "}, {"Name":"extra"}, "  ", 5],
		"moeda": "USD"
	}`
	tx := Transaction(decode(t, body))

	assert.Equal(t, int64(7), tx.ID)
	assert.True(t, tx.Amount.Equal(dec("120.50")))
	assert.Equal(t, "Mercado", tx.Description)
	assert.Equal(t, core.KindIncome, tx.Kind)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), tx.OccurredAt)
	assert.Equal(t, int64(3), tx.CategoryID)
	assert.Equal(t, "Alimentação", tx.CategoryName)
	assert.Equal(t, []string{"feira", "casa", "extra", "5"}, tx.Tags)
	assert.Equal(t, "USD", tx.Currency)
}

func TestTransactionDefaults(t *testing.T) {
	tx := Transaction(decode(t, `{"valor":"abc","descricao":"   "}`))

	assert.True(t, tx.Amount.IsZero())
	assert.Equal(t, core.DefaultDescription, tx.Description)
	assert.Equal(t, core.DefaultCategoryName, tx.CategoryName)
	assert.Equal(t, core.DefaultCurrency, tx.Currency)
	assert.NotNil(t, tx.Tags)
	assert.Empty(t, tx.Tags)
	assert.True(t, tx.OccurredAt.IsZero())

	// non-object records degrade instead of failing
	assert.Equal(t, core.DefaultDescription, Transaction("garbage").Description)
}

func TestTransactionNestedCategory(t *testing.T) {
	tx := Transaction(decode(t, `{"categoria":{"id":4,"nome":"Transporte"},"categoriaNome":"ignored"}`))
	assert.Equal(t, int64(4), tx.CategoryID)
	assert.Equal(t, "Transporte", tx.CategoryName)

	tx = Transaction(decode(t, `{"categoria":"Lazer","categoriaId":9}`))
	assert.Equal(t, int64(9), tx.CategoryID)
	assert.Equal(t, "Lazer", tx.CategoryName)
}

func TestNegativeAmountIsMagnitude(t *testing.T) {
	tx := Transaction(decode(t, `{"valor":-45.9,"tipo":2}`))
	assert.True(t, tx.Amount.Equal(dec("45.9")))
	assert.Equal(t, core.KindExpense, tx.Kind)
}

func TestTagsKeepDuplicates(t *testing.T) {
	assert.Equal(t, []string{"a", "a", "b"}, Tags(decode(t, `["a", " a ", {"nome":"b"}]`)))
	assert.Empty(t, Tags(decode(t, `"not a list"`)))
}

func TestUnknownKinds(t *testing.T) {
	raw := decode(t, `[{"tipo":1},{"tipo":"saida"},{"tipo":"transfer"},{}]`)
	assert.Equal(t, 2, UnknownKinds(raw))
}

func TestMeta(t *testing.T) {
	m := Meta(decode(t, `{"data":[],"pagination":{"totalItems":4437,"TotalPages":"3","hasNext":true}}`))
	require.NotNil(t, m.TotalItems)
	require.NotNil(t, m.TotalPages)
	require.NotNil(t, m.HasNext)
	assert.Equal(t, 4437, *m.TotalItems)
	assert.Equal(t, 3, *m.TotalPages)
	assert.True(t, *m.HasNext)

	m = Meta(decode(t, `{"Pagination":{"HasNext":false,"TotalItems":"n/a"}}`))
	require.NotNil(t, m.HasNext)
	assert.False(t, *m.HasNext)
	assert.Nil(t, m.TotalItems)

	assert.Nil(t, Meta(decode(t, `[1,2]`)).HasNext)
}
