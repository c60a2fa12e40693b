package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"praondefoi/internal/core"
	"praondefoi/internal/finance"
	"praondefoi/internal/log"
	"praondefoi/internal/normalize"
)

// Ensure interface conformance
var (
	_ finance.SummaryReader     = (*Client)(nil)
	_ finance.TransactionLister = (*Client)(nil)
	_ finance.TransactionWriter = (*Client)(nil)
	_ finance.BudgetReader      = (*Client)(nil)
	_ finance.BudgetWriter      = (*Client)(nil)
	_ finance.BalanceReader     = (*Client)(nil)
	_ finance.GoalStore         = (*Client)(nil)
	_ finance.RecurrenceLister  = (*Client)(nil)
	_ finance.TaxonomyReader    = (*Client)(nil)
	_ finance.InsightsReader    = (*Client)(nil)
	_ finance.StatementImporter = (*Client)(nil)
)

// amount encodes money as a JSON number with two decimals.
func amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func accountQuery(accountID int64) url.Values {
	v := url.Values{}
	v.Set("contaId", strconv.FormatInt(accountID, 10))
	return v
}

func periodQuery(accountID int64, p core.Period) url.Values {
	v := accountQuery(accountID)
	v.Set("mes", strconv.Itoa(p.Month))
	v.Set("ano", strconv.Itoa(p.Year))
	return v
}

func (c *Client) MonthlySummary(ctx context.Context, accountID int64, period core.Period) (core.MonthlySummary, error) {
	raw, err := c.do(ctx, request{
		op:      "monthly summary",
		method:  http.MethodGet,
		path:    apiPrefix + "/resumo-mensal",
		query:   periodQuery(accountID, period),
		timeout: c.timeouts.Summary,
	})
	if err != nil {
		return core.MonthlySummary{}, err
	}
	s := normalize.Summary(raw)
	if s.AccountID == 0 {
		s.AccountID = accountID
	}
	if s.Month == 0 {
		s.Month, s.Year = period.Month, period.Year
	}
	return s, nil
}

func (c *Client) ListTransactions(ctx context.Context, q finance.TransactionQuery) (finance.Page, error) {
	raw, err := c.do(ctx, request{
		op:      "list transactions",
		method:  http.MethodGet,
		path:    apiPrefix + "/transacoes",
		query:   q.Values(),
		timeout: c.timeouts.List,
	})
	if err != nil {
		return finance.Page{}, err
	}

	if n := normalize.UnknownKinds(raw); n > 0 {
		c.logger.DebugContext(ctx, "Transactions with unrecognized tipo mapped to expense", "count", n)
	}

	page := finance.Page{
		Items: normalize.Transactions(raw),
		Meta:  normalize.Meta(raw),
	}
	c.fillCategoryNames(ctx, q.AccountID, page.Items)
	return page, nil
}

// fillCategoryNames resolves names for records that carried only a category
// id, within the account's own directory. The directory is fetched at most
// once per call and unknown ids are remembered briefly as misses. Lookup
// failures leave the default name in place.
func (c *Client) fillCategoryNames(ctx context.Context, accountID int64, txs []core.Transaction) {
	if c.categories == nil {
		return
	}
	loaded := false
	for i := range txs {
		tx := &txs[i]
		if tx.CategoryID == 0 || tx.CategoryName != core.DefaultCategoryName {
			continue
		}
		key := CategoryKey{AccountID: accountID, CategoryID: tx.CategoryID}
		name, ok := c.categories.Get(key)
		if !ok {
			if !loaded {
				loaded = true
				if !c.loadCategories(ctx, accountID) {
					return
				}
				name, ok = c.categories.Get(key)
			}
			if !ok {
				c.categories.SetWithTTL(key, "", c.missTTL)
			}
		}
		if name != "" {
			tx.CategoryName = name
		}
	}
}

func (c *Client) loadCategories(ctx context.Context, accountID int64) bool {
	cats, err := c.ListCategories(ctx, accountID)
	if err != nil {
		c.logger.DebugContext(ctx, "Category directory unavailable", log.FieldError, err)
		return false
	}
	for _, cat := range cats {
		c.categories.Set(CategoryKey{AccountID: accountID, CategoryID: cat.ID}, cat.Name)
	}
	return true
}

type transactionPayload struct {
	ContaID       int64       `json:"contaId"`
	Valor         json.Number `json:"valor"`
	Descricao     string      `json:"descricao"`
	Tipo          int         `json:"tipo"`
	Moeda         string      `json:"moeda"`
	DataTransacao string      `json:"dataTransacao"`
	CategoriaID   *int64      `json:"categoriaId"`
	Tags          []string    `json:"tags,omitempty"`
}

func newTransactionPayload(accountID int64, tx core.Transaction) transactionPayload {
	p := transactionPayload{
		ContaID:       accountID,
		Valor:         amount(tx.Amount),
		Descricao:     tx.Description,
		Tipo:          tx.Kind.Code(),
		Moeda:         tx.Currency,
		DataTransacao: tx.OccurredAt.Format("2006-01-02T15:04:05"),
		Tags:          tx.Tags,
	}
	if p.Moeda == "" {
		p.Moeda = core.DefaultCurrency
	}
	if tx.CategoryID > 0 {
		id := tx.CategoryID
		p.CategoriaID = &id
	}
	return p
}

func (c *Client) CreateTransaction(ctx context.Context, accountID int64, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	raw, err := c.do(ctx, request{
		op:      "create transaction",
		method:  http.MethodPost,
		path:    apiPrefix + "/transacoes",
		body:    newTransactionPayload(accountID, tx),
		timeout: c.timeouts.Write,
	})
	if err != nil {
		return 0, err
	}
	return createdID(raw), nil
}

// createdID reads the id of a created entity. The API answers either with
// the entity or with the bare id.
func createdID(raw any) int64 {
	if normalize.IsNumeric(raw) {
		return normalize.Number(raw).IntPart()
	}
	return normalize.Transaction(normalize.Unwrap(raw)).ID
}

func (c *Client) UpdateTransaction(ctx context.Context, accountID int64, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	_, err := c.do(ctx, request{
		op:      "update transaction",
		method:  http.MethodPut,
		path:    fmt.Sprintf("%s/transacoes/%d", apiPrefix, tx.ID),
		body:    newTransactionPayload(accountID, tx),
		timeout: c.timeouts.Write,
	})
	return err
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	_, err := c.do(ctx, request{
		op:      "delete transaction",
		method:  http.MethodDelete,
		path:    fmt.Sprintf("%s/transacoes/%d", apiPrefix, id),
		timeout: c.timeouts.Write,
	})
	return err
}

func (c *Client) ListBudgets(ctx context.Context, accountID int64, period core.Period) ([]core.BudgetUsage, error) {
	raw, err := c.do(ctx, request{
		op:      "list budgets",
		method:  http.MethodGet,
		path:    apiPrefix + "/orcamentos",
		query:   periodQuery(accountID, period),
		timeout: c.timeouts.List,
	})
	if err != nil {
		return nil, err
	}
	return normalize.BudgetUsages(raw), nil
}

func (c *Client) BudgetAnalysis(ctx context.Context, accountID int64, period core.Period) (core.BudgetAnalysis, error) {
	raw, err := c.do(ctx, request{
		op:      "budget analysis",
		method:  http.MethodGet,
		path:    apiPrefix + "/orcamentos/analises",
		query:   periodQuery(accountID, period),
		timeout: c.timeouts.Summary,
	})
	if err != nil {
		return core.BudgetAnalysis{}, err
	}
	return normalize.BudgetAnalysis(raw), nil
}

func (c *Client) BudgetStatus(ctx context.Context, accountID int64, period core.Period) (core.BudgetStatus, error) {
	raw, err := c.do(ctx, request{
		op:      "budget status",
		method:  http.MethodGet,
		path:    apiPrefix + "/orcamentos/status",
		query:   periodQuery(accountID, period),
		timeout: c.timeouts.Summary,
	})
	if err != nil {
		return core.BudgetStatus{}, err
	}
	return normalize.BudgetStatus(raw), nil
}

func (c *Client) CreateBudget(ctx context.Context, accountID int64, period core.Period, categoryID int64, limit decimal.Decimal) (int64, error) {
	if err := period.Validate(); err != nil {
		return 0, err
	}
	if !limit.IsPositive() {
		return 0, core.ErrInvalidAmount
	}
	raw, err := c.do(ctx, request{
		op:     "create budget",
		method: http.MethodPost,
		path:   apiPrefix + "/orcamentos",
		body: map[string]any{
			"contaId":     accountID,
			"mes":         period.Month,
			"ano":         period.Year,
			"categoriaId": categoryID,
			"limite":      amount(limit),
		},
		timeout: c.timeouts.Write,
	})
	if err != nil {
		return 0, err
	}
	return createdID(raw), nil
}

func (c *Client) CurrentBalance(ctx context.Context, accountID int64) (any, error) {
	return c.do(ctx, request{
		op:      "current balance",
		method:  http.MethodGet,
		path:    apiPrefix + "/saldo-atual",
		query:   accountQuery(accountID),
		timeout: c.timeouts.Summary,
	})
}

func (c *Client) ListGoals(ctx context.Context, accountID int64) ([]core.Goal, error) {
	raw, err := c.do(ctx, request{
		op:      "list goals",
		method:  http.MethodGet,
		path:    apiPrefix + "/metas",
		query:   accountQuery(accountID),
		timeout: c.timeouts.List,
	})
	if err != nil {
		return nil, err
	}
	return normalize.Goals(raw), nil
}

func (c *Client) CreateGoal(ctx context.Context, accountID int64, g core.Goal) (int64, error) {
	if !g.TargetAmount.IsPositive() {
		return 0, core.ErrInvalidAmount
	}
	body := map[string]any{
		"contaId":    accountID,
		"nome":       g.Name,
		"valorAlvo":  amount(g.TargetAmount),
		"valorAtual": amount(g.CurrentAmount),
		"dataInicio": g.StartDate.Format("2006-01-02"),
		"dataFim":    g.EndDate.Format("2006-01-02"),
	}
	if g.CategoryID > 0 {
		body["categoriaId"] = g.CategoryID
	}
	raw, err := c.do(ctx, request{
		op:      "create goal",
		method:  http.MethodPost,
		path:    apiPrefix + "/metas",
		body:    body,
		timeout: c.timeouts.Write,
	})
	if err != nil {
		return 0, err
	}
	return createdID(raw), nil
}

func (c *Client) Contribute(ctx context.Context, goalID int64, value decimal.Decimal) error {
	if !value.IsPositive() {
		return core.ErrInvalidAmount
	}
	_, err := c.do(ctx, request{
		op:      "contribute to goal",
		method:  http.MethodPost,
		path:    fmt.Sprintf("%s/metas/%d/contribuir", apiPrefix, goalID),
		body:    map[string]any{"valor": amount(value)},
		timeout: c.timeouts.Write,
	})
	return err
}

func (c *Client) ListRecurrences(ctx context.Context, accountID int64) ([]core.Recurrence, error) {
	raw, err := c.do(ctx, request{
		op:      "list recurrences",
		method:  http.MethodGet,
		path:    apiPrefix + "/recorrencias",
		query:   accountQuery(accountID),
		timeout: c.timeouts.List,
	})
	if err != nil {
		return nil, err
	}
	return normalize.Recurrences(raw), nil
}

func (c *Client) ListSubscriptions(ctx context.Context, accountID int64) ([]core.Subscription, error) {
	raw, err := c.do(ctx, request{
		op:      "list subscriptions",
		method:  http.MethodGet,
		path:    apiPrefix + "/assinaturas",
		query:   accountQuery(accountID),
		timeout: c.timeouts.List,
	})
	if err != nil {
		return nil, err
	}
	return normalize.Subscriptions(raw), nil
}

func (c *Client) ListCategories(ctx context.Context, accountID int64) ([]core.Category, error) {
	raw, err := c.do(ctx, request{
		op:      "list categories",
		method:  http.MethodGet,
		path:    apiPrefix + "/categorias",
		query:   accountQuery(accountID),
		timeout: c.timeouts.List,
	})
	if err != nil {
		return nil, err
	}
	return normalize.Categories(raw), nil
}

func (c *Client) ListTags(ctx context.Context, accountID int64) ([]core.Tag, error) {
	raw, err := c.do(ctx, request{
		op:      "list tags",
		method:  http.MethodGet,
		path:    apiPrefix + "/tags",
		query:   accountQuery(accountID),
		timeout: c.timeouts.List,
	})
	if err != nil {
		return nil, err
	}
	return normalize.TagList(raw), nil
}

func (c *Client) Insights(ctx context.Context, accountID int64, historyMonths int) ([]string, error) {
	q := accountQuery(accountID)
	if historyMonths > 0 {
		q.Set("mesesHistorico", strconv.Itoa(historyMonths))
	}
	raw, err := c.do(ctx, request{
		op:      "insights",
		method:  http.MethodGet,
		path:    apiPrefix + "/insights",
		query:   q,
		timeout: c.timeouts.Insights,
	})
	if err != nil {
		return nil, err
	}
	return normalize.Insights(raw), nil
}

func (c *Client) ImportStatement(ctx context.Context, accountID int64, filename string, content io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("Arquivo", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("read statement: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	_, err = c.do(ctx, request{
		op:          "import statement",
		method:      http.MethodPost,
		path:        apiPrefix + "/importar",
		query:       accountQuery(accountID),
		raw:         buf.Bytes(),
		contentType: mw.FormDataContentType(),
		timeout:     c.timeouts.Write,
	})
	return err
}
