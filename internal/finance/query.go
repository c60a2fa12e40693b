package finance

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"praondefoi/internal/core"
	"praondefoi/internal/paging"
)

const dateLayout = "2006-01-02"

// TransactionFilter narrows a listing. Zero values are not sent.
type TransactionFilter struct {
	Kind        *core.Kind
	CategoryID  int64
	From        time.Time // inicio, inclusive
	To          time.Time // fim, inclusive
	Description string
}

type TransactionQuery struct {
	AccountID int64
	Filter    TransactionFilter
	Paging    paging.Params
}

// ForPeriod restricts the filter to the calendar month.
func (f TransactionFilter) ForPeriod(p core.Period) TransactionFilter {
	start, next := p.Bounds()
	f.From = start
	f.To = next.AddDate(0, 0, -1)
	return f
}

// Values encodes the query using the API's flat parameter names. Paging is
// reconciled so both conventions are transmitted.
func (q TransactionQuery) Values() url.Values {
	v := url.Values{}
	if q.AccountID > 0 {
		v.Set("contaId", strconv.FormatInt(q.AccountID, 10))
	}
	paging.Reconcile(q.Paging).Encode(v)

	f := q.Filter
	if f.Kind != nil {
		v.Set("tipo", strconv.Itoa(f.Kind.Code()))
	}
	if f.CategoryID > 0 {
		v.Set("categoriaId", strconv.FormatInt(f.CategoryID, 10))
	}
	if !f.From.IsZero() {
		v.Set("inicio", f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		v.Set("fim", f.To.Format(dateLayout))
	}
	if d := strings.TrimSpace(f.Description); d != "" {
		v.Set("descricao", d)
	}
	return v
}

// Matches reports whether tx passes the filter. Used by backends that
// filter locally.
func (f TransactionFilter) Matches(tx core.Transaction) bool {
	if f.Kind != nil && tx.Kind != *f.Kind {
		return false
	}
	if f.CategoryID > 0 && tx.CategoryID != f.CategoryID {
		return false
	}
	day := truncateDay(tx.OccurredAt)
	if !f.From.IsZero() && day.Before(truncateDay(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(truncateDay(f.To)) {
		return false
	}
	if d := strings.TrimSpace(f.Description); d != "" &&
		!strings.Contains(strings.ToLower(tx.Description), strings.ToLower(d)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// KindPtr returns a pointer to k.
func KindPtr(k core.Kind) *core.Kind { return &k }
