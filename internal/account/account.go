// Package account centralizes which account every query is scoped to.
package account

import "context"

// DefaultID is used when neither the session nor configuration names an account.
const DefaultID int64 = 1

// Session exposes the account chosen by the signed-in user, if any.
type Session interface {
	AccountID(ctx context.Context) (int64, bool)
}

// SessionFunc adapts a function to Session.
type SessionFunc func(ctx context.Context) (int64, bool)

func (f SessionFunc) AccountID(ctx context.Context) (int64, bool) { return f(ctx) }

// Resolver picks the active account: the session's when it is positive,
// otherwise the configured fallback, otherwise DefaultID.
type Resolver struct {
	session  Session
	fallback int64
}

func NewResolver(session Session, fallback int64) *Resolver {
	if fallback < 1 {
		fallback = DefaultID
	}
	return &Resolver{session: session, fallback: fallback}
}

// Resolve returns the account id to send as contaId.
func (r *Resolver) Resolve(ctx context.Context) int64 {
	if r == nil {
		return DefaultID
	}
	if r.session != nil {
		if id, ok := r.session.AccountID(ctx); ok && id > 0 {
			return id
		}
	}
	return r.fallback
}

type contextKey struct{}

// WithAccount records an explicit account choice on ctx.
func WithAccount(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// ContextSession reads the account stored by WithAccount.
var ContextSession = SessionFunc(func(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextKey{}).(int64)
	return id, ok
})
