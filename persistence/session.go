package persistence

import (
	"context"
)

// Session is a transaction that spans several backend operations.
//
// Each backend that supports sessions provides its own implementation.
type Session interface {
	// Backend returns the name of the kind of backend that started the
	// session.
	Backend() string
}

// TransactionManager determines which session, if any, is used by each store
// operation.
type TransactionManager interface {
	// Enabled returns true if store operations should participate in sessions.
	Enabled() bool

	// Session returns the session that is active for ctx.
	Session(ctx context.Context) (Session, bool)
}

// ContextTransactionManager is a TransactionManager that uses the session
// attached to the context by WithSession().
type ContextTransactionManager struct{}

// Enabled returns true.
func (ContextTransactionManager) Enabled() bool {
	return true
}

// Session returns the session attached to ctx.
func (ContextTransactionManager) Session(ctx context.Context) (Session, bool) {
	return SessionFromContext(ctx)
}

type sessionKey struct{}

// WithSession returns a copy of ctx that carries the session s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session carried by ctx, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
