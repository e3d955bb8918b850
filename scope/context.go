package scope

import "context"

// Context key for the current scope.
type contextKey int

const scopeKey contextKey = iota

// NewContext returns a context with s bound as the current scope.
// Exactly one scope should be bound per execution unit; rebinding
// shadows the outer scope for the subtree of calls.
func NewContext(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// FromContext returns the scope bound to ctx, or nil when none is bound.
// A nil scope means a bare host: callers degrade to uncached instance
// construction.
func FromContext(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey).(*Scope)
	return s
}

// With creates a scope, binds it to ctx, runs fn, and clears the scope on
// every exit path, including error and panic exits.
func With(ctx context.Context, fn func(ctx context.Context) error) error {
	s := New()
	defer s.Clear()
	return fn(NewContext(ctx, s))
}
