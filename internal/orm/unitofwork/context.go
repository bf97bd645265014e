package unitofwork

import (
	"context"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	// contextKeyScope is the key for storing a scope in context
	contextKeyScope contextKey = "activerow:scope"
)

// FromContext retrieves a scope from the context
// Returns the scope and true if found, nil and false otherwise
func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(contextKeyScope).(*Scope)
	return s, ok
}

// WithContext returns a new context with the scope embedded
func WithContext(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, contextKeyScope, s)
}

// MustFromContext retrieves a scope from the context
// Panics if no scope is found (use only when a scope is guaranteed)
func MustFromContext(ctx context.Context) *Scope {
	s, ok := FromContext(ctx)
	if !ok {
		panic("no unit of work found in context")
	}
	return s
}
