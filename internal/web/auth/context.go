package auth

import "context"

// contextKey is a custom type for context keys to avoid collisions
type contextKey int

const principalKey contextKey = iota

// Principal is the authenticated caller of a request
type Principal struct {
	Subject string
	Roles   []string
}

// WithPrincipal returns a new context carrying p
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller stored in ctx
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// RolesFrom returns the caller's roles, nil for anonymous requests
func RolesFrom(ctx context.Context) []string {
	p, _ := PrincipalFrom(ctx)
	return p.Roles
}
