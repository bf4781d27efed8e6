package identity

import "context"

// Principal is the opaque caller identity supplied by the excluded identity
// layer. It is trusted as-is and never re-derived.
type Principal struct {
	ID   string
	Role string
}

// Anonymous is the principal used when a caller supplies no identity.
var Anonymous = Principal{ID: "anonymous", Role: ""}

type contextKey struct{}

// WithPrincipal stores the principal on the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal stored on the context, or Anonymous.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(contextKey{}).(Principal); ok {
		return p
	}
	return Anonymous
}
