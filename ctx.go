package authstate

import (
	"context"
)

var authCtxKey = &contextKey{"auth"}

type contextKey struct {
	name string
}

// WithProvider attaches auth to ctx. Every context derived from the result
// is inside the provider subtree.
func WithProvider(ctx context.Context, auth Auth) context.Context {
	return context.WithValue(ctx, authCtxKey, auth)
}

// FromContext finds the Auth attached to ctx
func FromContext(ctx context.Context) (Auth, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(authCtxKey).(Auth)
	if !ok || raw == nil {
		return nil, false
	}
	return raw, true
}

// UseAuth returns the session state and actions for the subtree ctx belongs
// to, or ErrNoProvider when ctx was not derived from WithProvider.
func UseAuth(ctx context.Context) (Auth, error) {
	auth, ok := FromContext(ctx)
	if !ok {
		return nil, ErrNoProvider
	}
	return auth, nil
}

// MustUseAuth is UseAuth for code paths that cannot run without a
// provider. It panics with ErrNoProvider.
func MustUseAuth(ctx context.Context) Auth {
	auth, err := UseAuth(ctx)
	if err != nil {
		panic(err)
	}
	return auth
}
