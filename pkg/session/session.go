// Package session carries the hosted backend's access token of the signed-in
// administrator through request contexts, so that backend writes run under the
// administrator's identity instead of the public API key.
package session

import "context"

type tokenKey struct{}

// WithToken returns a copy of ctx carrying the backend access token.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// Token returns the backend access token stored in ctx, or "".
func Token(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// TokenOr returns the token stored in ctx, falling back to fallback.
func TokenOr(ctx context.Context, fallback string) string {
	if token := Token(ctx); token != "" {
		return token
	}
	return fallback
}
