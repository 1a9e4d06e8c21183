package auth

import "context"

type contextKey string

// claimsKey carries the verified *Claims through the request pipeline.
const claimsKey contextKey = "pgcrud.claims"

// WithClaims returns a context carrying the verified claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext extracts the verified claims, if any. A missing value
// means authentication is disabled or the path is public; both imply full
// access at the permission check.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}
