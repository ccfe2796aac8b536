package auth

import "context"

type ctxKey string

const (
	ctxKeyUsername ctxKey = "auth_username"
	ctxKeyEmail    ctxKey = "auth_email"
	ctxKeyGroups   ctxKey = "auth_groups"
	ctxKeyClaims   ctxKey = "auth_claims"
)

// WithUsername stores the authenticated username in the context.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxKeyUsername, username)
}

// UsernameFromContext extracts the authenticated username from the context.
func UsernameFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUsername).(string)
	return v
}

// WithEmail stores the verified email in the context.
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxKeyEmail, email)
}

// EmailFromContext extracts the verified email from the context.
func EmailFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyEmail).(string)
	return v
}

// WithGroups stores the token group claims in the context.
func WithGroups(ctx context.Context, groups []string) context.Context {
	return context.WithValue(ctx, ctxKeyGroups, groups)
}

// GroupsFromContext extracts the token group claims from the context.
func GroupsFromContext(ctx context.Context) []string {
	v, _ := ctx.Value(ctxKeyGroups).([]string)
	return v
}

// WithClaims stores the full verified claim set in the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, claims)
}

// ClaimsFromContext extracts the full verified claim set from the context.
func ClaimsFromContext(ctx context.Context) *Claims {
	v, _ := ctx.Value(ctxKeyClaims).(*Claims)
	return v
}
