package common

import "context"

// SessionContext holds the authenticated caller resolved by the bearer
// token (or page cookie) middleware. Absent (nil) means unauthenticated.
type SessionContext struct {
	UserID    string
	SessionID string
	Role      string
	Onboarded bool
}

type contextKey int

const sessionContextKey contextKey = iota

// WithSession stores a SessionContext in the request context.
func WithSession(ctx context.Context, sc *SessionContext) context.Context {
	return context.WithValue(ctx, sessionContextKey, sc)
}

// SessionFromContext retrieves the SessionContext from context, or nil if absent.
func SessionFromContext(ctx context.Context) *SessionContext {
	sc, _ := ctx.Value(sessionContextKey).(*SessionContext)
	return sc
}
