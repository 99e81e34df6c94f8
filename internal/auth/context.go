package auth

import "context"

// ctxKey is a private type for context keys to avoid collisions.
type ctxKey int

const (
	userCtxKey ctxKey = iota
	sessionCtxKey
)

// WithIdentity returns a context carrying the authenticated user and
// their session. Set by the session gate middleware.
func WithIdentity(ctx context.Context, user *User, session *Session) context.Context {
	ctx = context.WithValue(ctx, userCtxKey, user)
	return context.WithValue(ctx, sessionCtxKey, session)
}

// UserFrom retrieves the authenticated user from the request context.
func UserFrom(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userCtxKey).(*User)
	return user, ok && user != nil
}

// SessionFrom retrieves the session from the request context.
func SessionFrom(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionCtxKey).(*Session)
	return session, ok && session != nil
}
