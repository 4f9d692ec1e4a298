package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession attaches the resolved session for downstream
// handlers and the authorization middleware.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the session set by the session middleware,
// or nil for anonymous requests.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
