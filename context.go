package swissknife

import "context"

type ctxKey string

const (
	ctxKeySession   ctxKey = "swissknife_session"
	ctxKeyUserID    ctxKey = "swissknife_user_id"
	ctxKeyRequestID ctxKey = "swissknife_request_id"
)

// WithSession stores a session snapshot in the context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

// SessionFromContext extracts the session snapshot from the context.
// Absence reads as a loading session.
func SessionFromContext(ctx context.Context) Session {
	if s, ok := ctx.Value(ctxKeySession).(Session); ok {
		return s
	}
	return Session{Status: StatusLoading}
}

// WithUserID stores the authenticated user ID in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// UserIDFromContext extracts the authenticated user ID from the context.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserID).(string)
	return v
}

// WithRequestID stores a request correlation ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext extracts the request correlation ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}
