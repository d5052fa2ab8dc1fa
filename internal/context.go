package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextUserKey ctxKey = "caller"

// Caller is the authenticated user a request runs on behalf of.
type Caller struct {
	ID    string
	Email string
	Role  string
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	caller, ok := ctx.Value(ContextUserKey).(Caller)
	return caller, ok && caller.ID != ""
}

func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, ContextUserKey, caller)
}

func UserIDFromContext(ctx context.Context) string {
	caller, _ := CallerFromContext(ctx)
	return caller.ID
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithCaller(ctx, Caller{ID: userID})
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}

// Detached keeps the values of ctx (logger, user id) but not its cancellation,
// bounded by its own timeout. Used for work that must outlive the request.
func Detached(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	return WithTimeout(context.WithoutCancel(ctx), duration)
}
