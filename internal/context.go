package internal

import (
	"context"
	"time"
)

type ctxKey string

const (
	ContextUserKey    ctxKey = "userID"
	ContextCompanyKey ctxKey = "companyID"
	ContextTraceKey   ctxKey = "traceID"
)

func UserIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ContextUserKey)
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextUserKey, userID)
}

func CompanyIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ContextCompanyKey)
}

func ContextWithCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, ContextCompanyKey, companyID)
}

func TraceIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ContextTraceKey)
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ContextTraceKey, traceID)
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}

// Detach keeps request values (logger, trace id) but drops the request's cancellation,
// for work that must outlive the response.
func Detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
