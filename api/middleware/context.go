package middleware

import "context"

type contextKey string

const (
	ctxResellerID contextKey = "reseller_id"
	ctxRequestID  contextKey = "request_id"
)

// ResellerIDFromContext returns the acting reseller set by ResellerContext.
func ResellerIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxResellerID)
}

// WithResellerID injects the acting reseller identifier into the context.
func WithResellerID(ctx context.Context, resellerID string) context.Context {
	return withString(ctx, ctxResellerID, resellerID)
}

// RequestIDFromContext returns the id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxRequestID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, ctxRequestID, requestID)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}
