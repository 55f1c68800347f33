// Package ctxutil provides shared context key accessors.
//
// server stamps each request's ID into the context and mcp tool handlers log
// it; both import ctxutil instead of each other.
package ctxutil

import "context"

type contextKey string

const keyRequestID contextKey = "request_id"

// WithRequestID returns a new context carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestIDFromContext extracts the request ID from the context, or "".
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}
