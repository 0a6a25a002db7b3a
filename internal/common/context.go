package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyProjectID contextKey = "project_id"
	ContextKeyActor     contextKey = "actor"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithProjectID adds a project ID to the context
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, ContextKeyProjectID, projectID)
}

// ProjectIDFromContext extracts the project ID from context
func ProjectIDFromContext(ctx context.Context) string {
	if projectID, ok := ctx.Value(ContextKeyProjectID).(string); ok {
		return projectID
	}
	return ""
}

// WithActor records who triggered the operation (used on import manifests).
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// ActorFromContext extracts the actor from context
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(ContextKeyActor).(string); ok {
		return actor
	}
	return ""
}

// LoggerFrom decorates logger with the request-scoped values present on ctx.
func LoggerFrom(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	if pid := ProjectIDFromContext(ctx); pid != "" {
		logger = logger.With("project_id", pid)
	}
	return logger
}
