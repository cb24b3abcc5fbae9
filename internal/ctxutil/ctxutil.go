// Package ctxutil carries request-scoped caller identity between the HTTP
// layer and the MCP tool handlers, which sit behind the same middleware
// chain but cannot import each other.
package ctxutil

import "context"

type contextKey string

const keyActor contextKey = "actor"

// MaxActorLen bounds caller-supplied actor names.
const MaxActorLen = 256

// WithActor returns a context naming the caller for audit entries.
// Empty or oversized names are ignored.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" || len(actor) > MaxActorLen {
		return ctx
	}
	return context.WithValue(ctx, keyActor, actor)
}

// ActorFromContext returns the caller name, or fallback when none was set.
func ActorFromContext(ctx context.Context, fallback string) string {
	if v, ok := ctx.Value(keyActor).(string); ok {
		return v
	}
	return fallback
}
