package core

import (
	"context"

	"github.com/google/uuid"
)

// ctxKey is unexported so only this package can install values.
type ctxKey int

const runIDKey ctxKey = iota

// WithRunID returns a context carrying the given run id. A run id groups
// every span, log line and audit record produced by one top-level
// invocation, whether that is a single execution or a workflow run.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunID reports the run id carried by ctx, if any.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// EnsureRunID returns ctx unchanged when it already carries a run id,
// otherwise a derived context with a fresh one. The id is returned either
// way so callers can log it without a second lookup.
func EnsureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := RunID(ctx); ok {
		return ctx, id
	}
	id := "run-" + uuid.NewString()
	return WithRunID(ctx, id), id
}
