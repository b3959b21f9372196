package services

import "context"

type contextKey string

const (
	runIDKey   contextKey = "run_id"
	jobPathKey contextKey = "job_path"
	workerKey  contextKey = "worker"
)

// WithRunID annotates context with the batch run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the batch run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithJobPath annotates context with the input path of the job being processed.
func WithJobPath(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, jobPathKey, path)
}

// JobPathFromContext returns the job input path if present.
func JobPathFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(jobPathKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithWorker annotates context with the 1-based worker slot.
func WithWorker(ctx context.Context, slot int) context.Context {
	if slot <= 0 {
		return ctx
	}
	return context.WithValue(ctx, workerKey, slot)
}

// WorkerFromContext returns the worker slot if present.
func WorkerFromContext(ctx context.Context) (int, bool) {
	switch v := ctx.Value(workerKey).(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}
