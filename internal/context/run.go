package context

import (
	"context"
)

type contextKey string

const (
	RUN_ID_KEY contextKey = "runId"
)

// GetRunID retrieves the ingestion run identifier from the context
func GetRunID(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(RUN_ID_KEY).(string)
	return runID, ok
}

// WithRunID tags every log line and event of one run with the same identifier
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RUN_ID_KEY, runID)
}
