// Package observability carries the process-wide structured logger and the
// request-id plumbing the HTTP layer threads through every operation.
package observability

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
)

// One JSON logger to stdout for the whole process; every line carries the
// service name so aggregated logs stay attributable.
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "intervu-api")

func Logger() *slog.Logger {
	return logger
}

// WithRequestID stores a request_id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// LoggerFromContext adds request_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	reqID, _ := ctx.Value(ctxKeyRequestID).(string)
	if reqID == "" {
		return logger
	}
	return logger.With("request_id", reqID)
}
