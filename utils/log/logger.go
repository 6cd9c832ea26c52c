package log

import (
	"context"
	"os"

	"go.uber.org/zap"
)

type ctxKey string

const (
	SessionIDKey ctxKey = "session_id"
	RequestIDKey ctxKey = "request_id"
	ModelKey     ctxKey = "model"
)

var logger *zap.Logger

func init() {
	if os.Getenv("DEBUG") == "true" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
}

// WithValue returns a copy of ctx carrying a field picked up by WithCtx.
func WithValue(ctx context.Context, key ctxKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

func WithCtx(ctx context.Context) *zap.Logger {
	fields := []zap.Field{}

	for _, key := range []ctxKey{RequestIDKey, SessionIDKey, ModelKey} {
		if v := ctx.Value(key); v != nil {
			fields = append(fields, zap.Any(string(key), v))
		}
	}

	return logger.With(fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}

// Sync flushes buffered log entries.
func Sync() error {
	return logger.Sync()
}
