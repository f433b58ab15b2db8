package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey is a private type so logger values cannot collide with
// other packages' context keys
type contextKey string

const (
	// LoggerKey carries the request-scoped logger
	LoggerKey contextKey = "logger"
	// RequestIDKey carries the correlation ID of the HTTP request
	RequestIDKey contextKey = "request_id"
	// TenantIDKey carries the tenant the request acts on behalf of
	TenantIDKey contextKey = "tenant_id"
	// JobIDKey carries the sync job currently being dispatched
	JobIDKey contextKey = "job_id"
)

// WithContext attaches the logger to the context
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext returns the logger stored in the context, or a no-op
// logger when none was attached
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// withCorrelation stores value under key and returns the context plus a
// logger that tags every entry with the same field
func withCorrelation(ctx context.Context, logger *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, key, value)
	logger = logger.With(zap.String(string(key), value))
	return WithContext(ctx, logger), logger
}

// WithRequestID tags the context and logger with a request ID
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return withCorrelation(ctx, logger, RequestIDKey, requestID)
}

// WithTenantID tags the context and logger with a tenant ID
func WithTenantID(ctx context.Context, logger *zap.Logger, tenantID string) (context.Context, *zap.Logger) {
	return withCorrelation(ctx, logger, TenantIDKey, tenantID)
}

// WithJobID tags the context and logger with the dispatched job's ID
func WithJobID(ctx context.Context, logger *zap.Logger, jobID string) (context.Context, *zap.Logger) {
	return withCorrelation(ctx, logger, JobIDKey, jobID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetRequestID returns the request ID stored in the context, if any
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// GetTenantID returns the tenant ID stored in the context, if any
func GetTenantID(ctx context.Context) string {
	return stringValue(ctx, TenantIDKey)
}

// GetJobID returns the job ID stored in the context, if any
func GetJobID(ctx context.Context) string {
	return stringValue(ctx, JobIDKey)
}

// contextFields collects the correlation fields present in the context
func contextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	for _, key := range []contextKey{RequestIDKey, TenantIDKey, JobIDKey} {
		if v := stringValue(ctx, key); v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	return fields
}

// ContextLogger wraps a zap logger that has already been enriched with
// the correlation fields found in a context
type ContextLogger struct {
	logger *zap.Logger
}

// L builds a ContextLogger from the context's own logger.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *ContextLogger {
	return WithLogger(ctx, FromContext(ctx))
}

// WithLogger builds a ContextLogger around an explicit logger, taking
// only the correlation fields from the context
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fields := contextFields(ctx); len(fields) > 0 {
		logger = logger.With(fields...)
	}
	return &ContextLogger{logger: logger}
}

// With returns a child ContextLogger carrying additional fields
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	return &ContextLogger{logger: cl.logger.With(fields...)}
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) { cl.logger.Debug(msg, fields...) }
func (cl *ContextLogger) Info(msg string, fields ...zap.Field)  { cl.logger.Info(msg, fields...) }
func (cl *ContextLogger) Warn(msg string, fields ...zap.Field)  { cl.logger.Warn(msg, fields...) }
func (cl *ContextLogger) Error(msg string, fields ...zap.Field) { cl.logger.Error(msg, fields...) }
func (cl *ContextLogger) Fatal(msg string, fields ...zap.Field) { cl.logger.Fatal(msg, fields...) }
func (cl *ContextLogger) Panic(msg string, fields ...zap.Field) { cl.logger.Panic(msg, fields...) }

// Zap exposes the enriched logger for callers that need a *zap.Logger
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.logger
}

// Sugar returns the enriched logger's sugared form
func (cl *ContextLogger) Sugar() *zap.SugaredLogger {
	return cl.logger.Sugar()
}
