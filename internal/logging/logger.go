package logging

import (
	"context"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/0xReLogic/Tandem/internal/tracing"
)

// contextKey for request ID
type contextKey string

const RequestIDKey contextKey = "request_id"

var (
	logger atomic.Pointer[zap.Logger]
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// Init initializes the structured logger. env "development" switches to a
// human readable console encoder.
func Init(lvl, env string) error {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	level.SetLevel(parseLevel(lvl))
	config.Level = level

	if env == "development" {
		config.Development = true
		config.Encoding = "console"
		config.EncoderConfig = zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
	}

	l, err := config.Build()
	if err != nil {
		return err
	}
	logger.Store(l)
	return nil
}

func parseLevel(lvl string) zapcore.Level {
	switch lvl {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// SetLevel changes the level of the logger built by Init without a restart.
func SetLevel(lvl string) {
	level.SetLevel(parseLevel(lvl))
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	// Fallback to default production logger
	fallback, err := zap.NewProduction()
	if err != nil {
		fallback = zap.NewNop()
	}
	if logger.CompareAndSwap(nil, fallback) {
		return fallback
	}
	return logger.Load()
}

// ReplaceLogger swaps the global logger and returns a func restoring the previous one.
func ReplaceLogger(l *zap.Logger) func() {
	prev := logger.Swap(l)
	return func() { logger.Store(prev) }
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves request ID from context
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// contextFields appends the correlation ids carried by ctx.
func contextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	return fields
}

// LogHTTPRequest logs HTTP request with structured fields
func LogHTTPRequest(ctx context.Context, method, path string, status int, latencyMs, size int64) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Int64("latency_ms", latencyMs),
		zap.Int64("size_bytes", size),
	}
	GetLogger().Info("http_request", contextFields(ctx, fields)...)
}

// LogPeerCall logs the outbound call about to be made on behalf of serviceID.
// The message text matches the line operators grep for in container logs.
func LogPeerCall(ctx context.Context, serviceID, peer string) {
	fields := []zap.Field{
		zap.String("service_id", serviceID),
		zap.String("peer", peer),
	}
	GetLogger().Info(serviceID+". calling Microservice B", contextFields(ctx, fields)...)
}

// LogPeerUnavailable logs a failed outbound call with context
func LogPeerUnavailable(ctx context.Context, peer string, err error) {
	fields := []zap.Field{
		zap.String("peer", peer),
		zap.Error(err),
	}
	GetLogger().Warn("peer_unavailable", contextFields(ctx, fields)...)
}

// LogHTTPServerStart logs HTTP server startup
func LogHTTPServerStart(serviceID, addr string) {
	GetLogger().Info(serviceID+" listening on port "+portOf(addr),
		zap.String("event", "http_server_start"),
		zap.String("listen_addr", addr),
	)
}

func portOf(addr string) string {
	if _, port, err := net.SplitHostPort(addr); err == nil {
		return port
	}
	return addr
}

// LogInfo logs general info messages with structured fields
func LogInfo(message string, fields map[string]interface{}) {
	GetLogger().Info(message, toFields(fields)...)
}

// LogError logs error messages with structured fields
func LogError(message string, fields map[string]interface{}) {
	GetLogger().Error(message, toFields(fields)...)
}

func toFields(fields map[string]interface{}) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			zapFields = append(zapFields, zap.String(k, val))
		case int:
			zapFields = append(zapFields, zap.Int(k, val))
		case bool:
			zapFields = append(zapFields, zap.Bool(k, val))
		case float64:
			zapFields = append(zapFields, zap.Float64(k, val))
		case error:
			zapFields = append(zapFields, zap.NamedError(k, val))
		default:
			zapFields = append(zapFields, zap.Any(k, v))
		}
	}
	return zapFields
}

// Sync flushes any buffered log entries
func Sync() {
	if l := logger.Load(); l != nil {
		_ = l.Sync()
	}
}
