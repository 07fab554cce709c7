// Package logging provides structured logging for connectsync. It wraps
// log/slog with context-aware attributes (correlation, session, device and
// thread ids) and sync-specific helpers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// contextKey is used for storing logger-related values in context.
type contextKey string

const (
	// CorrelationIDKey is the context key for correlation IDs.
	CorrelationIDKey contextKey = "correlation_id"
	// SessionIDKey is the context key for sync session IDs.
	SessionIDKey contextKey = "session_id"
	// DeviceIDKey is the context key for KDE Connect device IDs.
	DeviceIDKey contextKey = "device_id"
	// ThreadIDKey is the context key for conversation thread IDs.
	ThreadIDKey contextKey = "thread_id"
	// ListenerKey is the context key for listener names.
	ListenerKey contextKey = "listener"
)

// enrichKeys is the order context values are prepended to log records.
var enrichKeys = []contextKey{CorrelationIDKey, SessionIDKey, DeviceIDKey, ThreadIDKey, ListenerKey}

// Level represents log levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format represents log output formats.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger. Loggers derived with With share the level of
// their parent, so SetLevel affects all of them.
type Logger struct {
	slogger *slog.Logger
	level   *slog.LevelVar
}

var (
	global     *Logger
	globalOnce sync.Once
)

// Init initializes the global logger with the provided configuration.
func Init(cfg Config) *Logger {
	globalOnce.Do(func() {
		global = New(cfg)
	})
	return global
}

// Default returns the global logger, initializing it with defaults if necessary.
func Default() *Logger {
	if global == nil {
		Init(DefaultConfig())
	}
	return global
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return New(Config{Level: LevelError, Output: io.Discard})
}

// New creates a new Logger with the provided configuration.
func New(cfg Config) *Logger {
	level := &slog.LevelVar{}
	level.Set(parseLevel(cfg.Level))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		slogger: slog.New(handler),
		level:   level,
	}
}

func parseLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the log level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(parseLevel(level))
}

// Enabled reports whether records at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return parseLevel(level) >= l.level.Level()
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slogger: l.slogger.With(args...), level: l.level}
}

// WithGroup returns a new Logger with the given group name.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{slogger: l.slogger.WithGroup(name), level: l.level}
}

func (l *Logger) Debug(msg string, args ...any) { l.slogger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slogger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slogger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slogger.Error(msg, args...) }

// DebugContext logs at debug level with context.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, enrichArgs(ctx, args)...)
}

// InfoContext logs at info level with context.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, enrichArgs(ctx, args)...)
}

// WarnContext logs at warn level with context.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, enrichArgs(ctx, args)...)
}

// ErrorContext logs at error level with context.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, enrichArgs(ctx, args)...)
}

// enrichArgs extracts context values and adds them as log attributes.
func enrichArgs(ctx context.Context, args []any) []any {
	enriched := make([]any, 0, len(args)+2*len(enrichKeys))
	for _, key := range enrichKeys {
		if v := ctx.Value(key); v != nil {
			enriched = append(enriched, string(key), v)
		}
	}
	return append(enriched, args...)
}

// Underlying returns the underlying slog.Logger.
func (l *Logger) Underlying() *slog.Logger {
	return l.slogger
}

// --- Context helpers ---

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithSessionID adds a sync session ID to the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// WithDeviceID adds a device ID to the context.
func WithDeviceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, DeviceIDKey, id)
}

// WithThreadID adds a thread ID to the context.
func WithThreadID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ThreadIDKey, id)
}

// WithListener adds a listener name to the context.
func WithListener(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ListenerKey, name)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if s, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return s
	}
	return ""
}

// SessionID extracts the session ID from context.
func SessionID(ctx context.Context) string {
	if s, ok := ctx.Value(SessionIDKey).(string); ok {
		return s
	}
	return ""
}

// --- Domain-specific logging helpers ---

// LogSyncStarted logs the start of a sync session.
func LogSyncStarted(ctx context.Context, logger *Logger, profile string, cached int, warm bool) {
	logger.InfoContext(ctx, "sync listening",
		"profile", profile,
		"cached_items", cached,
		"warm", warm,
	)
}

// LogSyncCompleted logs the end of a sync session.
func LogSyncCompleted(ctx context.Context, logger *Logger, profile, reason string, received int, total uint64, elapsed time.Duration) {
	logger.InfoContext(ctx, "sync complete",
		"profile", profile,
		"reason", reason,
		"received", received,
		"store_total", total,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// LogSignalDiscarded logs a signal the classifier rejected.
func LogSignalDiscarded(ctx context.Context, logger *Logger, name, path, why string) {
	logger.DebugContext(ctx, "signal discarded",
		"signal", name,
		"path", path,
		"reason", why,
	)
}

// LogBusReconnect logs a dropped connection about to be re-established.
func LogBusReconnect(ctx context.Context, logger *Logger, cause error, delay time.Duration) {
	args := []any{"delay_ms", delay.Milliseconds()}
	if cause != nil {
		args = append(args, "error", cause.Error())
	}
	logger.WarnContext(ctx, "bus reconnect", args...)
}

// LogNotification logs a notification handed to sinks.
func LogNotification(ctx context.Context, logger *Logger, kind, deviceID string) {
	logger.InfoContext(ctx, "notification",
		"kind", kind,
		"device_id", deviceID,
	)
}
