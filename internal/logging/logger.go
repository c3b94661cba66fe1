// Package logging provides structured logging with per-component child
// loggers and trace ID propagation through context.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging interface injected into every subsystem. Child
// loggers carry a component name and optional trace ID.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})

	// Context-aware variants pick the trace ID out of ctx.
	DebugContext(ctx context.Context, msg string, fields ...interface{})
	InfoContext(ctx context.Context, msg string, fields ...interface{})
	WarnContext(ctx context.Context, msg string, fields ...interface{})
	ErrorContext(ctx context.Context, msg string, fields ...interface{})

	WithTraceID(traceID string) Logger
	WithComponent(component string) Logger
}

// LogLevel orders log severities.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the canonical upper-case level name.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	return "INFO"
}

// ParseLogLevel maps a level name to a LogLevel, defaulting to INFO.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// LogEntry is the serialized shape of one log line.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Component string                 `json:"component,omitempty"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// ContextKey is the type for context values owned by this package.
type ContextKey string

// TraceIDKey carries the request trace ID through context.
const TraceIDKey ContextKey = "trace_id"

// StructuredLogger writes JSON or text entries to a single output stream.
type StructuredLogger struct {
	level     LogLevel
	traceID   string
	component string
	useJSON   bool
	out       io.Writer
}

// NewLogger creates a logger writing to stdout. Output format follows the
// LOG_JSON env var (JSON by default).
func NewLogger(level LogLevel) Logger {
	return NewLoggerWithOutput(level, os.Stdout)
}

// NewLoggerWithOutput creates a logger writing to the given stream. Tests
// pass io.Discard or a buffer here.
func NewLoggerWithOutput(level LogLevel, out io.Writer) Logger {
	return &StructuredLogger{
		level:   level,
		useJSON: envBool("LOG_JSON", true),
		out:     out,
	}
}

func envBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val == "true" || val == "1"
}

// WithTraceID returns a child logger stamped with the trace ID.
func (l *StructuredLogger) WithTraceID(traceID string) Logger {
	child := *l
	child.traceID = traceID
	return &child
}

// WithComponent returns a child logger stamped with the component name.
func (l *StructuredLogger) WithComponent(component string) Logger {
	child := *l
	child.component = component
	return &child
}

func (l *StructuredLogger) enabled(level LogLevel) bool {
	return l.level <= level
}

// Debug logs at DEBUG level.
func (l *StructuredLogger) Debug(msg string, fields ...interface{}) {
	if l.enabled(DEBUG) {
		l.write(DEBUG, "", msg, fields...)
	}
}

// Info logs at INFO level.
func (l *StructuredLogger) Info(msg string, fields ...interface{}) {
	if l.enabled(INFO) {
		l.write(INFO, "", msg, fields...)
	}
}

// Warn logs at WARN level.
func (l *StructuredLogger) Warn(msg string, fields ...interface{}) {
	if l.enabled(WARN) {
		l.write(WARN, "", msg, fields...)
	}
}

// Error logs at ERROR level.
func (l *StructuredLogger) Error(msg string, fields ...interface{}) {
	if l.enabled(ERROR) {
		l.write(ERROR, "", msg, fields...)
	}
}

// Fatal logs at FATAL level and exits the process.
func (l *StructuredLogger) Fatal(msg string, fields ...interface{}) {
	l.write(FATAL, "", msg, fields...)
	os.Exit(1)
}

// DebugContext logs at DEBUG level with the trace ID from ctx.
func (l *StructuredLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	if l.enabled(DEBUG) {
		l.write(DEBUG, GetTraceID(ctx), msg, fields...)
	}
}

// InfoContext logs at INFO level with the trace ID from ctx.
func (l *StructuredLogger) InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	if l.enabled(INFO) {
		l.write(INFO, GetTraceID(ctx), msg, fields...)
	}
}

// WarnContext logs at WARN level with the trace ID from ctx.
func (l *StructuredLogger) WarnContext(ctx context.Context, msg string, fields ...interface{}) {
	if l.enabled(WARN) {
		l.write(WARN, GetTraceID(ctx), msg, fields...)
	}
}

// ErrorContext logs at ERROR level with the trace ID from ctx.
func (l *StructuredLogger) ErrorContext(ctx context.Context, msg string, fields ...interface{}) {
	if l.enabled(ERROR) {
		l.write(ERROR, GetTraceID(ctx), msg, fields...)
	}
}

func (l *StructuredLogger) write(level LogLevel, contextTraceID, msg string, fields ...interface{}) {
	traceID := l.traceID
	if contextTraceID != "" {
		traceID = contextTraceID
	}

	// Caller of the exported log method, not this helper.
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file = "unknown"
		line = 0
	} else {
		parts := strings.Split(file, "/")
		file = parts[len(parts)-1]
	}

	var fieldMap map[string]interface{}
	if len(fields) > 0 {
		fieldMap = make(map[string]interface{}, len(fields)/2)
		for i := 0; i < len(fields); i += 2 {
			if i+1 < len(fields) {
				fieldMap[fmt.Sprintf("%v", fields[i])] = fields[i+1]
			} else {
				fieldMap[fmt.Sprintf("field_%d", i)] = fields[i]
			}
		}
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		TraceID:   traceID,
		Component: l.component,
		File:      file,
		Line:      line,
		Fields:    fieldMap,
	}

	if l.useJSON {
		l.writeJSON(entry)
	} else {
		l.writeText(entry)
	}
}

func (l *StructuredLogger) writeJSON(entry LogEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
		return
	}
	fmt.Fprintln(l.out, string(data))
}

func (l *StructuredLogger) writeText(entry LogEntry) {
	parts := []string{entry.Timestamp, fmt.Sprintf("[%s]", entry.Level)}

	if entry.TraceID != "" && len(entry.TraceID) >= 8 {
		parts = append(parts, fmt.Sprintf("trace:%s", entry.TraceID[:8]))
	}
	if entry.Component != "" {
		parts = append(parts, fmt.Sprintf("component:%s", entry.Component))
	}

	parts = append(parts, entry.Message)

	for k, v := range entry.Fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	if entry.File != "" && entry.Line > 0 {
		parts = append(parts, fmt.Sprintf("(%s:%d)", entry.File, entry.Line))
	}

	fmt.Fprintln(l.out, strings.Join(parts, " "))
}

// Default logger used by the package-level helpers.
var defaultLogger = NewLogger(INFO)

// SetDefaultLogger replaces the package default, usually at boot after
// config is loaded.
func SetDefaultLogger(logger Logger) {
	defaultLogger = logger
}

// WithComponent returns a child of the default logger for a component.
func WithComponent(component string) Logger {
	return defaultLogger.WithComponent(component)
}

// Info logs through the package default logger.
func Info(msg string, fields ...interface{}) { defaultLogger.Info(msg, fields...) }

// Warn logs through the package default logger.
func Warn(msg string, fields ...interface{}) { defaultLogger.Warn(msg, fields...) }

// Error logs through the package default logger.
func Error(msg string, fields ...interface{}) { defaultLogger.Error(msg, fields...) }

// Debug logs through the package default logger.
func Debug(msg string, fields ...interface{}) { defaultLogger.Debug(msg, fields...) }

// GenerateTraceID returns a fresh random trace ID.
func GenerateTraceID() string {
	return uuid.New().String()
}

// WithTraceID stores a trace ID in ctx, generating one when empty.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = GenerateTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace ID from ctx, empty when absent.
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}
