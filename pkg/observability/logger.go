package observability

import (
	"context"
	"time"
)

type SanitizerFunc func(key string, value any) any

// LogEntry represents a structured log entry.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// StructuredLogger is the logging surface shared by the deploy app, the local gateway
// and the function settings parser: a message plus optional field maps.
type StructuredLogger interface {
	Debug(message string, fields ...map[string]any)
	Info(message string, fields ...map[string]any)
	Warn(message string, fields ...map[string]any)
	Error(message string, fields ...map[string]any)

	WithField(key string, value any) StructuredLogger
	WithFields(fields map[string]any) StructuredLogger

	WithRequestID(requestID string) StructuredLogger
	WithTraceID(traceID string) StructuredLogger

	Flush(ctx context.Context) error
	Close() error
	IsHealthy() bool
}

// LoggerConfig configures logger implementations.
type LoggerConfig struct {
	Format       string `json:"format" yaml:"format"`
	Level        string `json:"level" yaml:"level"`
	EnableStack  bool   `json:"enable_stack" yaml:"enable_stack"`
	EnableCaller bool   `json:"enable_caller" yaml:"enable_caller"`
}
