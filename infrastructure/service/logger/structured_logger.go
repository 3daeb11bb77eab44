package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

type contextKey string

// CorrelationIDKey is the context key the correlation middleware stores the
// request's correlation ID under.
const CorrelationIDKey contextKey = "correlation_id"

// Logger interface untuk structured logging
type Logger interface {
	Info(ctx context.Context, message string, fields map[string]interface{})
	Error(ctx context.Context, message string, err error, fields map[string]interface{})
	Warn(ctx context.Context, message string, fields map[string]interface{})
	Debug(ctx context.Context, message string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

// structuredLogger implementasi Logger dengan logrus
type structuredLogger struct {
	logger *logrus.Logger
	fields map[string]interface{}
}

// LogEntry representasi structured log entry
type LogEntry struct {
	Timestamp     string                 `json:"timestamp"`
	Level         string                 `json:"level"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Fields        map[string]interface{} `json:"fields,omitempty"`
	Service       string                 `json:"service"`
}

// LoggerConfig configuration untuk logger
type LoggerConfig struct {
	Level       string
	Format      string
	ServiceName string
	// Output defaults to stdout.
	Output io.Writer
}

// NewStructuredLogger membuat instance baru dari structured logger
func NewStructuredLogger(config LoggerConfig) Logger {
	logrusLogger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrusLogger.SetLevel(level)

	if config.Format == "json" {
		logrusLogger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		logrusLogger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
			FullTimestamp:   true,
		})
	}

	if config.Output != nil {
		logrusLogger.SetOutput(config.Output)
	} else {
		logrusLogger.SetOutput(os.Stdout)
	}

	return &structuredLogger{
		logger: logrusLogger,
		fields: map[string]interface{}{
			"service": config.ServiceName,
		},
	}
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return &structuredLogger{logger: l, fields: map[string]interface{}{}}
}

// Info logging untuk informational messages
func (l *structuredLogger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.log(l.createEntry(ctx, "INFO", message, nil, fields))
}

// Error logging untuk error messages
func (l *structuredLogger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	l.log(l.createEntry(ctx, "ERROR", message, err, fields))
}

// Warn logging untuk warning messages
func (l *structuredLogger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.log(l.createEntry(ctx, "WARN", message, nil, fields))
}

// Debug logging untuk debug messages
func (l *structuredLogger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	if !l.logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	l.log(l.createEntry(ctx, "DEBUG", message, nil, fields))
}

// WithFields membuat logger baru dengan additional fields
func (l *structuredLogger) WithFields(fields map[string]interface{}) Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &structuredLogger{
		logger: l.logger,
		fields: newFields,
	}
}

// CorrelationID returns the correlation ID carried by ctx, if any.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// createEntry membuat log entry dengan context information
func (l *structuredLogger) createEntry(ctx context.Context, level, message string, err error, fields map[string]interface{}) LogEntry {
	entry := LogEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Level:         level,
		Message:       message,
		CorrelationID: CorrelationID(ctx),
		Fields:        make(map[string]interface{}),
	}

	if err != nil {
		entry.Error = err.Error()
	}
	if svc, ok := l.fields["service"].(string); ok {
		entry.Service = svc
	}

	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for k, v := range fields {
		entry.Fields[k] = v
	}

	// caller two frames up: the exported method, then its caller
	if pc, file, line, ok := runtime.Caller(2); ok {
		funcName := runtime.FuncForPC(pc).Name()
		entry.Fields["caller"] = fmt.Sprintf("%s:%d %s", file, line, funcName)
	}

	return entry
}

// log menulis log entry
func (l *structuredLogger) log(entry LogEntry) {
	fields := logrus.Fields{}

	if entry.CorrelationID != "" {
		fields["correlation_id"] = entry.CorrelationID
	}
	if entry.Error != "" {
		fields["error"] = entry.Error
	}
	for k, v := range entry.Fields {
		fields[k] = v
	}

	if jsonData, err := json.Marshal(entry); err == nil {
		fields["structured_data"] = string(jsonData)
	}

	switch entry.Level {
	case "INFO":
		l.logger.WithFields(fields).Info(entry.Message)
	case "ERROR":
		l.logger.WithFields(fields).Error(entry.Message)
	case "WARN":
		l.logger.WithFields(fields).Warn(entry.Message)
	case "DEBUG":
		l.logger.WithFields(fields).Debug(entry.Message)
	default:
		l.logger.WithFields(fields).Info(entry.Message)
	}
}

// Helper functions untuk common logging scenarios

// LogAdminEvent untuk admin recovery actions
func LogAdminEvent(ctx context.Context, logger Logger, event string, actor string, success bool, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["event_type"] = "admin"
	fields["admin_event"] = event
	fields["actor"] = actor
	fields["success"] = success

	if success {
		logger.Info(ctx, fmt.Sprintf("Admin event: %s", event), fields)
		return
	}
	logger.Warn(ctx, fmt.Sprintf("Admin event failed: %s", event), fields)
}

// LogSecurityEvent untuk security events
func LogSecurityEvent(ctx context.Context, logger Logger, event string, severity string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["event_type"] = "security"
	fields["security_event"] = event
	fields["severity"] = severity

	message := fmt.Sprintf("Security event: %s", event)

	switch severity {
	case "HIGH":
		logger.Error(ctx, message, nil, fields)
	case "MEDIUM":
		logger.Warn(ctx, message, fields)
	default:
		logger.Info(ctx, message, fields)
	}
}

// LogPerformance untuk performance metrics
func LogPerformance(ctx context.Context, logger Logger, operation string, duration time.Duration, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["event_type"] = "performance"
	fields["operation"] = operation
	fields["duration_ms"] = duration.Milliseconds()
	fields["duration_human"] = duration.String()

	logger.Debug(ctx, fmt.Sprintf("Performance: %s took %s", operation, duration), fields)
}
