// Package logging provides structured application logging with correlation
// ID propagation through context.
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ApplicationLogger defines the interface for structured application logging.
type ApplicationLogger interface {
	Debug(ctx context.Context, message string, fields Fields)
	Info(ctx context.Context, message string, fields Fields)
	Warn(ctx context.Context, message string, fields Fields)
	Error(ctx context.Context, message string, fields Fields)
	ErrorWithError(ctx context.Context, err error, message string, fields Fields)
	LogPerformance(ctx context.Context, operation string, duration time.Duration, fields Fields)
	WithComponent(component string) ApplicationLogger
}

// Fields represents structured logging fields.
type Fields map[string]interface{}

// Config represents logger configuration.
type Config struct {
	Level           string
	Format          string // json, text
	Output          string // stdout, stderr, buffer (for testing)
	TimestampFormat string
}

// LogEntry represents the structure of log entries.
type LogEntry struct {
	Timestamp     string                 `json:"timestamp"`
	Level         string                 `json:"level"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Component     string                 `json:"component,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

var levelRanks = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

type applicationLoggerImpl struct {
	config    Config
	component string
	writer    io.Writer
	buffer    *bytes.Buffer
	mu        *sync.Mutex
}

// NewApplicationLogger creates a structured logger from configuration.
func NewApplicationLogger(config Config) (ApplicationLogger, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.TimestampFormat == "" {
		config.TimestampFormat = time.RFC3339Nano
	}

	logger := &applicationLoggerImpl{
		config: config,
		mu:     &sync.Mutex{},
	}

	switch config.Output {
	case "stderr":
		logger.writer = os.Stderr
	case "buffer":
		logger.buffer = &bytes.Buffer{}
		logger.writer = logger.buffer
	default:
		logger.writer = os.Stdout
	}

	return logger, nil
}

// validateConfig validates logger configuration.
func validateConfig(config Config) error {
	if _, ok := levelRanks[strings.ToUpper(config.Level)]; !ok {
		return fmt.Errorf("invalid log level: %s", config.Level)
	}
	if config.Format != "json" && config.Format != "text" {
		return fmt.Errorf("invalid log format: %s", config.Format)
	}
	if config.Output != "" && config.Output != "stdout" && config.Output != "stderr" && config.Output != "buffer" {
		return fmt.Errorf("invalid log output: %s", config.Output)
	}
	return nil
}

// shouldLog determines if a message should be logged based on level.
func (l *applicationLoggerImpl) shouldLog(level string) bool {
	return levelRanks[level] >= levelRanks[strings.ToUpper(l.config.Level)]
}

// Debug logs debug messages.
func (l *applicationLoggerImpl) Debug(ctx context.Context, message string, fields Fields) {
	if l.shouldLog("DEBUG") {
		l.logEntry(ctx, "DEBUG", message, "", fields)
	}
}

// Info logs info messages.
func (l *applicationLoggerImpl) Info(ctx context.Context, message string, fields Fields) {
	if l.shouldLog("INFO") {
		l.logEntry(ctx, "INFO", message, "", fields)
	}
}

// Warn logs warning messages.
func (l *applicationLoggerImpl) Warn(ctx context.Context, message string, fields Fields) {
	if l.shouldLog("WARN") {
		l.logEntry(ctx, "WARN", message, "", fields)
	}
}

// Error logs error messages.
func (l *applicationLoggerImpl) Error(ctx context.Context, message string, fields Fields) {
	if l.shouldLog("ERROR") {
		l.logEntry(ctx, "ERROR", message, "", fields)
	}
}

// ErrorWithError logs error messages with an error object.
func (l *applicationLoggerImpl) ErrorWithError(ctx context.Context, err error, message string, fields Fields) {
	if l.shouldLog("ERROR") {
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		l.logEntry(ctx, "ERROR", message, errMsg, fields)
	}
}

// LogPerformance logs operation timing.
func (l *applicationLoggerImpl) LogPerformance(
	ctx context.Context,
	operation string,
	duration time.Duration,
	fields Fields,
) {
	if l.shouldLog("INFO") {
		if fields == nil {
			fields = make(Fields)
		}
		fields["operation"] = operation
		fields["duration"] = duration.String()
		l.logEntry(ctx, "INFO", fmt.Sprintf("Performance metrics for %s", operation), "", fields)
	}
}

// WithComponent returns a logger bound to a component name.
func (l *applicationLoggerImpl) WithComponent(component string) ApplicationLogger {
	clone := *l
	clone.component = component
	return &clone
}

func (l *applicationLoggerImpl) logEntry(ctx context.Context, level, message, errMsg string, fields Fields) {
	entry := LogEntry{
		Timestamp:     time.Now().Format(l.config.TimestampFormat),
		Level:         level,
		Message:       message,
		CorrelationID: CorrelationIDFromContext(ctx),
		Component:     l.component,
		Error:         errMsg,
	}
	if len(fields) > 0 {
		entry.Metadata = fields
	}
	l.writeLogEntry(&entry)
}

func (l *applicationLoggerImpl) writeLogEntry(entry *LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.config.Format == "text" {
		fmt.Fprintf(l.writer, "%s [%s] %s", entry.Timestamp, entry.Level, entry.Message)
		if entry.Component != "" {
			fmt.Fprintf(l.writer, " component=%s", entry.Component)
		}
		if entry.CorrelationID != "" {
			fmt.Fprintf(l.writer, " correlation_id=%s", entry.CorrelationID)
		}
		if entry.Error != "" {
			fmt.Fprintf(l.writer, " error=%q", entry.Error)
		}
		for key, value := range entry.Metadata {
			fmt.Fprintf(l.writer, " %s=%v", key, value)
		}
		fmt.Fprintln(l.writer)
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.writer, `{"level":"ERROR","message":"failed to marshal log entry: %v"}`+"\n", err)
		return
	}
	l.writer.Write(data)
	fmt.Fprintln(l.writer)
}

// BufferContents returns the captured output of a buffer-backed logger.
// Useful for asserting log output in tests.
func BufferContents(logger ApplicationLogger) string {
	if impl, ok := logger.(*applicationLoggerImpl); ok && impl.buffer != nil {
		impl.mu.Lock()
		defer impl.mu.Unlock()
		return impl.buffer.String()
	}
	return ""
}
