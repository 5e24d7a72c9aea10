// Package logging provides the leveled console logger used by wakabeat.
// Output format: LEVEL TIMESTAMP [component] message key=value ...
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/wakabeat/errors"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel parses a level name, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// sink is shared by a logger and everything derived from it, so SetLevel
// and SetOutput apply to the whole family.
type sink struct {
	mu       sync.Mutex
	output   io.Writer
	minLevel Level
}

// Logger writes leveled log lines.
type Logger struct {
	sink      *sink
	component string
	traceID   string
}

// New creates a Logger writing to stderr at INFO.
func New() *Logger {
	return &Logger{
		sink: &sink{output: os.Stderr, minLevel: LevelInfo},
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{
		sink: &sink{output: io.Discard, minLevel: LevelError},
	}
}

// WithComponent returns a logger tagged with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{sink: l.sink, component: component, traceID: l.traceID}
}

// WithTraceID returns a logger that appends event=<id> to every line.
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{sink: l.sink, component: l.component, traceID: traceID}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.minLevel = level
	l.sink.mu.Unlock()
}

// Level returns the minimum log level.
func (l *Logger) Level() Level {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.minLevel
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.output = w
	l.sink.mu.Unlock()
}

// Enabled reports whether a message at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return levelPriority[level] >= levelPriority[l.Level()]
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats fields as key=value pairs sorted by key.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if !l.Enabled(level) {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.traceID != "" {
		fieldStr += " event=" + l.traceID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.output.Write([]byte(line))
}

// --- Dispatch-chain logging ---
// Chain decisions are DEBUG so they only surface when the debug setting is on.

// TransportAttempt logs that a transport is about to be tried.
func (l *Logger) TransportAttempt(transport, url string) {
	l.Debug("transport_attempt", map[string]interface{}{
		"transport": transport,
		"url":       url,
	})
}

// TransportSkipped logs that a transport was not tried.
func (l *Logger) TransportSkipped(transport, reason string) {
	l.Debug("transport_skipped", map[string]interface{}{
		"transport": transport,
		"reason":    reason,
	})
}

// TransportResult logs the outcome of a single attempt.
func (l *Logger) TransportResult(transport, status string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"transport": transport,
		"outcome":   status,
		"duration":  duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		if code := errors.Code(err); code != "" {
			fields["code"] = code.String()
			fields["retryable"] = errors.IsRetryable(err)
		}
	}
	l.Debug("transport_result", fields)
}

// Rejection logs a non-2xx answer from the error built by errors.Rejected.
// Always WARN.
func (l *Logger) Rejection(err error) {
	fields := map[string]interface{}{}
	if e := errors.As(err); e != nil {
		fields["transport"] = e.Transport()
		fields["status"] = e.Status()
		fields["body"] = e.Body()
	} else if err != nil {
		fields["error"] = err.Error()
	}
	l.Warn("heartbeat_rejected", fields)
}

// ChainExhausted logs that every transport failed.
func (l *Logger) ChainExhausted(attempts int) {
	l.Warn("heartbeat_failed", map[string]interface{}{
		"attempts": attempts,
	})
}
