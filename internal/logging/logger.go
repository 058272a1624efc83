// Package logging provides structured logging with secret redaction for srpgate.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log entry.
type LogLevel string

// Log severity levels.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var levelOrder = map[LogLevel]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// LogFormat represents the output format for log entries.
type LogFormat string

// Log output formats.
const (
	// FormatJSON writes one JSON object per line (default).
	FormatJSON LogFormat = "json"
	// FormatHuman writes "[timestamp] level: message key=value ...".
	FormatHuman LogFormat = "human"
)

// ParseLevel parses a configured level name.
func ParseLevel(s string) (LogLevel, error) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelOrder[level]; !ok {
		return "", fmt.Errorf("invalid log level %q (must be debug, info, warn or error)", s)
	}
	return level, nil
}

// ParseFormat parses a configured format name. "text" is accepted as an
// alias for human.
func ParseFormat(s string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "human", "text":
		return FormatHuman, nil
	default:
		return "", fmt.Errorf("invalid log format %q (must be json or human)", s)
	}
}

// Logger writes leveled, structured log entries. Fields pass through a
// Redactor before they are written. Error entries go to stderr, all others
// to stdout.
type Logger struct {
	level    LogLevel
	format   LogFormat
	redactor *Redactor

	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
}

type logEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// New creates a Logger writing to os.Stdout and os.Stderr.
func New(level LogLevel, format LogFormat) *Logger {
	return &Logger{
		level:    level,
		format:   format,
		redactor: NewRedactor(),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
}

// SetOutput replaces the output writers, e.g. in tests.
func (l *Logger) SetOutput(stdout, stderr io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stdout = stdout
	l.stderr = stderr
}

// Redactor returns the redactor applied to every entry.
func (l *Logger) Redactor() *Redactor {
	return l.redactor
}

// Debug logs a debug-level message.
func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.log(LevelDebug, msg, fields)
}

// Info logs an info-level message.
func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.log(LevelInfo, msg, fields)
}

// Warn logs a warn-level message.
func (l *Logger) Warn(msg string, fields ...map[string]any) {
	l.log(LevelWarn, msg, fields)
}

// Error logs an error-level message.
func (l *Logger) Error(msg string, fields ...map[string]any) {
	l.log(LevelError, msg, fields)
}

// WithFields returns a logger that adds fields to every entry.
func (l *Logger) WithFields(fields map[string]any) *ContextLogger {
	return &ContextLogger{logger: l, fields: fields}
}

func (l *Logger) log(level LogLevel, msg string, fields []map[string]any) {
	if levelOrder[level] < levelOrder[l.level] {
		return
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   msg,
		Fields:    l.redactor.RedactFields(mergeFields(fields...)),
	}

	var line string
	if l.format == FormatHuman {
		line = formatHuman(entry)
	} else {
		line = formatJSON(entry)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.stdout
	if level == LevelError {
		w = l.stderr
	}
	_, _ = io.WriteString(w, line)
}

func formatJSON(entry logEntry) string {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"timestamp":%q,"level":"error","message":"failed to marshal log entry: %s"}`+"\n",
			entry.Timestamp, err)
	}
	return string(data) + "\n"
}

// formatHuman writes fields in key order so lines are stable.
func formatHuman(entry logEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", entry.Timestamp, entry.Level, entry.Message)

	for _, k := range slices.Sorted(maps.Keys(entry.Fields)) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}

	b.WriteString("\n")
	return b.String()
}

func mergeFields(fields ...map[string]any) map[string]any {
	if len(fields) == 0 {
		return nil
	}

	merged := make(map[string]any)
	for _, f := range fields {
		maps.Copy(merged, f)
	}
	return merged
}

// ContextLogger wraps a Logger with fields added to every entry.
type ContextLogger struct {
	logger *Logger
	fields map[string]any
}

func (cl *ContextLogger) with(fields []map[string]any) []map[string]any {
	return append([]map[string]any{cl.fields}, fields...)
}

// Debug logs a debug-level message with context fields.
func (cl *ContextLogger) Debug(msg string, fields ...map[string]any) {
	cl.logger.log(LevelDebug, msg, cl.with(fields))
}

// Info logs an info-level message with context fields.
func (cl *ContextLogger) Info(msg string, fields ...map[string]any) {
	cl.logger.log(LevelInfo, msg, cl.with(fields))
}

// Warn logs a warn-level message with context fields.
func (cl *ContextLogger) Warn(msg string, fields ...map[string]any) {
	cl.logger.log(LevelWarn, msg, cl.with(fields))
}

// Error logs an error-level message with context fields.
func (cl *ContextLogger) Error(msg string, fields ...map[string]any) {
	cl.logger.log(LevelError, msg, cl.with(fields))
}
