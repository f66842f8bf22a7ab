package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Logger provides structured logging for remote API calls.
type Logger interface {
	// LogRequest logs an outgoing API request (API key redacted)
	LogRequest(ctx context.Context, req RequestLog)

	// LogResponse logs an API response with timing info
	LogResponse(ctx context.Context, resp ResponseLog)

	// LogError logs an API error
	LogError(ctx context.Context, err ErrorLog)
}

// EventLogger logs application events with structured fields. The usecase
// packages declare their own copies of this interface; DefaultLogger and
// NopLogger satisfy all of them.
type EventLogger interface {
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
}

// RequestLog contains request information for logging.
type RequestLog struct {
	Service   string
	Operation string
	Timestamp time.Time
	BodyChars int    // Character count of the request payload
	APIKey    string // Will be redacted to last 4 chars
}

// ResponseLog contains response information for logging.
type ResponseLog struct {
	Service    string
	Operation  string
	Timestamp  time.Time
	Duration   time.Duration
	StatusCode int
	BodyChars  int
}

// ErrorLog contains error information for logging.
type ErrorLog struct {
	Service    string
	Operation  string
	Timestamp  time.Time
	Duration   time.Duration
	Error      error
	ErrorType  ErrorType
	StatusCode int
	Retryable  bool
}

// LogLevel defines the logging verbosity level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelError
)

// LogFormat defines the output format for logs.
type LogFormat int

const (
	LogFormatHuman LogFormat = iota
	LogFormatJSON
)

// ParseLogLevel maps a config string to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ParseLogFormat maps a config string to a LogFormat, defaulting to human.
func ParseLogFormat(s string) LogFormat {
	if s == "json" {
		return LogFormatJSON
	}
	return LogFormatHuman
}

// DefaultLogger writes logs in structured format to stderr via the
// standard log package.
type DefaultLogger struct {
	level      LogLevel
	redactKeys bool
	format     LogFormat
}

// NewDefaultLogger creates a logger with the specified config.
func NewDefaultLogger(level LogLevel, format LogFormat, redactKeys bool) *DefaultLogger {
	return &DefaultLogger{
		level:      level,
		redactKeys: redactKeys,
		format:     format,
	}
}

// LogRequest logs an API request.
func (l *DefaultLogger) LogRequest(ctx context.Context, req RequestLog) {
	if l.level > LogLevelDebug {
		return
	}

	redacted := l.RedactAPIKey(req.APIKey)

	if l.format == LogFormatJSON {
		log.Printf(`{"level":"debug","type":"request","service":"%s","operation":"%s","timestamp":"%s","body_chars":%d,"api_key":"%s"}`,
			req.Service, req.Operation, req.Timestamp.Format(time.RFC3339),
			req.BodyChars, redacted)
	} else {
		log.Printf("[DEBUG] %s/%s: Request sent (body=%d chars, key=%s)",
			req.Service, req.Operation, req.BodyChars, redacted)
	}
}

// LogResponse logs an API response.
func (l *DefaultLogger) LogResponse(ctx context.Context, resp ResponseLog) {
	if l.level > LogLevelInfo {
		return
	}

	if l.format == LogFormatJSON {
		log.Printf(`{"level":"info","type":"response","service":"%s","operation":"%s","timestamp":"%s","duration_ms":%d,"status_code":%d,"body_chars":%d}`,
			resp.Service, resp.Operation, resp.Timestamp.Format(time.RFC3339),
			resp.Duration.Milliseconds(), resp.StatusCode, resp.BodyChars)
	} else {
		log.Printf("[INFO] %s/%s: Response received (duration=%.1fs, status=%d, body=%d chars)",
			resp.Service, resp.Operation, resp.Duration.Seconds(),
			resp.StatusCode, resp.BodyChars)
	}
}

// LogError logs an API error.
func (l *DefaultLogger) LogError(ctx context.Context, err ErrorLog) {
	if l.level > LogLevelError {
		return
	}

	retryableStr := "non-retryable"
	if err.Retryable {
		retryableStr = "retryable"
	}

	if l.format == LogFormatJSON {
		log.Printf(`{"level":"error","type":"error","service":"%s","operation":"%s","timestamp":"%s","duration_ms":%d,"error":"%s","error_type":%d,"status_code":%d,"retryable":%t}`,
			err.Service, err.Operation, err.Timestamp.Format(time.RFC3339),
			err.Duration.Milliseconds(), RedactURLSecrets(err.Error.Error()),
			err.ErrorType, err.StatusCode, err.Retryable)
	} else {
		log.Printf("[ERROR] %s/%s: API call failed (status=%d, %s): %v",
			err.Service, err.Operation, err.StatusCode, retryableStr,
			RedactURLSecrets(err.Error.Error()))
	}
}

// LogWarning logs an application warning with structured fields.
func (l *DefaultLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.logEvent("warning", "WARN", message, fields)
}

// LogInfo logs an application event with structured fields.
func (l *DefaultLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	l.logEvent("info", "INFO", message, fields)
}

func (l *DefaultLogger) logEvent(level, humanLevel, message string, fields map[string]interface{}) {
	if l.format == LogFormatJSON {
		encoded, err := json.Marshal(fields)
		if err != nil {
			encoded = []byte("{}")
		}
		log.Printf(`{"level":"%s","type":"event","message":"%s","fields":%s}`,
			level, message, encoded)
		return
	}

	if len(fields) == 0 {
		log.Printf("[%s] %s", humanLevel, message)
		return
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
	log.Printf("[%s] %s (%s)", humanLevel, message, strings.Join(parts, ", "))
}

// RedactAPIKey shows only the last 4 characters of an API key with explicit redaction markers.
func (l *DefaultLogger) RedactAPIKey(key string) string {
	if !l.redactKeys {
		return key
	}
	if len(key) <= 4 {
		return "[REDACTED]"
	}
	return fmt.Sprintf("[REDACTED-%s]", key[len(key)-4:])
}

// NopLogger discards all log entries. Useful in tests and dry runs.
type NopLogger struct{}

func (NopLogger) LogRequest(context.Context, RequestLog)   {}
func (NopLogger) LogResponse(context.Context, ResponseLog) {}
func (NopLogger) LogError(context.Context, ErrorLog)       {}

func (NopLogger) LogWarning(context.Context, string, map[string]interface{}) {}
func (NopLogger) LogInfo(context.Context, string, map[string]interface{})    {}
