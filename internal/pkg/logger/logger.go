// Package logger provides structured JSON logging with recipient-address
// redaction. Campaign dispatch touches real inboxes, so raw addresses never
// reach the log stream unless redaction is explicitly disabled.
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger emits one JSON object per entry to stderr.
type Logger struct {
	mu        sync.Mutex
	level     Level
	component string
	redact    bool
}

var defaultLogger = &Logger{level: INFO, redact: true}

// ParseLevel maps a config string to a Level. Unknown values mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetLevel sets the minimum level for the default logger.
func SetLevel(l Level) { defaultLogger.level = l }

// SetRedact enables or disables address redaction for the default logger.
func SetRedact(r bool) { defaultLogger.redact = r }

// Component returns a logger that stamps every entry with the given
// component name (e.g. "dispatcher", "api"). It shares the default
// logger's level and redaction settings.
func Component(name string) *Logger {
	return &Logger{level: defaultLogger.level, component: name, redact: defaultLogger.redact}
}

// Debug emits a DEBUG entry on the default logger.
func Debug(msg string, fields ...any) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO entry on the default logger.
func Info(msg string, fields ...any) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN entry on the default logger.
func Warn(msg string, fields ...any) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR entry on the default logger.
func Error(msg string, fields ...any) { defaultLogger.log(ERROR, msg, fields...) }

// Debug emits a DEBUG entry.
func (l *Logger) Debug(msg string, fields ...any) { l.log(DEBUG, msg, fields...) }

// Info emits an INFO entry.
func (l *Logger) Info(msg string, fields ...any) { l.log(INFO, msg, fields...) }

// Warn emits a WARN entry.
func (l *Logger) Warn(msg string, fields ...any) { l.log(WARN, msg, fields...) }

// Error emits an ERROR entry.
func (l *Logger) Error(msg string, fields ...any) { l.log(ERROR, msg, fields...) }

// log formats alternating key/value fields into a single JSON line.
func (l *Logger) log(level Level, msg string, fields ...any) {
	if level < l.level {
		return
	}

	entry := map[string]any{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": level.String(),
		"msg":   msg,
	}
	if l.component != "" {
		entry["component"] = l.component
	}

	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if l.redact {
			val = redactValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	l.mu.Lock()
	fmt.Fprintln(os.Stderr, string(data))
	l.mu.Unlock()
}
