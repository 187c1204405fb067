package logz

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of log messages
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
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
	default:
		return "UNKNOWN"
	}
}

// Logger is a leveled printf logger with a component prefix
type Logger struct {
	mu     sync.RWMutex
	level  LogLevel
	prefix string
	logger *log.Logger
}

// New creates a new logger with the specified minimum level and prefix
func New(level LogLevel, prefix string) *Logger {
	return NewWithWriter(os.Stdout, level, prefix)
}

// NewWithWriter creates a logger that writes to w
func NewWithWriter(w io.Writer, level LogLevel, prefix string) *Logger {
	return &Logger{
		level:  level,
		prefix: prefix,
		logger: log.New(w, "", 0),
	}
}

// Discard returns a logger that drops every message
func Discard() *Logger {
	return NewWithWriter(io.Discard, ERROR+1, "")
}

// Default creates a logger with INFO level and no prefix
func Default() *Logger {
	return New(INFO, "")
}

// WithPrefix creates a child logger, joining prefixes with ':'
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	newPrefix := prefix
	if l.prefix != "" {
		newPrefix = l.prefix + ":" + prefix
	}
	return &Logger{
		level:  l.level,
		prefix: newPrefix,
		logger: l.logger,
	}
}

// SetLevel sets the minimum logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Level returns the minimum logging level
func (l *Logger) Level() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) log(level LogLevel, format string, args ...any) {
	l.mu.RLock()
	min, prefix := l.level, l.prefix
	l.mu.RUnlock()
	if level < min {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	message := fmt.Sprintf(format, args...)
	if prefix != "" {
		l.logger.Printf("[%s] %s [%s] %s", timestamp, level, prefix, message)
		return
	}
	l.logger.Printf("[%s] %s %s", timestamp, level, message)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }

// Info logs an info message
func (l *Logger) Info(format string, args ...any) { l.log(INFO, format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...any) { l.log(WARN, format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

// Fatal logs an error message and exits the program
func (l *Logger) Fatal(format string, args ...any) {
	l.log(ERROR, format, args...)
	os.Exit(1)
}

var defaultLogger = Default()

// SetDefaultLevel sets the level for the default logger
func SetDefaultLevel(level LogLevel) {
	defaultLogger.SetLevel(level)
}

// Debug logs a debug message using the default logger
func Debug(format string, args ...any) { defaultLogger.Debug(format, args...) }

// Info logs an info message using the default logger
func Info(format string, args ...any) { defaultLogger.Info(format, args...) }

// Warn logs a warning message using the default logger
func Warn(format string, args ...any) { defaultLogger.Warn(format, args...) }

// Error logs an error message using the default logger
func Error(format string, args ...any) { defaultLogger.Error(format, args...) }

// Fatal logs an error message and exits using the default logger
func Fatal(format string, args ...any) { defaultLogger.Fatal(format, args...) }

// ParseLevel parses a case-insensitive level name
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %s", level)
	}
}
