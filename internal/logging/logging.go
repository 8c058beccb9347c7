package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel LogLevel
	levelOnce    sync.Once

	loggerMu sync.RWMutex
	logger   = newLogger(os.Stderr, os.Getenv("LOG_FORMAT"))
)

// newLogger builds the zerolog backend. JSON output is used when format is
// "json"; anything else gets the human-readable console writer.
func newLogger(w io.Writer, format string) zerolog.Logger {
	if strings.EqualFold(format, "json") {
		return zerolog.New(w).With().Timestamp().Logger()
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime, NoColor: os.Getenv("NO_COLOR") != ""}
	return zerolog.New(cw).With().Timestamp().Logger()
}

// parseLevel maps DEBUG / LOG_LEVEL values onto a LogLevel.
func parseLevel(debug, level string) LogLevel {
	switch strings.ToLower(debug) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}

	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseLevel maps a level name such as "debug" or "warn" onto a LogLevel.
// Unknown names give LevelInfo.
func ParseLevel(name string) LogLevel {
	return parseLevel("", name)
}

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		currentLevel = parseLevel(os.Getenv("DEBUG"), os.Getenv("LOG_LEVEL"))
	})
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return currentLevel
}

// SetLevel overrides the level read from the environment.
func SetLevel(l LogLevel) {
	initLevel()
	currentLevel = l
}

// SetOutput redirects log output. Tests use it to capture lines.
func SetOutput(w io.Writer, format string) {
	loggerMu.Lock()
	logger = newLogger(w, format)
	loggerMu.Unlock()
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func emit(ev func(*zerolog.Logger) *zerolog.Event, format string, args ...interface{}) {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	ev(&l).Msg(fmt.Sprintf(format, args...))
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		emit((*zerolog.Logger).Debug, format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		emit((*zerolog.Logger).Info, format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		emit((*zerolog.Logger).Warn, format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		emit((*zerolog.Logger).Error, format, args...)
	}
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	emit((*zerolog.Logger).Error, format, args...)
	os.Exit(1)
}

// Printf logs a message regardless of level
func Printf(format string, args ...interface{}) {
	emit((*zerolog.Logger).Log, format, args...)
}

// Println logs its arguments regardless of level
func Println(args ...interface{}) {
	emit((*zerolog.Logger).Log, "%s", strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
