// Package logger provides leveled, module-tagged logging on top of the
// standard log package.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level is the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	SILENT
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "SILENT"}

var levelColors = [...]string{
	"\033[36m",
	"\033[32m",
	"\033[33m",
	"\033[31m",
	"",
}

const resetColor = "\033[0m"

// String returns the upper-case name of the level.
func (l Level) String() string {
	if l < DEBUG || l > SILENT {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel parses a level name such as "info" or "WARN".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "info", "":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	case "silent", "none", "off":
		return SILENT, nil
	}
	return INFO, fmt.Errorf("invalid log level: %q", s)
}

// Logger writes leveled messages tagged with the module that produced them.
type Logger struct {
	mu       sync.Mutex
	level    Level
	useColor bool
	out      *log.Logger
}

// New creates a Logger writing to w. A nil writer means stderr.
func New(level Level, w io.Writer, useColor bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		level:    level,
		useColor: useColor,
		out:      log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
}

// SetLevel changes the minimum level that is written.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the minimum level that is written.
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *Logger) logf(level Level, module, format string, args ...any) {
	l.mu.Lock()
	min, color := l.level, l.useColor
	l.mu.Unlock()

	if level < min || level >= SILENT {
		return
	}

	prefix := "[" + level.String() + "]"
	if color {
		prefix = levelColors[level] + prefix + resetColor
	}
	if module != "" {
		prefix += " [" + module + "]"
	}
	l.out.Printf("%s %s", prefix, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(module, format string, args ...any) { l.logf(DEBUG, module, format, args...) }
func (l *Logger) Info(module, format string, args ...any)  { l.logf(INFO, module, format, args...) }
func (l *Logger) Warn(module, format string, args ...any)  { l.logf(WARN, module, format, args...) }
func (l *Logger) Error(module, format string, args ...any) { l.logf(ERROR, module, format, args...) }

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(INFO, os.Stderr, false)
)

// Init replaces the process-wide logger. Call once from main.
func Init(level Level, w io.Writer, useColor bool) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = New(level, w, useColor)
}

// Default returns the process-wide logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetLevel changes the level of the process-wide logger.
func SetLevel(level Level) { Default().SetLevel(level) }

func Debug(module, format string, args ...any) { Default().Debug(module, format, args...) }
func Info(module, format string, args ...any)  { Default().Info(module, format, args...) }
func Warn(module, format string, args ...any)  { Default().Warn(module, format, args...) }
func Error(module, format string, args ...any) { Default().Error(module, format, args...) }
