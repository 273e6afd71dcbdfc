// Package logger provides structured, level-gated logging for the
// privacy-guardian proxy.
//
// Each entry is one line with fixed-width columns:
//
//	2006-01-02 15:04:05.000 | COMPONENT     | action               | LEVEL | message
//
// Levels (lowest to highest): debug, info, warn, error. Entries below the
// configured minimum level are dropped.
//
// Usage:
//
//	log := logger.New("vault", cfg.LogLevel)
//	log.Info("intern", "new token minted kind=EMAIL")
//	log.Errorf("lookup", "bbolt read failed: %v", err)
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Level is a log severity.
type Level int

// Severities, ordered lowest to highest.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger writes structured log lines tagged with one component name.
type Logger struct {
	component string
	level     Level
	out       *log.Logger
}

// New creates a Logger for component, gated at levelStr.
// Unrecognized level strings default to "info".
func New(component, levelStr string) *Logger {
	return &Logger{
		component: strings.ToUpper(component),
		level:     parseLevel(levelStr),
		out:       log.New(os.Stderr, "", 0),
	}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(levelStr string) {
	l.level = parseLevel(levelStr)
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(action, msg string) { l.write(LevelDebug, "DEBUG", action, msg) }

// Info logs at INFO level.
func (l *Logger) Info(action, msg string) { l.write(LevelInfo, "INFO ", action, msg) }

// Warn logs at WARN level.
func (l *Logger) Warn(action, msg string) { l.write(LevelWarn, "WARN ", action, msg) }

// Error logs at ERROR level.
func (l *Logger) Error(action, msg string) { l.write(LevelError, "ERROR", action, msg) }

// Debugf formats and logs at DEBUG level.
func (l *Logger) Debugf(action, format string, args ...any) {
	l.Debug(action, fmt.Sprintf(format, args...))
}

// Infof formats and logs at INFO level.
func (l *Logger) Infof(action, format string, args ...any) {
	l.Info(action, fmt.Sprintf(format, args...))
}

// Warnf formats and logs at WARN level.
func (l *Logger) Warnf(action, format string, args ...any) {
	l.Warn(action, fmt.Sprintf(format, args...))
}

// Errorf formats and logs at ERROR level.
func (l *Logger) Errorf(action, format string, args ...any) {
	l.Error(action, fmt.Sprintf(format, args...))
}

// Fatal logs at ERROR level then exits the process with status 1.
// Reserved for startup configuration failures (pattern compile errors,
// an unreadable key directory — the fatal class in the error taxonomy).
func (l *Logger) Fatal(action, msg string) {
	l.Error(action, msg)
	os.Exit(1)
}

// Fatalf is Fatal with Printf-style formatting.
func (l *Logger) Fatalf(action, format string, args ...any) {
	l.Fatal(action, fmt.Sprintf(format, args...))
}

func (l *Logger) write(level Level, label, action, msg string) {
	if level < l.level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	l.out.Printf("%s | %-13s | %-20s | %s | %s", ts, l.component, action, label, msg)
}

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
