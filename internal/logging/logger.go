// Package logging provides subsystem-tagged logging for Pulse, gated by a
// configurable level instead of a single debug boolean.
package logging

import (
	"log"
	"os"
	"strings"
)

// Level is a logging verbosity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var current = levelFromString(os.Getenv("PULSE_LOG_LEVEL"))

func levelFromString(s string) Level {
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

// SetLevel overrides the active log level (called after config load, before
// the PULSE_LOG_LEVEL env override is re-applied by Init).
func SetLevel(l Level) {
	current = l
}

// Init sets the level from configuration then re-applies the
// PULSE_LOG_LEVEL environment override, per spec: the env var always wins.
func Init(configLevel string) {
	current = levelFromString(configLevel)
	if env := os.Getenv("PULSE_LOG_LEVEL"); env != "" {
		current = levelFromString(env)
	}
}

// Debug logs a debug message (only shown at LevelDebug).
func Debug(subsystem, format string, args ...any) {
	if current <= LevelDebug {
		log.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
	}
}

// Info logs an informational message (shown at LevelInfo and below).
func Info(subsystem, format string, args ...any) {
	if current <= LevelInfo {
		log.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
	}
}

// Warn logs a warning.
func Warn(subsystem, format string, args ...any) {
	if current <= LevelWarn {
		log.Printf("[%s] WARN: "+format, append([]any{subsystem}, args...)...)
	}
}

// Error logs an error. Errors are always shown regardless of level.
func Error(subsystem, format string, args ...any) {
	log.Printf("[%s] ERROR: "+format, append([]any{subsystem}, args...)...)
}

// Truncate truncates a string to maxLen and adds ellipsis, collapsing
// newlines so multi-line payloads stay on one log line.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
