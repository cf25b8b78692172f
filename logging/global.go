// Package logging provides the structured logger for the perfusion API:
// slog to console and a weekly rotating file, plus the HTTP request
// logging middleware.
package logging

import (
	"log/slog"
	"os"
)

// Service holds the configured logger.
type Service struct {
	Logger *slog.Logger
}

// Default is the process-wide logging service, set by InitLogger.
var Default *Service

// InitLogger initializes the global logger. With an empty logDir
// everything goes to the console only, which is what tests use.
func InitLogger(logDir string) {
	Default = &Service{Logger: SetupLogger(logDir)}
	slog.SetDefault(Default.Logger)
}

func logger(level slog.Level) *slog.Logger {
	if Default != nil && Default.Logger != nil {
		return Default.Logger
	}
	// Fallback console logger so early failures are never silent.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Package-level helpers for direct access.

func Info(msg string, args ...any) {
	logger(slog.LevelInfo).Info(msg, args...)
}

func Warn(msg string, args ...any) {
	logger(slog.LevelWarn).Warn(msg, args...)
}

func Error(msg string, args ...any) {
	logger(slog.LevelError).Error(msg, args...)
}

func Debug(msg string, args ...any) {
	logger(slog.LevelDebug).Debug(msg, args...)
}
