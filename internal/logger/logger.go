// Package logger provides the structured logging surface every other
// package logs through, adapted from the teacher's internal/common/logger:
// a log/slog core, console and optional rotating-file handlers fanned out
// with github.com/samber/slog-multi, and a small Logger interface so call
// sites never import log/slog directly.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the structured logging surface the rest of this module calls
// into. Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, tags ...any)
	Info(msg string, tags ...any)
	Warn(msg string, tags ...any)
	Error(msg string, tags ...any)

	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)

	With(attrs ...any) Logger

	// Slog exposes the underlying *slog.Logger for collaborators (the
	// Scheduler, Dispatcher) that want to pass one through unmodified.
	Slog() *slog.Logger
}

var _ Logger = (*appLogger)(nil)

type appLogger struct {
	logger *slog.Logger
}

// Config controls NewLogger's output: a console handler is always
// installed; a rotating file handler is added when FilePath is set.
type Config struct {
	Level    slog.Level
	FilePath string
	MaxSizeMB int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps the --log-level flag's accepted values onto a
// slog.Level, defaulting to Info for anything unrecognised.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a Logger per cfg: a text handler on stderr, fanned out
// (via slog-multi) to a lumberjack-backed rotating file handler when
// cfg.FilePath is non-empty.
func NewLogger(cfg Config) Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.Level == slog.LevelDebug}

	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, opts)}
	if cfg.FilePath != "" {
		handlers = append(handlers, slog.NewJSONHandler(newRotatingWriter(cfg), opts))
	}

	return &appLogger{logger: slog.New(slogmulti.Fanout(handlers...))}
}

// newRotatingWriter wraps cfg's file path in a lumberjack.Logger, applying
// sane defaults when the size/backup/age knobs are left at zero.
func newRotatingWriter(cfg Config) io.Writer {
	maxSize, maxBackups, maxAge := cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays
	if maxSize <= 0 {
		maxSize = 50
	}
	if maxBackups <= 0 {
		maxBackups = 5
	}
	if maxAge <= 0 {
		maxAge = 30
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
	}
}

func (a *appLogger) Debug(msg string, tags ...any) { a.logger.Debug(msg, tags...) }
func (a *appLogger) Info(msg string, tags ...any)  { a.logger.Info(msg, tags...) }
func (a *appLogger) Warn(msg string, tags ...any)  { a.logger.Warn(msg, tags...) }
func (a *appLogger) Error(msg string, tags ...any) { a.logger.Error(msg, tags...) }

func (a *appLogger) Debugf(format string, v ...any) { a.logger.Debug(fmt.Sprintf(format, v...)) }
func (a *appLogger) Infof(format string, v ...any)  { a.logger.Info(fmt.Sprintf(format, v...)) }
func (a *appLogger) Warnf(format string, v ...any)  { a.logger.Warn(fmt.Sprintf(format, v...)) }
func (a *appLogger) Errorf(format string, v ...any) { a.logger.Error(fmt.Sprintf(format, v...)) }

func (a *appLogger) With(attrs ...any) Logger {
	return &appLogger{logger: a.logger.With(attrs...)}
}

func (a *appLogger) Slog() *slog.Logger { return a.logger }
