// Package logx provides the leveled logger used across the engine's
// components, backed by kataras/golog.
package logx

import (
	"fmt"

	"github.com/kataras/golog"
)

// Level mirrors golog's severity levels so callers don't need to import
// golog directly.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// Logger is the interface every component (builder, runtime, scheduler,
// storage) logs through.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// GologLogger implements Logger on top of golog.Logger.
type GologLogger struct {
	logger *golog.Logger
	level  Level
}

var _ Logger = (*GologLogger)(nil)

// New creates a logger named "agentgraph" at the given level.
func New(level Level) *GologLogger {
	l := golog.New()
	l.SetPrefix("[agentgraph] ")
	return &GologLogger{logger: l, level: level}
}

// Wrap adapts an existing golog.Logger.
func Wrap(l *golog.Logger, level Level) *GologLogger {
	return &GologLogger{logger: l, level: level}
}

func (l *GologLogger) Debug(format string, v ...any) {
	if l.level <= LevelDebug {
		l.logger.Debugf(format, v...)
	}
}

func (l *GologLogger) Info(format string, v ...any) {
	if l.level <= LevelInfo {
		l.logger.Infof(format, v...)
	}
}

func (l *GologLogger) Warn(format string, v ...any) {
	if l.level <= LevelWarn {
		l.logger.Warnf(format, v...)
	}
}

func (l *GologLogger) Error(format string, v ...any) {
	if l.level <= LevelError {
		l.logger.Errorf(format, v...)
	}
}

// NoOp discards everything; useful for tests that don't want log noise.
type NoOp struct{}

func (NoOp) Debug(string, ...any) {}
func (NoOp) Info(string, ...any)  {}
func (NoOp) Warn(string, ...any)  {}
func (NoOp) Error(string, ...any) {}

var defaultLogger Logger = New(LevelInfo)

// SetDefault overrides the package-level logger.
func SetDefault(l Logger) { defaultLogger = l }

// Default returns the package-level logger.
func Default() Logger { return defaultLogger }

func Debug(format string, v ...any) { defaultLogger.Debug(format, v...) }
func Info(format string, v ...any)  { defaultLogger.Info(format, v...) }
func Warn(format string, v ...any)  { defaultLogger.Warn(format, v...) }
func Error(format string, v ...any) { defaultLogger.Error(format, v...) }

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelNone:
		return "NONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", l)
	}
}
