package relay

import (
	"github.com/rs/zerolog"
)

// Logger is the structured logging interface consumed by the pipeline.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// NoopLogger discards all log output.
type NoopLogger struct{}

// Debug does nothing.
func (NoopLogger) Debug(msg string, fields map[string]any) {}

// Info does nothing.
func (NoopLogger) Info(msg string, fields map[string]any) {}

// Warn does nothing.
func (NoopLogger) Warn(msg string, fields map[string]any) {}

// Error does nothing.
func (NoopLogger) Error(msg string, fields map[string]any) {}

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger wraps logger.
func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

// Debug logs at debug level.
func (l *ZerologLogger) Debug(msg string, fields map[string]any) {
	l.logger.Debug().Fields(fields).Msg(msg)
}

// Info logs at info level.
func (l *ZerologLogger) Info(msg string, fields map[string]any) {
	l.logger.Info().Fields(fields).Msg(msg)
}

// Warn logs at warn level.
func (l *ZerologLogger) Warn(msg string, fields map[string]any) {
	l.logger.Warn().Fields(fields).Msg(msg)
}

// Error logs at error level.
func (l *ZerologLogger) Error(msg string, fields map[string]any) {
	l.logger.Error().Fields(fields).Msg(msg)
}
