package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// PionFactory routes pion's scoped loggers into slog so ICE, DTLS and SCTP
// output honours LOG_LEVEL like everything else.
type PionFactory struct {
	Logger *slog.Logger
}

// NewPionFactory returns a factory bound to logger, or to slog.Default when
// logger is nil.
func NewPionFactory(logger *slog.Logger) *PionFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &PionFactory{Logger: logger}
}

// NewLogger implements logging.LoggerFactory.
func (f *PionFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{log: f.Logger.With("component", "pion", "scope", scope)}
}

// levelTrace sits below debug; pion emits a lot of it.
const levelTrace = slog.LevelDebug - 4

type pionLogger struct {
	log *slog.Logger
}

func (l *pionLogger) emit(level slog.Level, msg string) {
	l.log.Log(context.Background(), level, msg)
}

func (l *pionLogger) Trace(msg string)                  { l.emit(levelTrace, msg) }
func (l *pionLogger) Tracef(format string, args ...any) { l.emit(levelTrace, fmt.Sprintf(format, args...)) }
func (l *pionLogger) Debug(msg string)                  { l.emit(slog.LevelDebug, msg) }
func (l *pionLogger) Debugf(format string, args ...any) { l.emit(slog.LevelDebug, fmt.Sprintf(format, args...)) }
func (l *pionLogger) Info(msg string)                   { l.emit(slog.LevelInfo, msg) }
func (l *pionLogger) Infof(format string, args ...any)  { l.emit(slog.LevelInfo, fmt.Sprintf(format, args...)) }
func (l *pionLogger) Warn(msg string)                   { l.emit(slog.LevelWarn, msg) }
func (l *pionLogger) Warnf(format string, args ...any)  { l.emit(slog.LevelWarn, fmt.Sprintf(format, args...)) }
func (l *pionLogger) Error(msg string)                  { l.emit(slog.LevelError, msg) }
func (l *pionLogger) Errorf(format string, args ...any) { l.emit(slog.LevelError, fmt.Sprintf(format, args...)) }
