package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// DefaultLogger is the logrus-backed Logger implementation.
// Everything goes to stderr so stdout stays free for extracted records.
type DefaultLogger struct {
	entry *logrus.Entry
}

// NewDefaultLogger creates a logger writing text lines to stderr at info level.
func NewDefaultLogger() *DefaultLogger {
	return NewDefaultLoggerWithOutput(os.Stderr)
}

// NewDefaultLoggerWithOutput creates a logger writing to w. Colors are only
// enabled when w is a terminal.
func NewDefaultLoggerWithOutput(w io.Writer) *DefaultLogger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: !isTerminal(w),
	})
	return &DefaultLogger{entry: logrus.NewEntry(base)}
}

// NewDefaultLoggerFrom wraps an existing logrus logger, so an application
// can share its logger configuration with the library.
func NewDefaultLoggerFrom(base *logrus.Logger) *DefaultLogger {
	if base == nil {
		return NewDefaultLogger()
	}
	return &DefaultLogger{entry: logrus.NewEntry(base)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func (d *DefaultLogger) with(fields []Fields) *logrus.Entry {
	if len(fields) == 0 {
		return d.entry
	}
	merged := make(logrus.Fields)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return d.entry.WithFields(merged)
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.with(fields).Debug(msg)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.with(fields).Info(msg)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.with(fields).Warn(msg)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.with(fields).WithError(err).Error(msg)
}

// Fatal logs and exits the process through logrus.
func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.with(fields).WithError(err).Fatal(msg)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	return &DefaultLogger{entry: d.entry.WithFields(logrus.Fields(fields))}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

// SetLevel changes the level of the underlying logrus logger, which is
// shared by every logger derived through WithFields.
func (d *DefaultLogger) SetLevel(level Level) {
	d.entry.Logger.SetLevel(toLogrusLevel(level))
}

func toLogrusLevel(level Level) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// NoOpLogger discards everything. Tests and embedding applications that
// bring their own logging use it.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
