package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger interface for structured logging
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Fatal(msg string, err error, fields ...interface{})
}

// logrusLogger implements Logger on top of logrus
type logrusLogger struct {
	log *logrus.Logger
}

// New creates the default application logger
func New() Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if os.Getenv("LOG_LEVEL") == "debug" {
		l.SetLevel(logrus.DebugLevel)
	}
	return &logrusLogger{log: l}
}

// NewWithLogrus wraps an existing logrus instance
func NewWithLogrus(l *logrus.Logger) Logger {
	return &logrusLogger{log: l}
}

// kv pairs up variadic fields; odd trailing values are dropped
func kv(fields []interface{}) logrus.Fields {
	out := logrus.Fields{}
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		out[key] = fields[i+1]
	}
	return out
}

// Info logs an info message
func (l *logrusLogger) Info(msg string, fields ...interface{}) {
	l.log.WithFields(kv(fields)).Info(msg)
}

// Error logs an error message
func (l *logrusLogger) Error(msg string, err error, fields ...interface{}) {
	l.log.WithFields(kv(fields)).WithError(err).Error(msg)
}

// Warn logs a warning message
func (l *logrusLogger) Warn(msg string, fields ...interface{}) {
	l.log.WithFields(kv(fields)).Warn(msg)
}

// Debug logs a debug message
func (l *logrusLogger) Debug(msg string, fields ...interface{}) {
	l.log.WithFields(kv(fields)).Debug(msg)
}

// Fatal logs a fatal error and exits
func (l *logrusLogger) Fatal(msg string, err error, fields ...interface{}) {
	l.log.WithFields(kv(fields)).WithError(err).Fatal(msg)
}
