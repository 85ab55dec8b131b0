package smbauth

import "github.com/sirupsen/logrus"

// Logger defines the logging interface used by Conn
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// DefaultLogger writes through logrus
type DefaultLogger struct {
	entry logrus.FieldLogger
}

// NewDefaultLogger creates a logger on stderr. Debug messages are only
// written when debug is set.
func NewDefaultLogger(debug bool) *DefaultLogger {
	l := logrus.New()
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return NewLogrusLogger(l)
}

// NewLogrusLogger adapts an existing logrus logger or entry.
func NewLogrusLogger(l logrus.FieldLogger) *DefaultLogger {
	return &DefaultLogger{entry: l}
}

// WithField returns a logger that adds key=value to every message.
func (l *DefaultLogger) WithField(key string, value interface{}) *DefaultLogger {
	return &DefaultLogger{entry: l.entry.WithField(key, value)}
}

func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	l.entry.Debugf(msg, args...)
}

func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	l.entry.Infof(msg, args...)
}

func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	l.entry.Warnf(msg, args...)
}

func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	l.entry.Errorf(msg, args...)
}

// NullLogger discards all log messages
type NullLogger struct{}

func (l *NullLogger) Debug(msg string, args ...interface{}) {}
func (l *NullLogger) Info(msg string, args ...interface{})  {}
func (l *NullLogger) Warn(msg string, args ...interface{})  {}
func (l *NullLogger) Error(msg string, args ...interface{}) {}
