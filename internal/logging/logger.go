// Package logging provides the structured logger used across the billing service.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Fields carries structured key/value pairs attached to a log line.
type Fields = logrus.Fields

var (
	baseMu sync.RWMutex
	base   = newBase(os.Stdout, os.Getenv("LOG_LEVEL"))
)

func newBase(out io.Writer, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	l.SetLevel(parseLevel(level))
	return l
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Configure replaces the output and level of the shared base logger.
// Loggers created before the call pick up the change.
func Configure(out io.Writer, level string) {
	baseMu.Lock()
	defer baseMu.Unlock()
	base.SetOutput(out)
	base.SetLevel(parseLevel(level))
}

func current() *logrus.Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return base
}

// LoggerV2 is a component-scoped structured logger.
type LoggerV2 struct {
	component string
}

// NewLoggerV2 creates a logger whose lines carry the given component name.
func NewLoggerV2(component string) *LoggerV2 {
	return &LoggerV2{component: component}
}

func (l *LoggerV2) entry(fields []Fields) *logrus.Entry {
	e := current().WithField("service", "billing-service")
	if l != nil && l.component != "" {
		e = e.WithField("component", l.component)
	}
	for _, f := range fields {
		e = e.WithFields(f)
	}
	return e
}

// Debug logs at debug level.
func (l *LoggerV2) Debug(msg string, fields ...Fields) {
	l.entry(fields).Debug(msg)
}

// Info logs at info level.
func (l *LoggerV2) Info(msg string, fields ...Fields) {
	l.entry(fields).Info(msg)
}

// Warn logs at warn level.
func (l *LoggerV2) Warn(msg string, fields ...Fields) {
	l.entry(fields).Warn(msg)
}

// Error logs at error level.
func (l *LoggerV2) Error(msg string, fields ...Fields) {
	l.entry(fields).Error(msg)
}

// Fatal logs at fatal level and exits the process.
func (l *LoggerV2) Fatal(msg string, fields ...Fields) {
	l.entry(fields).Fatal(msg)
}

// With returns a child logger that always includes the given fields.
func (l *LoggerV2) With(fields Fields) *Entry {
	return &Entry{logger: l, fields: fields}
}

// Entry is a logger bound to a fixed set of fields.
type Entry struct {
	logger *LoggerV2
	fields Fields
}

func (e *Entry) Debug(msg string, fields ...Fields) {
	e.logger.Debug(msg, append([]Fields{e.fields}, fields...)...)
}

func (e *Entry) Info(msg string, fields ...Fields) {
	e.logger.Info(msg, append([]Fields{e.fields}, fields...)...)
}

func (e *Entry) Error(msg string, fields ...Fields) {
	e.logger.Error(msg, append([]Fields{e.fields}, fields...)...)
}

// Infof is the printf-style logger kept for older call sites.
// Deprecated: Use LoggerV2.Info with Fields instead.
func Infof(format string, args ...interface{}) {
	current().WithField("service", "billing-service").Infof(format, args...)
}

// Info logs a structured line without a component.
func Info(msg string, fields ...Fields) {
	(*LoggerV2)(nil).Info(msg, fields...)
}
