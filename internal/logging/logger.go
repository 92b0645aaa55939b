// Package logging provides the structured logger used across every
// actor in the driver process.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the seam every actor codes against. Shape mirrors the
// teacher's definition.DefaultLogger method set, backed by logrus
// instead of the standard library logger.
type Logger interface {
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	// WithFields returns a Logger carrying the given fields on every
	// subsequent call, without mutating the receiver.
	WithFields(fields map[string]interface{}) Logger
}

type entryLogger struct {
	entry *logrus.Entry
}

var base = logrus.New()

func init() {
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("DEBUG") != "" {
		base.SetLevel(logrus.DebugLevel)
	}
}

// New builds a Logger pre-populated with the given fields, e.g. the
// component name and driver id every Hub/TripEngine/PeerLink logs
// with.
func New(fields map[string]interface{}) Logger {
	return &entryLogger{entry: base.WithFields(logrus.Fields(fields))}
}

func (l *entryLogger) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *entryLogger) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }
func (l *entryLogger) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *entryLogger) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }
func (l *entryLogger) Error(args ...interface{})                { l.entry.Error(args...) }
func (l *entryLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}
func (l *entryLogger) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *entryLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *entryLogger) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *entryLogger) Fatalf(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}

func (l *entryLogger) WithFields(fields map[string]interface{}) Logger {
	return &entryLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}
