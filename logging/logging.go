// Package logging wraps logrus behind the same narrow interface shape
// the teacher used for its own pluggable logger, so packages that only
// need Debugf/Infof/Errorf don't have to import logrus directly.
package logging

import "github.com/sirupsen/logrus"

// DebugLogger is the logging surface the rest of the crawler depends on.
type DebugLogger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// logrusLogger adapts a logrus.FieldLogger to DebugLogger.
type logrusLogger struct {
	l logrus.FieldLogger
}

// New wraps l (or the standard logrus logger, if l is nil) as a
// DebugLogger.
func New(l logrus.FieldLogger) DebugLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{l: l}
}

func (d *logrusLogger) Debugf(format string, args ...interface{}) { d.l.Debugf(format, args...) }
func (d *logrusLogger) Infof(format string, args ...interface{})  { d.l.Infof(format, args...) }
func (d *logrusLogger) Errorf(format string, args ...interface{}) { d.l.Errorf(format, args...) }

// NewJSON builds a logrus logger configured for structured JSON output at
// the given level string (e.g. "debug", "info", "warn"), for use from
// cmd/crawlerd.
func NewJSON(level string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(lvl)
	return l, nil
}
