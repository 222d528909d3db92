// Package logging provides the logger interface used across verif.
// It uses logrus under the hood.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Tracef(format string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
	WithField(key string, value any) *logrus.Entry
	WithFields(fields logrus.Fields) *logrus.Entry
}

type logger struct {
	*logrus.Logger
}

func New(w io.Writer, level logrus.Level) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.Formatter = &logrus.TextFormatter{
		FullTimestamp: true,
	}
	return &logger{Logger: l}
}

// LevelFromVerbosity maps a -v count to a log level: warnings only by
// default, then info, debug and trace.
func LevelFromVerbosity(v int) logrus.Level {
	switch {
	case v <= 0:
		return logrus.WarnLevel
	case v == 1:
		return logrus.InfoLevel
	case v == 2:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// Noop returns a logger that discards everything.
func Noop() Logger {
	return New(io.Discard, logrus.PanicLevel)
}
