package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/paramgen/internal/logging/logfields"
)

// LogFormat is the output format of the logger
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// New returns a logger writing to stderr. Verbose lowers the level to Debug.
func New(verbose bool, format LogFormat) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(GetFormatter(format))
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// Discard returns a logger that drops everything, for tests
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// GetFormatter returns a configured logrus.Formatter
func GetFormatter(format LogFormat) logrus.Formatter {
	switch format {
	case LogFormatJSON:
		return &logrus.JSONFormatter{DisableTimestamp: true}
	default:
		return &logrus.TextFormatter{DisableTimestamp: true, DisableColors: true}
	}
}

// Subsys scopes a logger to one subsystem
func Subsys(logger logrus.FieldLogger, name string) *logrus.Entry {
	if logger == nil {
		logger = Discard()
	}
	return logger.WithField(logfields.LogSubsys, name)
}
