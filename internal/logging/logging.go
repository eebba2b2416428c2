// Package logging configures the logrus logger used by crankdb.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Configure builds a logger writing to w. format is "text" (full timestamps)
// or "json"; level is any logrus level name.
func Configure(level, format string, w io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
	return logger, nil
}

// FailureLogger writes failed iterations to a logger at warn level.
type FailureLogger struct {
	Logger logrus.FieldLogger
}

func (l FailureLogger) LogFailure(worker int, err error) {
	l.Logger.WithField("worker", worker).WithError(err).Warn("iteration failed")
}
