// Package logging configures the process-wide structured logger. Every
// module logs through logrus so operators get one consistent, greppable
// stream regardless of which activity produced a line.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures logrus with JSON formatting at level, writing to
// stderr and, if filePath is non-empty, additionally appending to that
// file. On file-open failure it falls back to stderr-only and logs the
// cause.
func Setup(level logrus.Level, filePath string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(level)

	if filePath == "" {
		logrus.SetOutput(os.Stderr)
		return
	}

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logrus.SetOutput(os.Stderr)
		logrus.WithError(err).WithField("path", filePath).Warn("failed to open log file, falling back to stderr")
		return
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
}
