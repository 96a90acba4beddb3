// Package common provides the centralized logging infrastructure for the
// docwallet service. It implements output routing that directs error
// messages to stderr while sending other log levels to stdout, enabling
// proper stream separation for containerized deployments.
//
// The logging system is built on logrus for structured logging. All
// packages share the global Logger instance so that field conventions
// (doc, cmd, tick) stay uniform across the service.
package common

import (
	"bytes"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stdout or stderr based on
// their level. Error lines go to stderr so orchestrators and shell
// pipelines can capture them independently; everything else goes to stdout.
type OutputSplitter struct{}

// Write implements io.Writer. It inspects the formatted entry for the
// logrus error-level marker and selects the output stream accordingly.
func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the global logger instance shared by all docwallet packages.
var Logger = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&OutputSplitter{})
	logger.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	})
	return logger
}

// ConfigureLogger applies the configured level and format to the global
// logger. Unknown values fall back to info/text.
func ConfigureLogger(level, format string) {
	switch level {
	case "debug":
		Logger.SetLevel(logrus.DebugLevel)
	case "warn":
		Logger.SetLevel(logrus.WarnLevel)
	case "error":
		Logger.SetLevel(logrus.ErrorLevel)
	default:
		Logger.SetLevel(logrus.InfoLevel)
	}

	if format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}
}

// TickLogger returns an entry pre-tagged with the tick name. Tick bodies
// use it so every log line from a tick run is attributable.
func TickLogger(tick string) *logrus.Entry {
	return Logger.WithField("tick", tick)
}

// DocLogger returns an entry pre-tagged with a document id.
func DocLogger(tick, docID string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{"tick": tick, "doc": docID})
}
