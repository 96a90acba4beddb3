package common

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConfigureLogger(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  logrus.Level
	}{
		{name: "debug level", level: "debug", want: logrus.DebugLevel},
		{name: "warn level", level: "warn", want: logrus.WarnLevel},
		{name: "error level", level: "error", want: logrus.ErrorLevel},
		{name: "default falls back to info", level: "verbose", want: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ConfigureLogger(tt.level, "text")
			assert.Equal(t, tt.want, Logger.GetLevel())
		})
	}
}

func TestTickLoggerFields(t *testing.T) {
	entry := DocLogger("poll", "doc-1")
	assert.Equal(t, "poll", entry.Data["tick"])
	assert.Equal(t, "doc-1", entry.Data["doc"])
}
