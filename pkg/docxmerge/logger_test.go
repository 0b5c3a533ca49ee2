package docxmerge

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LogWarn)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown warn")
	logger.Error("shown error")

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "[WARN] shown warn")
	assert.Contains(t, output, "[ERROR] shown error")
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LogDebug)

	logger.WithField("expr", "orders|take:2").Debug("evaluating")
	assert.Contains(t, buf.String(), "expr=orders|take:2")

	buf.Reset()
	logger.WithFields(Fields{"a": 1}).WithField("b", 2).Info("multi")
	output := buf.String()
	assert.Contains(t, output, "a=1")
	assert.Contains(t, output, "b=2")
}

func TestLoggerNilWriter(t *testing.T) {
	logger := NewLogger(nil, LogInfo)
	// must not panic
	logger.Info("into the void")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogDebug, parseLogLevel("debug"))
	assert.Equal(t, LogOff, parseLogLevel("off"))
	assert.Equal(t, LogInfo, parseLogLevel("unknown"))
}

func TestLoggerIsDebugMode(t *testing.T) {
	logger := NewLogger(nil, LogInfo)
	assert.False(t, logger.IsDebugMode())
	logger.SetLevel(LogDebug)
	assert.True(t, logger.IsDebugMode())
}
