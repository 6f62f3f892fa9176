package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/taintflow/internal/config"
)

func testLoggerConfig() config.LoggerConfig {
	return config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "taintflow-test",
		Colors: config.ColorConfig{
			Debug: "cyan", Info: "green", Warn: "yellow", Error: "red", Fatal: "magenta",
		},
	}
}

func TestInitializeWritesToConsole(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(testLoggerConfig(), zapcore.AddSync(&buf))

	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Info("Engine started.")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "Engine started.")
	assert.Contains(t, out, "taintflow-test")
	assert.Contains(t, out, "INFO")
}

func TestInitializeHappensOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second bytes.Buffer
	Initialize(testLoggerConfig(), zapcore.AddSync(&first))
	Initialize(testLoggerConfig(), zapcore.AddSync(&second))

	logger := GetLogger()
	logger.Info("Only once.")
	require.NoError(t, logger.Sync())

	assert.Contains(t, first.String(), "Only once.")
	assert.Empty(t, second.String(), "the second initialization must be ignored")
}

func TestJSONFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testLoggerConfig()
	cfg.Format = "json"

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))

	GetLogger().Info("Structured entry.")
	require.NoError(t, GetLogger().Sync())

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(line, "{"), "json format should emit objects, got %q", line)
	assert.Contains(t, line, `"msg":"Structured entry."`)
}

func TestLevelFiltering(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testLoggerConfig()
	cfg.Level = "warn"

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))

	logger := GetLogger()
	logger.Debug("Hidden.")
	logger.Info("Also hidden.")
	logger.Warn("Visible.")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "Hidden.")
	assert.Contains(t, out, "Visible.")
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger, "an uninitialized logger must still be usable")
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := testLoggerConfig()
	cfg.Level = "not-a-level"

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))

	logger := GetLogger()
	logger.Debug("Filtered at info.")
	logger.Info("Kept at info.")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "Filtered at info.")
	assert.Contains(t, out, "Kept at info.")
}
