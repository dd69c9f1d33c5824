package testutils

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestLoggerSetup holds the test logger and buffer for log capture
type TestLoggerSetup struct {
	Logger *zap.SugaredLogger
	Buffer *bytes.Buffer
	t      *testing.T
}

// NewTestLogger creates a logger that writes to a buffer for testing
func NewTestLogger(t *testing.T) *TestLoggerSetup {
	buffer := &bytes.Buffer{}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.TimeKey = "timestamp"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig), // JSON for easier parsing in tests
		zapcore.AddSync(buffer),
		zapcore.DebugLevel,
	)

	logger := zap.New(core).Sugar()

	return &TestLoggerSetup{
		Logger: logger,
		Buffer: buffer,
		t:      t,
	}
}

// GetLogOutput returns the current log output as a string
func (tls *TestLoggerSetup) GetLogOutput() string {
	return tls.Buffer.String()
}

// ClearBuffer clears the log buffer
func (tls *TestLoggerSetup) ClearBuffer() {
	tls.Buffer.Reset()
}

// AssertLogContains checks if the log output contains the expected message
func (tls *TestLoggerSetup) AssertLogContains(expectedMessage string) {
	tls.t.Helper()
	output := tls.GetLogOutput()
	if !strings.Contains(output, expectedMessage) {
		tls.t.Errorf("Expected log to contain '%s', but got:\n%s", expectedMessage, output)
	}
}

// GetLogEntries parses the log output and returns individual log entries
func (tls *TestLoggerSetup) GetLogEntries() []map[string]interface{} {
	output := tls.GetLogOutput()
	lines := strings.Split(strings.TrimSpace(output), "\n")

	var entries []map[string]interface{}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			tls.t.Logf("Failed to parse log line: %s, error: %v", line, err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries
}
