package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
	})
	return &buf
}

func TestLevelGating(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(WARN)

	Info("should be dropped")
	assert.Empty(t, buf.String())

	Warn("should be written")
	assert.Contains(t, buf.String(), "should be written")
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestStructuredArgsDumpAsJSON(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(DEBUG)

	Debug("payload", map[string]int{"answer": 42})
	out := buf.String()
	assert.Contains(t, out, `"answer": 42`)
	assert.Contains(t, out, "payload")
}

func TestPrimitiveArgsRenderInline(t *testing.T) {
	buf := captureOutput(t)

	Info("values", "a", 7, 2.5, true)
	out := buf.String()
	assert.Contains(t, out, "values a 7 2.50 true")
}

func TestLevelFromMCPSeverity(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":     DEBUG,
		"info":      INFO,
		"notice":    INFO,
		"warning":   WARN,
		"error":     ERROR,
		"critical":  FATAL,
		"alert":     FATAL,
		"emergency": FATAL,
	}
	for severity, want := range cases {
		got, ok := LevelFromMCPSeverity(severity)
		require.True(t, ok, severity)
		assert.Equal(t, want, got, severity)
	}

	_, ok := LevelFromMCPSeverity("bogus")
	assert.False(t, ok)
}
