package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"DEBUG", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"invalid", "INFO"},
		{"  info  ", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input).String())
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)

	log.Debug("debug msg")
	log.Info("info msg")
	log.Warn("module failed", "module", "fft_spectrum")
	log.Error("error msg")

	out := buf.String()
	assert.NotContains(t, out, "debug msg")
	assert.NotContains(t, out, "info msg")
	assert.Contains(t, out, "module failed")
	assert.Contains(t, out, "fft_spectrum")
	assert.Contains(t, out, "error msg")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Level: "info", Format: "JSON", Writer: &buf})

	log.Info("analysis complete", "verdict", "ai", "ai_score", 82)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "analysis complete", entry["msg"])
	assert.Equal(t, "ai", entry["verdict"])
	assert.EqualValues(t, 82, entry["ai_score"])
}

func TestWithContext(t *testing.T) {
	t.Run("adds request id", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter("info", &buf)
		ctx := context.WithValue(context.Background(), ContextKeyRequestID, "req-12345")

		log.WithContext(ctx).Info("context log message")

		assert.Contains(t, buf.String(), "req-12345")
		assert.Equal(t, "req-12345", RequestID(ctx))
	})

	t.Run("no request id", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter("info", &buf)

		log.WithContext(context.Background()).Info("message without request id")

		assert.Contains(t, buf.String(), "message without request id")
		assert.NotContains(t, buf.String(), "request_id")
		assert.Empty(t, RequestID(context.Background()))
	})
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.With("frame", 3, "file", "clip.mp4").Info("frame skipped")

	out := buf.String()
	assert.True(t, strings.Contains(out, "frame=3"), out)
	assert.Contains(t, out, "clip.mp4")
}

func TestNopLogger(t *testing.T) {
	log := NopLogger()
	require.NotNil(t, log)
	log.Error("discarded")
}
