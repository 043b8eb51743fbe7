package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false, false)

	l.Debug("hidden")
	l.Info("link opened", "port", "/dev/ttyUSB0")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "link opened", rec["msg"])
	assert.Equal(t, "/dev/ttyUSB0", rec["port"])
	assert.Contains(t, rec, "ts")
}

func TestSlogLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false, false)
	assert.Equal(t, InfoLevel, l.Level())

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())

	l.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestSlogLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false, false).With("chip", "attiny10")

	l.Warn("handshake timeout")
	assert.Contains(t, buf.String(), `"chip":"attiny10"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"fatal", FatalLevel, false},
		{"verbose", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
