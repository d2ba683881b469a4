package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := ParseLevel("chatty")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, got)
}

func TestInitWriterEmitsJSON(t *testing.T) {
	prev := L
	defer func() {
		L = prev
		slog.SetDefault(prev)
	}()

	var buf bytes.Buffer
	InitWriter(&buf, "warn")
	L.Info("dropped")
	L.Warn("kept", "symbol", "AAA")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "AAA", rec["symbol"])
}
