package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCtx(t *testing.T) {
	parent := AppendCtx(context.Background(), slog.String("session_id", "abc"))
	child := AppendCtx(parent, slog.Int("multiplier", 2))

	attrs, ok := child.Value(slogFields).([]slog.Attr)
	require.True(t, ok)
	require.Len(t, attrs, 2)
	assert.Equal(t, "session_id", attrs[0].Key)
	assert.Equal(t, "multiplier", attrs[1].Key)

	// The parent is unaffected
	attrs, ok = parent.Value(slogFields).([]slog.Attr)
	require.True(t, ok)
	assert.Len(t, attrs, 1)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_ADD_SOURCE", "")

	var buf bytes.Buffer
	logger := NewLogger(&buf, false)

	ctx := AppendCtx(context.Background(), slog.String("session_id", "abc"))
	logger.InfoContext(ctx, "hidden")
	logger.WarnContext(ctx, "shown", "multiplier", 2)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "abc", record["session_id"])
	assert.EqualValues(t, 2, record["multiplier"])
}

func TestNewLogger_DebugOverridesLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	var buf bytes.Buffer
	NewLogger(&buf, true).With("component", "test").Debug("visible")
	assert.Contains(t, buf.String(), `"msg":"visible"`)
	assert.Contains(t, buf.String(), `"component":"test"`)
}
