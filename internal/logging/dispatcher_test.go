package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewatch/battlecore/internal/dispatcher"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*DispatcherLogger)
	}{
		{"debug", func(l *DispatcherLogger) { l.Debug("event queued", "command", "MOVE") }},
		{"info", func(l *DispatcherLogger) { l.Info("event queued", "command", "MOVE") }},
		{"error", func(l *DispatcherLogger) { l.Error("event queued", "command", "MOVE") }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewDispatcherLogger(zerolog.New(&buf)))

			entry := lastEntry(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "event queued", entry["message"])
			assert.Equal(t, "MOVE", entry["command"])
			assert.Equal(t, "dispatcher", entry["component"])
		})
	}
}

func TestDispatcherLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestDispatcherLogger_FieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := NewDispatcherLogger(zerolog.New(&buf))

	l.Error("handler failed", "error", errors.New("session expired"), "turn", 4, 7, "odd key", "dangling")

	entry := lastEntry(t, &buf)
	assert.Equal(t, "session expired", entry["error"])
	assert.EqualValues(t, 4, entry["turn"])
	assert.Equal(t, "odd key", entry["7"])
	assert.Equal(t, "dangling", entry["!BADKEY"])
}

func TestDispatcherLogger_NoFields(t *testing.T) {
	var buf bytes.Buffer
	NewDispatcherLogger(zerolog.New(&buf)).Info("dispatcher closed")

	entry := lastEntry(t, &buf)
	assert.Equal(t, "dispatcher closed", entry["message"])
	assert.Len(t, entry, 3)
}
