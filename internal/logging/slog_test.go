package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

var (
	errFileSink   = errors.New("file sink closed")
	errGraylogUDP = errors.New("graylog unreachable")
)

// failingSink accepts every level and fails every record with err.
type failingSink struct {
	slog.Handler
	err error
}

func (h failingSink) Enabled(context.Context, slog.Level) bool { return true }

func (h failingSink) Handle(context.Context, slog.Record) error { return h.err }

func TestMultiHandler_JoinsSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, nil)
	multi := NewMultiHandler(failingSink{err: errFileSink}, nil, text, failingSink{err: errGraylogUDP})

	err := multi.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "round resolved", 0))

	require.Error(t, err)
	assert.ErrorIs(t, err, errFileSink)
	assert.ErrorIs(t, err, errGraylogUDP)
	assert.Contains(t, buf.String(), "round resolved")
}

func TestMultiHandler_SkipsDisabledSinks(t *testing.T) {
	var info, errOnly bytes.Buffer
	multi := NewMultiHandler(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&errOnly, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	assert.False(t, multi.Enabled(context.Background(), slog.LevelDebug))

	logger := slog.New(multi.WithGroup("").WithAttrs([]slog.Attr{slog.String("component", "worker")}))
	logger.Info("queued")
	logger.Error("dropped")

	assert.Contains(t, info.String(), "component=worker")
	assert.NotContains(t, errOnly.String(), "queued")
	assert.Contains(t, errOnly.String(), "dropped")
}

func TestWriteSessionLog_AddsSession(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)

	m.WriteSessionLog("s-42", "settle", "Session ended", "INFO")
	m.WriteLog("settle", "no session here", "INFO")
	m.WriteSessionLog("s-42", "settle", "hidden", "DEBUG")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "session=s-42")
	assert.Contains(t, lines[1], "function=settle")
	assert.NotContains(t, lines[2], "session=")
}

func TestWriteLog_BeforeSetupIsDropped(t *testing.T) {
	m := NewSlogManager()
	assert.NotPanics(t, func() { m.WriteSessionLog("s1", "begin", "early", "ERROR") })
	assert.Equal(t, slog.Default(), m.Logger())
}

func TestSetup_ContextProviderEvaluatedPerRecord(t *testing.T) {
	var buf bytes.Buffer
	active := 1
	m := NewSlogManager()
	m.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{slog.Int("activeSessions", active)}
	})
	m.Setup(&buf, "info", nil)

	active = 3
	m.WriteLog("monitor", "sampled", "INFO")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "activeSessions=1")
	assert.Contains(t, lines[1], "activeSessions=3")
}

func TestSetup_Sinks(t *testing.T) {
	var console bytes.Buffer
	orig := osStdout
	osStdout = &console
	t.Cleanup(func() { osStdout = orig })

	var extra bytes.Buffer
	m := NewSlogManager()
	m.Setup(nil, "info", sdklog.NewLoggerProvider(), slog.NewJSONHandler(&extra, handlerOptions("warn")))

	m.Logger().Info("only on console")
	m.Logger().Warn("everywhere")

	assert.Contains(t, console.String(), "only on console")
	assert.Contains(t, console.String(), "everywhere")
	assert.NotContains(t, extra.String(), "only on console")
	assert.Contains(t, extra.String(), `"msg":"everywhere"`)
	assert.NoError(t, m.Flush(context.Background()))
}

func TestContextHandler_SessionAndProvider(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewJSONHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.Int("activeSessions", 2)}
	})
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "battle")}))

	logger.InfoContext(WithSession(context.Background(), "s1"), "turn advanced")

	out := buf.String()
	assert.Contains(t, out, `"session":"s1"`)
	assert.Contains(t, out, `"activeSessions":2`)
	assert.Contains(t, out, `"component":"battle"`)
}

func TestSessionFrom(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		wantID string
		wantOK bool
	}{
		{name: "untagged", ctx: context.Background()},
		{name: "empty id", ctx: WithSession(context.Background(), "")},
		{name: "tagged", ctx: WithSession(context.Background(), "s9"), wantID: "s9", wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := SessionFrom(tt.ctx)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
