package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewatch/battlecore/internal/battle"
	"github.com/tidewatch/battlecore/internal/dispatcher"
	"github.com/tidewatch/battlecore/internal/parser"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// syncBuffer is a strings.Builder safe for the concurrent response writers.
type syncBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func readResponses(t *testing.T, out string) map[string]response {
	t.Helper()
	got := map[string]response{}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var r response
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		got[r.ID] = r
	}
	return got
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&battle.ValidationError{Field: "weather", Reason: "bad"}, "validation"},
		{fmt.Errorf("failed to parse move: %w", parser.ErrMissingArgs), "validation"},
		{&battle.PreconditionError{SessionID: "s1", Reason: battle.BlockNoSession}, "precondition"},
		{&battle.SessionExpiredError{SessionID: "s1"}, "expired"},
		{&battle.InternalError{SessionID: "s1"}, "internal"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorCode(tt.err), tt.err.Error())
	}
}

func TestServe(t *testing.T) {
	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)

	release := make(chan struct{})
	d.Register(":ECHO:", func(e dispatcher.Event) (any, error) {
		return e.Args, nil
	})
	d.Register(":WAIT:", func(e dispatcher.Event) (any, error) {
		<-release
		return "released", nil
	})
	d.Register(":RELEASE:", func(e dispatcher.Event) (any, error) {
		close(release)
		return nil, nil
	})
	d.Register(":FAIL:", func(e dispatcher.Event) (any, error) {
		return nil, &battle.PreconditionError{SessionID: "s1", Reason: battle.BlockWrongPhase}
	})

	// :WAIT: blocks until a later line releases it
	in := strings.Join([]string{
		`{"id":"1","command":":WAIT:"}`,
		`{"id":"2","command":":ECHO:","args":["a","b"]}`,
		``,
		`{"id":"3","command":":FAIL:"}`,
		`not json`,
		`{"id":"4","command":":NOPE:"}`,
		`{"id":"5","command":":RELEASE:"}`,
	}, "\n")

	out := &syncBuffer{}
	srv := newServer(d, out, nil)
	require.NoError(t, srv.serve(context.Background(), strings.NewReader(in)))

	got := readResponses(t, out.String())
	assert.True(t, got["1"].OK)
	assert.Equal(t, "released", got["1"].Result)
	assert.Equal(t, []any{"a", "b"}, got["2"].Result)
	assert.False(t, got["3"].OK)
	assert.Equal(t, "precondition", got["3"].Code)
	assert.Equal(t, "error", got["4"].Code)
	assert.Contains(t, got["4"].Error, "unknown command")
	assert.True(t, got["5"].OK)

	// the malformed line answers without an id
	assert.Equal(t, "validation", got[""].Code)
}

func TestServe_StopsOnCancel(t *testing.T) {
	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := newServer(d, &syncBuffer{}, nil)
	err = srv.serve(ctx, blockingReader{})
	assert.ErrorIs(t, err, context.Canceled)
}

// blockingReader never returns data.
type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}
