package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tidewatch/battlecore/internal/battle"
	"github.com/tidewatch/battlecore/internal/dispatcher"
	"github.com/tidewatch/battlecore/internal/parser"
)

// maxLineSize bounds a single command line; combatant payloads carry JSON.
const maxLineSize = 1 << 20

// request is one line read from the command stream.
type request struct {
	ID      string   `json:"id"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// response is written once per request, in completion order.
type response struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// errorCode maps the manager's error taxonomy onto the codes clients switch on.
func errorCode(err error) string {
	switch {
	case errors.Is(err, battle.ErrValidation), errors.Is(err, parser.ErrMissingArgs):
		return "validation"
	case errors.Is(err, battle.ErrPrecondition):
		return "precondition"
	case errors.Is(err, battle.ErrSessionExpired):
		return "expired"
	case errors.Is(err, battle.ErrInternal):
		return "internal"
	default:
		return "error"
	}
}

// server reads JSON-line commands and answers each one on its own goroutine, so a
// round waiting for player input never blocks the commands that feed it.
type server struct {
	d      *dispatcher.Dispatcher
	logger *slog.Logger

	outMu sync.Mutex
	enc   *json.Encoder
	wg    sync.WaitGroup
}

func newServer(d *dispatcher.Dispatcher, w io.Writer, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{d: d, logger: logger, enc: json.NewEncoder(w)}
}

// serve runs until r is exhausted or ctx is cancelled, then waits for in-flight
// commands to answer.
func (s *server) serve(ctx context.Context, r io.Reader) error {
	defer s.wg.Wait()

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if len(line) == 0 {
				continue
			}
			var req request
			if err := json.Unmarshal(line, &req); err != nil {
				s.logger.Warn("Dropping malformed command", "error", err)
				s.write(response{Error: "malformed command: " + err.Error(), Code: "validation"})
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handle(req)
			}()
		}
	}
}

func (s *server) handle(req request) {
	res, err := s.d.Dispatch(dispatcher.Event{
		Command:   req.Command,
		Args:      req.Args,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.logger.Debug("Command failed", "id", req.ID, "command", req.Command, "error", err)
		s.write(response{ID: req.ID, Error: err.Error(), Code: errorCode(err)})
		return
	}
	s.write(response{ID: req.ID, OK: true, Result: res})
}

func (s *server) write(r response) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if err := s.enc.Encode(r); err != nil {
		s.logger.Error("Failed to write response", "id", r.ID, "error", err)
	}
}
