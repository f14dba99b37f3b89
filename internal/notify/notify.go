// Package notify delivers turn narration to the outside world.
package notify

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/tidewatch/battlecore/internal/queue"
	"github.com/tidewatch/battlecore/pkg/core"
)

// DefaultBufferSize is how many narration lines a Buffer keeps per session.
const DefaultBufferSize = 200

// Notifier receives narration and refresh requests from battle sessions.
type Notifier interface {
	Notify(sessionID string, messages []string) error
	RequestRefresh(snap core.Snapshot) error
}

// LogNotifier writes narration to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier logging through logger, or slog.Default when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(sessionID string, messages []string) error {
	for _, m := range messages {
		n.logger.Info(m, "session", sessionID)
	}
	return nil
}

func (n *LogNotifier) RequestRefresh(snap core.Snapshot) error {
	alive := 0
	for _, c := range snap.Combatants {
		if c.Alive {
			alive++
		}
	}
	n.logger.Info("Battle refresh",
		"session", snap.SessionID,
		"turn", snap.Turn,
		"phase", snap.Phase,
		"weather", snap.Weather,
		"alive", alive,
	)
	return nil
}

// Fanout forwards to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(sessionID string, messages []string) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(sessionID, messages); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) RequestRefresh(snap core.Snapshot) error {
	var errs []error
	for _, n := range f {
		if err := n.RequestRefresh(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Buffer keeps the most recent narration and the last refresh of each session
// for polling consumers.
type Buffer struct {
	mu      sync.Mutex
	size    int
	lines   map[string]*queue.Queue[string]
	refresh map[string]core.Snapshot
}

// NewBuffer creates a buffer keeping size lines per session.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffer{
		size:    size,
		lines:   make(map[string]*queue.Queue[string]),
		refresh: make(map[string]core.Snapshot),
	}
}

func (b *Buffer) Notify(sessionID string, messages []string) error {
	b.mu.Lock()
	q, ok := b.lines[sessionID]
	if !ok {
		q = queue.NewBounded[string](b.size)
		b.lines[sessionID] = q
	}
	b.mu.Unlock()
	q.Push(messages...)
	return nil
}

func (b *Buffer) RequestRefresh(snap core.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh[snap.SessionID] = snap
	return nil
}

// Drain returns and removes the buffered narration of a session.
func (b *Buffer) Drain(sessionID string) []string {
	b.mu.Lock()
	q, ok := b.lines[sessionID]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return q.Drain()
}

// LastRefresh returns the last snapshot pushed for a session.
func (b *Buffer) LastRefresh(sessionID string) (core.Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.refresh[sessionID]
	return s, ok
}

// Forget drops everything buffered for a session.
func (b *Buffer) Forget(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.lines, sessionID)
	delete(b.refresh, sessionID)
}
