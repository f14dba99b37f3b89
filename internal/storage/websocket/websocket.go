package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tidewatch/battlecore/pkg/core"
	"github.com/tidewatch/battlecore/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
	Logger *slog.Logger
}

// Backend streams battle data over WebSocket to the dashboard.
// It implements storage.Backend and notify.Notifier but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

func (b *Backend) sendAndWait(data []byte, msgType, sessionID string) error {
	return b.conn.sendAndWait(data, ackKey{For: msgType, Session: sessionID}, ackTimeout)
}

// StartBattle sends the battle record and waits for server ack.
func (b *Backend) StartBattle(rec *core.BattleRecord) error {
	data, err := marshalEnvelope(streaming.TypeStartBattle, streaming.BattlePayload{Record: *rec})
	if err != nil {
		return err
	}

	b.conn.markRunning(rec.SessionID, data)
	return b.sendAndWait(data, streaming.TypeStartBattle, rec.SessionID)
}

// EndBattle sends the settled record and waits for server ack.
func (b *Backend) EndBattle(rec *core.BattleRecord) error {
	data, err := marshalEnvelope(streaming.TypeEndBattle, streaming.BattlePayload{Record: *rec})

	b.conn.markEnded(rec.SessionID)
	if err != nil {
		return err
	}
	return b.sendAndWait(data, streaming.TypeEndBattle, rec.SessionID)
}

func (b *Backend) RecordEvent(e *core.BattleEvent) error {
	return b.sendEnvelope(streaming.TypeBattleEvent, streaming.EventPayload{Event: *e})
}

// Notify streams turn narration for a session.
func (b *Backend) Notify(sessionID string, messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return b.sendEnvelope(streaming.TypeNarration, streaming.NarrationPayload{SessionID: sessionID, Messages: messages})
}

// RequestRefresh sends the session's current state for a full redraw.
func (b *Backend) RequestRefresh(snap core.Snapshot) error {
	return b.sendEnvelope(streaming.TypeRefresh, streaming.RefreshPayload{Snapshot: snap})
}
