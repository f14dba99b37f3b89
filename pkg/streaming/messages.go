package streaming

import (
	"encoding/json"

	"github.com/tidewatch/battlecore/pkg/core"
)

// Message type constants matching the dashboard stream protocol.
const (
	TypeStartBattle = "start_battle"
	TypeEndBattle   = "end_battle"
	TypeBattleEvent = "battle_event"
	TypeNarration   = "narration"
	TypeRefresh     = "refresh"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response. Session echoes the
// record's session id for start_battle and end_battle.
type AckMessage struct {
	Type    string `json:"type"` // always "ack"
	For     string `json:"for"`
	Session string `json:"session,omitempty"`
}

// NarrationPayload carries turn narration for one session.
type NarrationPayload struct {
	SessionID string   `json:"sessionId"`
	Messages  []string `json:"messages"`
}

// RefreshPayload asks the dashboard to redraw a session.
type RefreshPayload struct {
	Snapshot core.Snapshot `json:"snapshot"`
}

// BattlePayload carries the battle record on start and end.
type BattlePayload struct {
	Record core.BattleRecord `json:"record"`
}

// EventPayload carries one recorded battle event.
type EventPayload struct {
	Event core.BattleEvent `json:"event"`
}
