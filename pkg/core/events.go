// pkg/core/events.go
package core

import "time"

// EventType classifies a recorded battle event.
type EventType string

const (
	EventBattleStarted EventType = "battle_started"
	EventAttack        EventType = "attack"
	EventAADefense     EventType = "aa_defense"
	EventDestroyed     EventType = "destroyed"
	EventStatusExpired EventType = "status_expired"
	EventLanding       EventType = "landing"
	EventMove          EventType = "move"
	EventReinforcement EventType = "reinforcement"
	EventQRFPaused     EventType = "qrf_paused"
	EventQRFResumed    EventType = "qrf_resumed"
	EventBattleEnded   EventType = "battle_ended"
)

// BattleEvent describes one change the engine made to a session.
type BattleEvent struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	Turn      int            `json:"turn"`
	Time      time.Time      `json:"time"`
	Type      EventType      `json:"type"`
	ActorID   string         `json:"actorId,omitempty"`
	TargetID  string         `json:"targetId,omitempty"`
	Damage    int            `json:"damage,omitempty"`
	Message   string         `json:"message,omitempty"`
	Pos       *Position      `json:"pos,omitempty"` // set on move events
	ExtraData map[string]any `json:"extraData,omitempty"`
}

// BattleRecord summarizes a battle from start to settlement.
type BattleRecord struct {
	SessionID          string    `json:"sessionId"`
	Objective          string    `json:"objective"`
	StartedAt          time.Time `json:"startedAt"`
	EndedAt            time.Time `json:"endedAt,omitzero"`
	Turns              int       `json:"turns"`
	Outcome            string    `json:"outcome,omitempty"`
	Winner             Side      `json:"winner,omitempty"`
	ObjectiveCompleted bool      `json:"objectiveCompleted"`
	Participants       []string  `json:"participants"`
	Rewards            []Reward  `json:"rewards,omitempty"`
}

// Reward is the experience and currency granted to one player at settlement.
type Reward struct {
	PlayerID string `json:"playerId"`
	XP       int    `json:"xp"`
	Currency int    `json:"currency"`
}
