package parser

import "github.com/tidewatch/battlecore/pkg/core"

// SessionRequest opens a new session.
type SessionRequest struct {
	SessionID string
	Objective string
	Weather   string
}

// StartRequest asks to move a session from setup to battle.
type StartRequest struct {
	SessionID   string
	RequesterID string
}

// CombatantRequest adds a combatant during setup or as a reinforcement.
type CombatantRequest struct {
	SessionID string
	Combatant core.Combatant
}

// ActorRequest addresses one combatant in a session.
type ActorRequest struct {
	SessionID   string
	CombatantID string
}

// PlaceRequest assigns a starting position during setup.
type PlaceRequest struct {
	SessionID   string
	CombatantID string
	Pos         core.Position
}

// MoveRequest is a movement order. Route holds the waypoints when the client sent a
// path rather than a single cell; To is always the final cell.
type MoveRequest struct {
	SessionID   string
	CombatantID string
	To          core.Position
	Route       []core.Position
}

// AttackRequest is an attack order. WeaponID is empty for squadrons.
type AttackRequest struct {
	SessionID  string
	AttackerID string
	TargetID   string
	WeaponID   string
}

// WeatherRequest changes a session's weather.
type WeatherRequest struct {
	SessionID string
	Weather   string
}

// AbortRequest ends a session without a winner.
type AbortRequest struct {
	SessionID string
	Reason    string
}
