// pkg/core/snapshot.go
package core

import "time"

// Phase is the battle session state.
type Phase string

const (
	PhaseSetup     Phase = "setup"
	PhaseBattle    Phase = "battle"
	PhasePausedQRF Phase = "paused_qrf"
	PhaseEnded     Phase = "ended"
)

// CombatantView is a read-only copy of a combatant for external consumers.
type CombatantView struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Kind       Kind               `json:"kind"`
	Class      string             `json:"class,omitempty"`
	Side       Side               `json:"side"`
	Controller Controller         `json:"controller"`
	PlayerID   string             `json:"playerId,omitempty"`
	Pos        Position           `json:"pos"`
	Speed      float64            `json:"speed,omitempty"`
	HP         int                `json:"hp"`
	MaxHP      int                `json:"maxHp"`
	Alive      bool               `json:"alive"`
	Effects    map[StatusKind]int `json:"effects,omitempty"`

	Mission     Mission `json:"mission,omitempty"`
	Count       int     `json:"count,omitempty"`
	Fuel        int     `json:"fuel,omitempty"`
	Ammo        int     `json:"ammo,omitempty"`
	HangarSpace int     `json:"hangarSpace,omitempty"`
}

// Snapshot is a point-in-time copy of a battle session.
type Snapshot struct {
	SessionID       string          `json:"sessionId"`
	Phase           Phase           `json:"phase"`
	Turn            int             `json:"turn"`
	Weather         string          `json:"weather"`
	Objective       string          `json:"objective"`
	TurnOrder       []string        `json:"turnOrder"`
	Current         string          `json:"current,omitempty"`
	QRFWaitingSince *time.Time      `json:"qrfWaitingSince,omitempty"`
	Combatants      []CombatantView `json:"combatants"`
	TakenAt         time.Time       `json:"takenAt"`
}

// ViewOf copies the externally visible state of c.
func ViewOf(c Combatant) CombatantView {
	u := c.Base()
	v := CombatantView{
		ID:         u.ID,
		Name:       u.Name,
		Kind:       c.Kind(),
		Side:       u.Side,
		Controller: u.Controller,
		PlayerID:   u.PlayerID,
		Pos:        u.Pos,
		Speed:      u.Speed,
		HP:         u.HP,
		MaxHP:      u.MaxHP,
		Alive:      u.Alive(),
	}
	if len(u.Effects) > 0 {
		v.Effects = make(map[StatusKind]int, len(u.Effects))
		for k, e := range u.Effects {
			v.Effects[k] = e.Remaining
		}
	}
	switch t := c.(type) {
	case *Ship:
		v.Class = string(t.Class)
		v.HangarSpace = t.HangarSpace
	case *Installation:
		v.Class = string(t.Class)
	case *AircraftSquadron:
		v.Class = string(t.Type)
		v.Mission = t.Mission
		v.Count = t.Count
		v.Fuel = t.Fuel
		v.Ammo = t.Ammo
	}
	return v
}
