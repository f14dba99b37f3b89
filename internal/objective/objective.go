// Package objective evaluates battle termination: objective completion and side elimination.
package objective

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidewatch/battlecore/pkg/core"
)

// State is the read-only view of a session the evaluator needs.
type State interface {
	Turn() int
	Combatants() []core.Combatant
}

// Objective is the win condition of a battle.
type Objective interface {
	Name() string
	IsComplete(s State) bool
}

// Starter is implemented by objectives that need to observe the battle start.
type Starter interface {
	OnStart(s State)
}

// DestroyAll is complete once every enemy combatant is destroyed.
type DestroyAll struct{}

func (DestroyAll) Name() string { return "destroy_all" }

func (DestroyAll) IsComplete(s State) bool {
	return !anyAlive(s.Combatants(), func(u *core.Unit) bool { return u.Side == core.SideEnemy })
}

// SurviveTurns is complete once the player side has lasted the given number of turns.
type SurviveTurns struct {
	Turns int
}

func (o SurviveTurns) Name() string { return fmt.Sprintf("survive:%d", o.Turns) }

func (o SurviveTurns) IsComplete(s State) bool {
	return s.Turn() >= o.Turns && anyAlive(s.Combatants(), isPlayerControlled)
}

// DestroyTarget is complete once the named combatant is destroyed.
type DestroyTarget struct {
	TargetID string

	present bool
}

func (o *DestroyTarget) Name() string { return "destroy:" + o.TargetID }

// OnStart records whether the target took part in the battle at all.
func (o *DestroyTarget) OnStart(s State) {
	for _, c := range s.Combatants() {
		if c.Base().ID == o.TargetID {
			o.present = true
			return
		}
	}
}

func (o *DestroyTarget) IsComplete(s State) bool {
	for _, c := range s.Combatants() {
		if c.Base().ID == o.TargetID {
			return !c.Base().Alive()
		}
	}
	return false
}

// Present reports whether the target was registered when the battle started.
func (o *DestroyTarget) Present() bool {
	return o.present
}

var ErrUnknownObjective = errors.New("unknown objective")

// Parse builds an objective from its textual form: "destroy_all", "survive:<turns>" or
// "destroy:<combatant id>". An empty string means destroy_all.
func Parse(s string) (Objective, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(s), ":")
	switch name {
	case "", "destroy_all":
		return DestroyAll{}, nil
	case "survive":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: survive needs a positive turn count, got %q", ErrUnknownObjective, arg)
		}
		return SurviveTurns{Turns: n}, nil
	case "destroy":
		if arg == "" {
			return nil, fmt.Errorf("%w: destroy needs a target id", ErrUnknownObjective)
		}
		return &DestroyTarget{TargetID: arg}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownObjective, s)
}

func isPlayerControlled(u *core.Unit) bool {
	return u.Controller == core.ControllerPlayer
}

func anyAlive(cs []core.Combatant, match func(*core.Unit) bool) bool {
	for _, c := range cs {
		u := c.Base()
		if u.Alive() && match(u) {
			return true
		}
	}
	return false
}

// PlayersAlive reports whether any player-controlled combatant is alive.
func PlayersAlive(s State) bool {
	return anyAlive(s.Combatants(), isPlayerControlled)
}
