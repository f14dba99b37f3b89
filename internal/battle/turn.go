package battle

import (
	"context"
	"fmt"
	"time"

	"github.com/tidewatch/battlecore/internal/clock"
	"github.com/tidewatch/battlecore/pkg/core"
)

// TurnHandler drives one combatant's turn. It submits actions through the Turn and
// returns when the turn is over; the scheduler closes the turn afterwards either way.
type TurnHandler interface {
	TakeTurn(ctx context.Context, t *Turn) error
}

// TurnHandlerFunc adapts a function to TurnHandler.
type TurnHandlerFunc func(ctx context.Context, t *Turn) error

func (f TurnHandlerFunc) TakeTurn(ctx context.Context, t *Turn) error {
	return f(ctx, t)
}

// TargetOption is one attack the acting combatant could make right now.
type TargetOption struct {
	TargetID  string
	WeaponID  string // empty for squadron strikes
	TargetPos core.Position
	Distance  float64
	InRange   bool
}

// Turn is the handle a TurnHandler acts through.
type Turn struct {
	SessionID   string
	CombatantID string
	Round       int

	m    *Manager
	done <-chan struct{}
}

// Done is closed when the combatant has spent its actions or ended its turn.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

func (t *Turn) Move(to core.Position) (ActionResult, error) {
	return t.m.SubmitMove(t.SessionID, t.CombatantID, to)
}

func (t *Turn) Attack(targetID, weaponID string) (ActionResult, error) {
	return t.m.SubmitAttack(t.SessionID, t.CombatantID, targetID, weaponID)
}

func (t *Turn) End() error {
	return t.m.EndTurn(t.SessionID, t.CombatantID)
}

// Self returns the acting combatant's current state.
func (t *Turn) Self() (core.CombatantView, error) {
	return t.m.view(t.SessionID, t.CombatantID)
}

// Targets lists the attacks available to the acting combatant, nearest first.
func (t *Turn) Targets() ([]TargetOption, error) {
	return t.m.targets(t.SessionID, t.CombatantID)
}

// AwaitInput waits for a player to submit actions through SubmitMove, SubmitAttack
// and EndTurn. An idle player forfeits the rest of the turn after Timeout.
type AwaitInput struct {
	Clock   clock.Clock
	Timeout time.Duration
	// Announce is told whose turn it is; nil skips the announcement.
	Announce func(sessionID string, messages []string)
}

func (a *AwaitInput) TakeTurn(ctx context.Context, t *Turn) error {
	if a.Announce != nil {
		a.Announce(t.SessionID, []string{fmt.Sprintf("It is %s's turn.", t.CombatantID)})
	}

	var timeout <-chan time.Time
	if a.Timeout > 0 {
		c := a.Clock
		if c == nil {
			c = clock.Real()
		}
		timeout = c.After(a.Timeout)
	}

	select {
	case <-t.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		if a.Announce != nil {
			a.Announce(t.SessionID, []string{fmt.Sprintf("%s's turn timed out.", t.CombatantID)})
		}
		return nil
	}
}
