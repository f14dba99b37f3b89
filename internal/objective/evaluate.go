package objective

import "github.com/tidewatch/battlecore/pkg/core"

// Reason is why a battle ended.
type Reason string

const (
	ReasonSideEliminated    Reason = "side_eliminated"
	ReasonObjectiveComplete Reason = "objective_complete"
	ReasonQRFTimeout        Reason = "qrf_timeout"
	ReasonAborted           Reason = "aborted"
)

// Outcome is the evaluator verdict. A zero Outcome means the battle continues.
type Outcome struct {
	Ended              bool
	Winner             core.Side
	Reason             Reason
	ObjectiveCompleted bool
}

// Evaluate checks side elimination first, then the objective. ObjectiveCompleted is
// reported either way so an elimination that also fulfils the objective earns the bonus.
// Losing every player combatant is not terminal here; the scheduler handles it through
// the QRF wait.
func Evaluate(s State, obj Objective) Outcome {
	completed := obj != nil && obj.IsComplete(s)
	if !anyAlive(s.Combatants(), func(u *core.Unit) bool { return u.Side == core.SideEnemy }) {
		return Outcome{
			Ended:              true,
			Winner:             core.SidePlayer,
			Reason:             ReasonSideEliminated,
			ObjectiveCompleted: completed,
		}
	}
	if completed {
		return Outcome{
			Ended:              true,
			Winner:             core.SidePlayer,
			Reason:             ReasonObjectiveComplete,
			ObjectiveCompleted: true,
		}
	}
	return Outcome{}
}

// Timeout is the mission failure recorded when no reinforcement arrives in time.
func Timeout() Outcome {
	return Outcome{Ended: true, Winner: core.SideEnemy, Reason: ReasonQRFTimeout}
}

// Aborted is the outcome of an externally cancelled battle.
func Aborted() Outcome {
	return Outcome{Ended: true, Reason: ReasonAborted}
}
