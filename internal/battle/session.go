package battle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidewatch/battlecore/internal/combat"
	"github.com/tidewatch/battlecore/internal/objective"
	"github.com/tidewatch/battlecore/pkg/core"
)

// session is one battle. Every field below mu is guarded by it; the turn loop and the
// submit entry points are the only writers.
type session struct {
	id string

	// running is the reentrancy guard for the turn loop and AdvanceTurn.
	running atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}

	mu              sync.Mutex
	phase           core.Phase
	turn            int
	order           []string
	cursor          int  // next index into order
	roundOpen       bool // order is being worked through
	roundStarted    time.Time
	window          *turnWindow
	qrfWaitingSince *time.Time
	lastReminder    time.Time
	objective       objective.Objective
	weather         combat.Weather
	pendingWeather  combat.Weather
	combatants      map[string]core.Combatant
	ids             []string // registry order
	setupComplete   bool
	startedAt       time.Time
	roundDamage     int
	outcome         objective.Outcome
	record          core.BattleRecord
}

func newSession(id string, obj objective.Objective) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:         id,
		ctx:        ctx,
		cancel:     cancel,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		phase:      core.PhaseSetup,
		objective:  obj,
		weather:    combat.WeatherClear,
		combatants: make(map[string]core.Combatant),
	}
}

// Turn implements objective.State. Callers hold mu.
func (s *session) Turn() int {
	return s.turn
}

// Combatants implements objective.State in registry order. Callers hold mu.
func (s *session) Combatants() []core.Combatant {
	out := make([]core.Combatant, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.combatants[id])
	}
	return out
}

func (s *session) add(c core.Combatant) {
	id := c.Base().ID
	s.combatants[id] = c
	s.ids = append(s.ids, id)
}

func (s *session) squadrons() []*core.AircraftSquadron {
	var out []*core.AircraftSquadron
	for _, id := range s.ids {
		if sq, ok := s.combatants[id].(*core.AircraftSquadron); ok {
			out = append(out, sq)
		}
	}
	return out
}

func (s *session) carrier(id string) *core.Ship {
	ship, _ := s.combatants[id].(*core.Ship)
	return ship
}

func (s *session) notifyWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) ended() bool {
	return s.phase == core.PhaseEnded
}

// canAct reports whether a combatant takes a turn this round. Landed squadrons sit
// in the hangar until launched.
func canAct(c core.Combatant) bool {
	if !c.Base().Alive() {
		return false
	}
	if sq, ok := c.(*core.AircraftSquadron); ok {
		return sq.Airborne()
	}
	return true
}

// actors returns the combatants of a controller able to act, in registry order.
func (s *session) actors(ctrl core.Controller) []string {
	var out []string
	for _, id := range s.ids {
		c := s.combatants[id]
		if c.Base().Controller == ctrl && canAct(c) {
			out = append(out, id)
		}
	}
	return out
}

func (s *session) aliveCount(side core.Side) int {
	n := 0
	for _, c := range s.combatants {
		if c.Base().Side == side && c.Base().Alive() {
			n++
		}
	}
	return n
}

// snapshot copies the session state. Callers hold mu.
func (s *session) snapshot(now time.Time) core.Snapshot {
	snap := core.Snapshot{
		SessionID:  s.id,
		Phase:      s.phase,
		Turn:       s.turn,
		Weather:    string(s.weather),
		TurnOrder:  append([]string(nil), s.order...),
		Combatants: make([]core.CombatantView, 0, len(s.ids)),
		TakenAt:    now,
	}
	if s.objective != nil {
		snap.Objective = s.objective.Name()
	}
	if s.window != nil {
		snap.Current = s.window.combatantID
	}
	if s.qrfWaitingSince != nil {
		since := *s.qrfWaitingSince
		snap.QRFWaitingSince = &since
	}
	for _, id := range s.ids {
		snap.Combatants = append(snap.Combatants, core.ViewOf(s.combatants[id]))
	}
	return snap
}

// participants lists the players owning a player-side combatant, in registry order.
func (s *session) participants() []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range s.ids {
		u := s.combatants[id].Base()
		if u.Side != core.SidePlayer || u.PlayerID == "" || seen[u.PlayerID] {
			continue
		}
		seen[u.PlayerID] = true
		out = append(out, u.PlayerID)
	}
	return out
}

// turnWindow is the open action window of the combatant whose turn it is.
// One move and one attack are allowed; the window closes when both are spent or
// the turn is ended.
type turnWindow struct {
	combatantID string
	moved       bool
	attacked    bool
	done        chan struct{}
	closed      bool
}

func newTurnWindow(id string) *turnWindow {
	return &turnWindow{combatantID: id, done: make(chan struct{})}
}

func (w *turnWindow) close() {
	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
}

func (w *turnWindow) spent() bool {
	return w.moved && w.attacked
}
