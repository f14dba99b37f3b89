package battle

import (
	"fmt"
	"slices"

	"github.com/tidewatch/battlecore/internal/aircraft"
	"github.com/tidewatch/battlecore/internal/combat"
	"github.com/tidewatch/battlecore/internal/geo"
	"github.com/tidewatch/battlecore/pkg/core"
)

// moveTolerance absorbs rounding in submitted coordinates.
const moveTolerance = 0.01

// ActionResult is the outcome of an accepted action.
type ActionResult struct {
	Messages  []string
	Hit       bool
	Damage    int
	Destroyed bool
	// TurnOver is set once the combatant has spent its move and its attack.
	TurnOver bool
}

// actor returns the combatant whose open turn window the caller acts in.
// Callers hold s.mu.
func (m *Manager) actor(s *session, combatantID string) (core.Combatant, *turnWindow, error) {
	switch s.phase {
	case core.PhaseEnded:
		return nil, nil, &SessionExpiredError{SessionID: s.id}
	case core.PhaseSetup, core.PhasePausedQRF:
		return nil, nil, &PreconditionError{SessionID: s.id, Reason: BlockWrongPhase, Detail: []string{string(s.phase)}}
	}
	c, ok := s.combatants[combatantID]
	if !ok || !c.Base().Alive() {
		return nil, nil, &SessionExpiredError{SessionID: s.id, EntityID: combatantID}
	}
	if s.window == nil || s.window.closed || s.window.combatantID != combatantID {
		return nil, nil, invalid("combatant", "it is not %s's turn", combatantID)
	}
	return c, s.window, nil
}

// spend closes the window once both actions are used. Callers hold s.mu.
func (m *Manager) spend(w *turnWindow) bool {
	if w.spent() {
		w.close()
		return true
	}
	return false
}

// SubmitMove moves the acting combatant. A combatant moves at most once per turn and
// no further than its speed.
func (m *Manager) SubmitMove(sessionID, combatantID string, to core.Position) (res ActionResult, err error) {
	defer m.guard(sessionID, "SubmitMove", &err)

	s, err := m.lookup(sessionID)
	if err != nil {
		return res, err
	}

	var ev core.BattleEvent
	err = func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		c, w, err := m.actor(s, combatantID)
		if err != nil {
			return err
		}
		u := c.Base()
		switch {
		case w.moved:
			return invalid("move", "%s has already moved this turn", u.Name)
		case c.Kind() == core.KindInstallation || u.Speed <= 0:
			return invalid("move", "%s cannot move", u.Name)
		case !geo.InBounds(to, m.cfg.MapWidth, m.cfg.MapHeight):
			return invalid("position", "(%g, %g) is off the map", to.X, to.Y)
		}
		if d := geo.Distance(u.Pos, to); d > u.Speed+moveTolerance {
			return invalid("move", "%s can move %g cells, %.2f requested", u.Name, u.Speed, d)
		}

		u.Pos = to
		w.moved = true
		msg := fmt.Sprintf("%s moves to (%g, %g).", u.Name, to.X, to.Y)
		ev = m.event(s, core.EventMove, u.ID, "", 0, msg)
		pos := to
		ev.Pos = &pos

		res.Messages = []string{msg}
		res.TurnOver = m.spend(w)
		m.publish(s)
		return nil
	}()
	if err != nil {
		return ActionResult{}, err
	}

	m.record(ev)
	m.notify(sessionID, res.Messages)
	return res, nil
}

// SubmitAttack fires one weapon, or flies one strike for squadrons, at an enemy.
// Strikes on ships face the ship's AA fire first.
func (m *Manager) SubmitAttack(sessionID, attackerID, targetID, weaponID string) (res ActionResult, err error) {
	defer m.guard(sessionID, "SubmitAttack", &err)

	s, err := m.lookup(sessionID)
	if err != nil {
		return res, err
	}

	var events []core.BattleEvent
	err = func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		c, w, err := m.actor(s, attackerID)
		if err != nil {
			return err
		}
		if w.attacked {
			return invalid("attack", "%s has already attacked this turn", c.Base().Name)
		}
		target, ok := s.combatants[targetID]
		switch {
		case !ok:
			return invalid("target", "unknown target %s", targetID)
		case !target.Base().Alive():
			return invalid("target", "%s is already destroyed", target.Base().Name)
		case target.Base().Side == c.Base().Side:
			return invalid("target", "%s is on the same side", target.Base().Name)
		}

		d := geo.Distance(c.Base().Pos, target.Base().Pos)
		if sq, ok := c.(*core.AircraftSquadron); ok {
			events, err = m.strike(s, sq, target, d, &res)
		} else {
			events, err = m.fire(s, c, target, weaponID, d, &res)
		}
		if err != nil {
			return err
		}

		w.attacked = true
		res.TurnOver = m.spend(w)
		m.publish(s)
		return nil
	}()
	if err != nil {
		return ActionResult{}, err
	}

	m.record(events...)
	m.notify(sessionID, res.Messages)
	return res, nil
}

// fire resolves a weapon attack. Callers hold s.mu.
func (m *Manager) fire(s *session, c, target core.Combatant, weaponID string, d float64, res *ActionResult) ([]core.BattleEvent, error) {
	u := c.Base()
	i := slices.IndexFunc(core.WeaponsOf(c), func(w *core.Weapon) bool { return w.ID == weaponID })
	if i < 0 {
		return nil, invalid("weapon", "%s has no weapon %q", u.Name, weaponID)
	}
	wpn := core.WeaponsOf(c)[i]
	switch {
	case wpn.Ammo <= 0:
		return nil, invalid("weapon", "%s is out of ammunition", wpn.Name)
	case wpn.Cooldown > 0:
		return nil, invalid("weapon", "%s is reloading for %d more rounds", wpn.Name, wpn.Cooldown)
	case !combat.InRange(d, wpn.Range):
		return nil, invalid("target", "%s is out of range of %s (%.1f > %.1f)", target.Base().Name, wpn.Name, d, wpn.Range)
	}

	r := m.resolver.ResolveAttack(c, target, wpn, d, s.weather)
	combat.ConsumeShot(wpn)
	return m.apply(s, c, target, r, res), nil
}

// strike resolves a squadron attack. Callers hold s.mu.
func (m *Manager) strike(s *session, sq *core.AircraftSquadron, target core.Combatant, d float64, res *ActionResult) ([]core.BattleEvent, error) {
	switch {
	case sq.Ammo <= 0:
		return nil, invalid("ammo", "%s is out of ammunition", sq.Name)
	case !aircraft.CanStrike(sq, target):
		return nil, invalid("target", "%s cannot attack %s", sq.Name, target.Base().Name)
	}
	wpn := aircraft.StrikeWeapon(sq, target)
	if !combat.InRange(d, wpn.Range) {
		return nil, invalid("target", "%s is out of range of %s (%.1f > %.1f)", target.Base().Name, sq.Name, d, wpn.Range)
	}

	var events []core.BattleEvent
	if ship, ok := target.(*core.Ship); ok {
		aa := m.resolver.ResolveAADefense(ship, []*core.AircraftSquadron{sq})
		res.Messages = append(res.Messages, aa.Messages...)
		if dmg := aa.PerAircraft[sq.ID]; dmg > 0 {
			sq.TakeDamage(dmg)
			events = append(events, m.event(s, core.EventAADefense, ship.ID, sq.ID, dmg,
				fmt.Sprintf("%s's AA fire hits %s for %d damage.", ship.Name, sq.Name, dmg)))
		}
		if !sq.Alive() {
			sq.Lose(core.MissionCrashed)
			msg := fmt.Sprintf("%s was shot down before reaching %s!", sq.Name, ship.Name)
			res.Messages = append(res.Messages, msg)
			return append(events, m.event(s, core.EventDestroyed, ship.ID, sq.ID, 0, msg)), nil
		}
		// survivors strike with what is left of the squadron
		wpn = aircraft.StrikeWeapon(sq, target)
	}

	r := m.resolver.ResolveAttack(sq, target, wpn, d, s.weather)
	sq.Ammo--
	sq.Mission = core.MissionAttack
	sq.Target = target.Base().ID
	return append(events, m.apply(s, sq, target, r, res)...), nil
}

// apply lands a resolved attack on the target. Callers hold s.mu.
func (m *Manager) apply(s *session, attacker, target core.Combatant, r combat.AttackResult, res *ActionResult) []core.BattleEvent {
	a, t := attacker.Base(), target.Base()
	destroyed := m.resolver.Apply(target, r)
	m.metrics.attack(r.Hit, r.Damage)
	if r.Hit {
		s.roundDamage += r.Damage
	}

	res.Hit = r.Hit
	res.Damage = r.Damage
	res.Destroyed = destroyed
	res.Messages = append(res.Messages, r.Message)

	ev := m.event(s, core.EventAttack, a.ID, t.ID, r.Damage, r.Message)
	ev.ExtraData = map[string]any{"hit": r.Hit, "critical": r.Critical, "accuracy": r.Accuracy}
	events := []core.BattleEvent{ev}
	if destroyed {
		msg := fmt.Sprintf("%s has been destroyed!", t.Name)
		res.Messages = append(res.Messages, msg)
		events = append(events, m.event(s, core.EventDestroyed, a.ID, t.ID, 0, msg))
	}
	return events
}

// EndTurn closes the acting combatant's turn early.
func (m *Manager) EndTurn(sessionID, combatantID string) (err error) {
	defer m.guard(sessionID, "EndTurn", &err)

	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window != nil && s.window.closed && s.window.combatantID == combatantID {
		return nil
	}
	_, w, err := m.actor(s, combatantID)
	if err != nil {
		return err
	}
	w.close()
	return nil
}

// Launch takes a landed squadron off its carrier. It is only allowed during the
// carrier's turn; the squadron acts from the next round.
func (m *Manager) Launch(sessionID, squadronID string) (res ActionResult, err error) {
	defer m.guard(sessionID, "Launch", &err)

	s, err := m.lookup(sessionID)
	if err != nil {
		return res, err
	}

	var ev core.BattleEvent
	err = func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		sq, ok := s.combatants[squadronID].(*core.AircraftSquadron)
		if !ok {
			return invalid("squadron", "unknown squadron %s", squadronID)
		}
		if _, _, err := m.actor(s, sq.CarrierID); err != nil {
			return err
		}
		if err := aircraft.Launch(sq, s.carrier(sq.CarrierID)); err != nil {
			return invalid("squadron", "%s: %v", sq.Name, err)
		}
		msg := fmt.Sprintf("%s launches from its carrier.", sq.Name)
		ev = m.event(s, core.EventLanding, sq.CarrierID, sq.ID, 0, msg)
		ev.ExtraData = map[string]any{"launch": true}
		res.Messages = []string{msg}
		m.publish(s)
		return nil
	}()
	if err != nil {
		return ActionResult{}, err
	}

	m.record(ev)
	m.notify(sessionID, res.Messages)
	return res, nil
}

// view returns the current state of one combatant.
func (m *Manager) view(sessionID, combatantID string) (core.CombatantView, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return core.CombatantView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.combatants[combatantID]
	if !ok {
		return core.CombatantView{}, &SessionExpiredError{SessionID: sessionID, EntityID: combatantID}
	}
	return core.ViewOf(c), nil
}

// targets lists the attacks the combatant could make, nearest first. A squadron's
// assigned target is listed first.
func (m *Manager) targets(sessionID, combatantID string) ([]TargetOption, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.combatants[combatantID]
	if !ok {
		return nil, &SessionExpiredError{SessionID: sessionID, EntityID: combatantID}
	}
	u := c.Base()
	sq, _ := c.(*core.AircraftSquadron)

	var opts []TargetOption
	for _, id := range s.ids {
		t := s.combatants[id]
		tu := t.Base()
		if tu.Side == u.Side || !tu.Alive() {
			continue
		}
		d := geo.Distance(u.Pos, tu.Pos)
		if sq != nil {
			if sq.Ammo <= 0 || !aircraft.CanStrike(sq, t) {
				continue
			}
			opts = append(opts, TargetOption{TargetID: id, TargetPos: tu.Pos, Distance: d, InRange: combat.InRange(d, sq.Range)})
			continue
		}
		for _, w := range core.WeaponsOf(c) {
			if !w.Ready() {
				continue
			}
			opts = append(opts, TargetOption{TargetID: id, WeaponID: w.ID, TargetPos: tu.Pos, Distance: d, InRange: combat.InRange(d, w.Range)})
		}
	}

	slices.SortStableFunc(opts, func(a, b TargetOption) int {
		if sq != nil && sq.Target != "" && (a.TargetID == sq.Target) != (b.TargetID == sq.Target) {
			if a.TargetID == sq.Target {
				return -1
			}
			return 1
		}
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	return opts, nil
}
