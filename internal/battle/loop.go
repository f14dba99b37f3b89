package battle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidewatch/battlecore/internal/aircraft"
	"github.com/tidewatch/battlecore/internal/combat"
	"github.com/tidewatch/battlecore/internal/geo"
	"github.com/tidewatch/battlecore/internal/objective"
	"github.com/tidewatch/battlecore/pkg/core"
)

// AdvanceTurn runs one step of a started session: a QRF check while paused, or the
// rest of the current round. It is the driver for managers built with ExternalDrive.
func (m *Manager) AdvanceTurn(ctx context.Context, sessionID string) (err error) {
	defer m.guard(sessionID, "AdvanceTurn", &err)

	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if !s.running.CompareAndSwap(false, true) {
		return &PreconditionError{SessionID: sessionID, Reason: BlockBusy}
	}
	defer s.running.Store(false)

	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()
	switch phase {
	case core.PhaseSetup:
		return &PreconditionError{SessionID: sessionID, Reason: BlockWrongPhase, Detail: []string{string(phase)}}
	case core.PhaseEnded:
		return &SessionExpiredError{SessionID: sessionID}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	_, err = m.safeStep(ctx, s)
	if errors.Is(err, context.Canceled) && s.ctx.Err() != nil {
		// settled while the step was running
		return nil
	}
	return err
}

// run is the self-driven loop of one session. It exits when the session settles.
func (m *Manager) run(s *session) {
	defer m.loops.Done()
	defer s.running.Store(false)

	for s.ctx.Err() == nil {
		idle, err := m.safeStep(s.ctx, s)
		if err != nil {
			return
		}
		if !idle {
			continue
		}
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		case <-m.clock.After(m.cfg.PollInterval):
		}
	}
}

// safeStep retries a step that failed internally once, then aborts the session.
func (m *Manager) safeStep(ctx context.Context, s *session) (bool, error) {
	idle, err := m.step(ctx, s)
	var ie *InternalError
	if !errors.As(err, &ie) {
		return idle, err
	}

	m.sessionLog(s.id, "safeStep", fmt.Sprintf("%v, retrying", err), "ERROR")
	idle, err = m.step(ctx, s)
	if errors.As(err, &ie) {
		m.sessionLog(s.id, "safeStep", fmt.Sprintf("%v, aborting session", err), "ERROR")
		m.settle(s, objective.Aborted, "The battle was aborted after an internal error.")
	}
	return idle, err
}

// step reports idle when the session is waiting for reinforcements.
func (m *Manager) step(ctx context.Context, s *session) (idle bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(s.id, "turn loop", r)
		}
	}()

	paused, ended := m.checkQRF(s)
	if ended || paused {
		return paused, nil
	}

	m.notify(s.id, m.beginRound(s))
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		id, ok := m.nextActor(s)
		if !ok {
			break
		}
		if err := m.runTurn(ctx, s, id); err != nil {
			return false, err
		}
		if m.checkEnd(s) {
			return false, nil
		}
	}
	m.endRound(s)
	return false, nil
}

// checkQRF pauses the battle while no player-controlled combatant is alive and
// fails the mission once the wait exceeds the QRF timeout.
func (m *Manager) checkQRF(s *session) (paused, ended bool) {
	now := m.clock.Now()
	var (
		msgs    []string
		events  []core.BattleEvent
		timeout bool
	)

	func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ended() {
			ended = true
			return
		}

		if objective.PlayersAlive(s) {
			if s.phase == core.PhasePausedQRF {
				waited := now.Sub(*s.qrfWaitingSince).Round(time.Second)
				s.phase = core.PhaseBattle
				s.qrfWaitingSince = nil
				msg := fmt.Sprintf("Reinforcements have arrived after %s. The battle resumes!", waited)
				msgs = append(msgs, msg)
				events = append(events, m.event(s, core.EventQRFResumed, "", "", 0, msg))
				m.publish(s)
			}
			return
		}

		paused = true
		if s.phase != core.PhasePausedQRF {
			since := now
			s.phase = core.PhasePausedQRF
			s.qrfWaitingSince = &since
			s.lastReminder = now
			msg := fmt.Sprintf("All player forces are down. Waiting %s for reinforcements.", m.cfg.QRFTimeout)
			msgs = append(msgs, msg)
			events = append(events, m.event(s, core.EventQRFPaused, "", "", 0, msg))
			m.publish(s)
			return
		}

		waited := now.Sub(*s.qrfWaitingSince)
		if waited >= m.cfg.QRFTimeout {
			timeout = true
			return
		}
		if now.Sub(s.lastReminder) >= m.cfg.ReminderInterval {
			s.lastReminder = now
			left := (m.cfg.QRFTimeout - waited).Round(time.Second)
			msgs = append(msgs, fmt.Sprintf("Reinforcements needed! %s left before the mission fails.", left))
		}
	}()

	m.record(events...)
	m.notify(s.id, msgs)
	if !timeout {
		return paused, ended
	}

	ended = m.settle(s, func() objective.Outcome {
		if s.phase != core.PhasePausedQRF || objective.PlayersAlive(s) {
			return objective.Outcome{}
		}
		return objective.Timeout()
	}, "No reinforcements arrived in time. Mission failed.")
	return !ended, ended
}

// beginRound builds the turn order unless a round is already in progress.
// Players act first, then the AI side, each group shuffled.
func (m *Manager) beginRound(s *session) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roundOpen || s.ended() {
		return nil
	}

	var msgs []string
	if s.pendingWeather != "" && s.pendingWeather != s.weather {
		s.weather = s.pendingWeather
		msgs = append(msgs, fmt.Sprintf("The weather turns %s.", s.weather))
	}
	s.pendingWeather = ""

	roller := m.resolver.Roller()
	players := s.actors(core.ControllerPlayer)
	ai := s.actors(core.ControllerAI)
	roller.Shuffle(len(players), func(i, j int) { players[i], players[j] = players[j], players[i] })
	roller.Shuffle(len(ai), func(i, j int) { ai[i], ai[j] = ai[j], ai[i] })

	s.order = append(players, ai...)
	s.cursor = 0
	s.roundOpen = true
	s.roundStarted = m.clock.Now()
	s.roundDamage = 0
	m.publish(s)

	return append([]string{fmt.Sprintf("Round %d begins.", s.turn+1)}, msgs...)
}

// nextActor advances the cursor past combatants that can no longer act.
func (m *Manager) nextActor(s *session) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.ended() && s.cursor < len(s.order) {
		id := s.order[s.cursor]
		s.cursor++
		if c, ok := s.combatants[id]; ok && canAct(c) {
			return id, true
		}
	}
	return "", false
}

func (m *Manager) runTurn(ctx context.Context, s *session, id string) error {
	t, handler, ok := m.openTurn(s, id)
	if !ok {
		return nil
	}
	err := m.callHandler(ctx, handler, t)
	m.closeTurn(s, id)

	var ie *InternalError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ie), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		m.writeLog("runTurn", fmt.Sprintf("Turn of %s in session %s: %v", id, s.id, err), "WARN")
		return nil
	}
}

func (m *Manager) openTurn(s *session, id string) (*Turn, TurnHandler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.combatants[id]
	if s.ended() || !ok || !canAct(c) {
		return nil, nil, false
	}
	s.window = newTurnWindow(id)
	m.publish(s)

	handler := m.deps.AIHandler
	if c.Base().Controller == core.ControllerPlayer {
		handler = m.deps.PlayerHandler
	}
	return &Turn{
		SessionID:   s.id,
		CombatantID: id,
		Round:       s.turn + 1,
		m:           m,
		done:        s.window.done,
	}, handler, true
}

func (m *Manager) callHandler(ctx context.Context, h TurnHandler, t *Turn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(t.SessionID, "turn handler for "+t.CombatantID, r)
		}
	}()
	return h.TakeTurn(ctx, t)
}

func (m *Manager) closeTurn(s *session, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window != nil && s.window.combatantID == id {
		s.window.close()
		s.window = nil
	}
	if !s.ended() {
		m.publish(s)
	}
}

// checkEnd settles the session if the evaluator reports a result.
func (m *Manager) checkEnd(s *session) bool {
	return m.settle(s, func() objective.Outcome {
		return objective.Evaluate(s, s.objective)
	}, "")
}

// endRound ticks status effects and aircraft, cools weapons down and closes the round.
func (m *Manager) endRound(s *session) {
	var (
		msgs    []string
		events  []core.BattleEvent
		refresh bool
		snap    core.Snapshot
		rm      RoundMetrics
	)

	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ended() || !s.roundOpen {
			return
		}

		for _, c := range s.Combatants() {
			u := c.Base()
			if !u.Alive() {
				continue
			}
			res := m.status.Tick(c)
			s.roundDamage += res.Damage
			m.metrics.tickDamage(res.Damage)
			msgs = append(msgs, res.Messages...)
			for _, k := range res.Expired {
				events = append(events, m.event(s, core.EventStatusExpired, u.ID, "", 0, string(k)))
			}
			if res.Destroyed {
				events = append(events, m.event(s, core.EventDestroyed, "", u.ID, res.Damage, fmt.Sprintf("%s succumbed to its damage.", u.Name)))
			}
		}

		sqs := s.squadrons()
		msgs = append(msgs, aircraft.AutoEngage(sqs, s.Combatants())...)
		for _, sq := range sqs {
			var res ActionResult
			events = append(events, m.intercept(s, sq, &res)...)
			msgs = append(msgs, res.Messages...)
		}
		for _, sq := range sqs {
			if !sq.Airborne() {
				continue
			}
			msgs = append(msgs, aircraft.TickResources(sq)...)
			if !sq.Alive() {
				events = append(events, m.event(s, core.EventDestroyed, "", sq.ID, 0, fmt.Sprintf("%s ran out of fuel and crashed.", sq.Name)))
			}
		}
		for _, sq := range sqs {
			if !sq.Airborne() || sq.Mission != core.MissionReturning || sq.CarrierID == "" {
				continue
			}
			carrier := s.carrier(sq.CarrierID)
			if carrier != nil && carrier.Alive() && geo.Distance(sq.Pos, carrier.Pos) > aircraft.LandingDistance {
				continue
			}
			out := aircraft.AttemptLanding(sq, carrier)
			if out.Message != "" {
				msgs = append(msgs, out.Message)
			}
			events = append(events, m.event(s, core.EventLanding, sq.ID, sq.CarrierID, 0, out.Message))
		}

		for _, c := range s.Combatants() {
			combat.CoolDown(core.WeaponsOf(c))
		}

		now := m.clock.Now()
		s.turn++
		s.roundOpen = false
		s.cursor = 0
		refresh = s.turn%m.cfg.RefreshEvery == 0
		snap = s.snapshot(now)
		m.deps.Cache.Set(snap)
		rm = RoundMetrics{
			SessionID:    s.id,
			Turn:         s.turn,
			Weather:      string(s.weather),
			Duration:     now.Sub(s.roundStarted),
			PlayersAlive: s.aliveCount(core.SidePlayer),
			EnemiesAlive: s.aliveCount(core.SideEnemy),
			Damage:       s.roundDamage,
			Time:         now,
		}
	}()
	if rm.SessionID == "" {
		return
	}

	m.record(events...)
	m.notify(s.id, msgs)
	if refresh {
		m.refresh(snap)
	}
	m.metrics.round(rm.Duration)
	if m.deps.Metrics != nil {
		if err := m.deps.Metrics.RecordRound(context.Background(), rm); err != nil {
			m.sessionLog(s.id, "endRound", fmt.Sprintf("Error writing round metrics: %v", err), "WARN")
		}
	}
	m.checkEnd(s)
}

// intercept resolves the strike of a fighter that auto-engagement or CAP switched onto
// an enemy squadron. Callers hold s.mu.
func (m *Manager) intercept(s *session, sq *core.AircraftSquadron, res *ActionResult) []core.BattleEvent {
	if sq.Type != core.AircraftFighter || !sq.Airborne() || sq.Mission != core.MissionAttack || sq.Ammo <= 0 {
		return nil
	}
	enemy, ok := s.combatants[sq.Target].(*core.AircraftSquadron)
	if !ok || !enemy.Airborne() || enemy.Side == sq.Side {
		return nil
	}
	d := geo.Distance(sq.Pos, enemy.Pos)
	wpn := aircraft.StrikeWeapon(sq, enemy)
	if !combat.InRange(d, wpn.Range) {
		return nil
	}
	r := m.resolver.ResolveAttack(sq, enemy, wpn, d, s.weather)
	sq.Ammo--
	return m.apply(s, sq, enemy, r, res)
}
