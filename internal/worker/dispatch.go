package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidewatch/battlecore/internal/battle"
	"github.com/tidewatch/battlecore/internal/combat"
	"github.com/tidewatch/battlecore/internal/dispatcher"
	"github.com/tidewatch/battlecore/internal/geo"
	"github.com/tidewatch/battlecore/internal/influx"
	"github.com/tidewatch/battlecore/internal/parser"
)

// routeTolerance matches the slack the manager allows on straight moves.
const routeTolerance = 0.01

// RegisterHandlers registers all command handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Session lifecycle - sync, the caller needs the outcome
	d.Register(":BATTLE:NEW:", m.handleNewSession, dispatcher.Logged())
	d.Register(":BATTLE:READY:", m.handleReady, dispatcher.Logged())
	d.Register(":BATTLE:START:", m.handleStart, dispatcher.Logged())
	d.Register(":BATTLE:END:", m.handleEnd, dispatcher.Logged())
	d.Register(":BATTLE:ABORT:", m.handleAbort, dispatcher.Logged())
	d.Register(":BATTLE:WEATHER:", m.handleWeather, dispatcher.Logged())

	// Combatants - setup or reinforcement
	d.Register(":BATTLE:SHIP:", m.handleShip, dispatcher.Logged())
	d.Register(":BATTLE:SQUADRON:", m.handleSquadron, dispatcher.Logged())
	d.Register(":BATTLE:INSTALLATION:", m.handleInstallation, dispatcher.Logged())
	d.Register(":BATTLE:PLACE:", m.handlePlace, dispatcher.Logged())

	// Turn actions
	d.Register(":BATTLE:MOVE:", m.handleMove, dispatcher.Logged())
	d.Register(":BATTLE:ATTACK:", m.handleAttack, dispatcher.Logged())
	d.Register(":BATTLE:ENDTURN:", m.handleEndTurn, dispatcher.Logged())
	d.Register(":BATTLE:LAUNCH:", m.handleLaunch, dispatcher.Logged())
	d.Register(":BATTLE:ADVANCE:", m.handleAdvance, dispatcher.Logged())

	// Reads
	d.Register(":BATTLE:SNAPSHOT:", m.handleSnapshot)
	d.Register(":BATTLE:MESSAGES:", m.handleMessages)
	d.Register(":STATUS:", m.handleStatus)

	// Client metrics - buffered
	d.Register(":METRIC:", m.handleMetric, dispatcher.Buffered(1000), dispatcher.Logged())
}

func (m *Manager) handleNewSession(e dispatcher.Event) (any, error) {
	req, err := m.deps.Parser.ParseSession(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	if req.Weather != "" {
		if _, err := combat.ParseWeather(req.Weather); err != nil {
			return nil, &battle.ValidationError{Field: "weather", Reason: err.Error()}
		}
	}

	id, err := m.deps.Battles.CreateSession(req.SessionID, req.Objective)
	if err != nil {
		return nil, err
	}
	if req.Weather != "" {
		if err := m.deps.Battles.SetWeather(id, req.Weather); err != nil {
			return nil, err
		}
	}
	return map[string]string{"sessionId": id}, nil
}

func (m *Manager) handleReady(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseSessionRef(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ready: %w", err)
	}
	return nil, m.deps.Battles.CompleteSetup(id)
}

func (m *Manager) handleStart(e dispatcher.Event) (any, error) {
	req, err := m.deps.Parser.ParseStart(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse start: %w", err)
	}
	return nil, m.deps.Battles.StartBattle(req.SessionID, req.RequesterID)
}

func (m *Manager) handleEnd(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseSessionRef(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse end: %w", err)
	}
	return nil, m.deps.Battles.EndBattle(id)
}

func (m *Manager) handleAbort(e dispatcher.Event) (any, error) {
	req, err := m.deps.Parser.ParseAbort(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse abort: %w", err)
	}
	return nil, m.deps.Battles.Abort(req.SessionID, req.Reason)
}

func (m *Manager) handleWeather(e dispatcher.Event) (any, error) {
	req, err := m.deps.Parser.ParseWeather(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse weather: %w", err)
	}
	return nil, m.deps.Battles.SetWeather(req.SessionID, req.Weather)
}

func (m *Manager) handleShip(e dispatcher.Event) (any, error) {
	req, err := m.deps.Parser.ParseShip(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ship: %w", err)
	}
	return m.addCombatant(req)
}

func (m *Manager) handleSquadron(e dispatcher.Event) (any, error) {
	req, err := m.deps.Parser.ParseSquadron(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse squadron: %w", err)
	}
	return m.addCombatant(req)
}

func (m *Manager) handleInstallation(e dispatcher.Event) (any, error) {
	req, err := m.deps.Parser.ParseInstallation(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse installation: %w", err)
	}
	return m.addCombatant(req)
}

// addCombatant registers during setup and falls back to a reinforcement once the
// battle is under way.
func (m *Manager) addCombatant(req parser.CombatantRequest) (any, error) {
	err := m.deps.Battles.AddCombatant(req.SessionID, req.Combatant)
	var pe *battle.PreconditionError
	if errors.As(err, &pe) && pe.Reason == battle.BlockWrongPhase {
		err = m.deps.Battles.Reinforce(req.SessionID, req.Combatant)
	}
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": req.Combatant.Base().ID}, nil
}

func (m *Manager) handlePlace(e dispatcher.Event) (any, error) {
	req, err := m.deps.Parser.ParsePlace(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse place: %w", err)
	}
	return nil, m.deps.Battles.Place(req.SessionID, req.CombatantID, req.Pos)
}

func (m *Manager) handleMove(e dispatcher.Event) (any, error) {
	req, err := m.deps.Parser.ParseMove(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse move: %w", err)
	}
	if len(req.Route) > 1 {
		if err := m.checkRoute(req); err != nil {
			return nil, err
		}
	}
	return m.deps.Battles.SubmitMove(req.SessionID, req.CombatantID, req.To)
}

// checkRoute rejects a multi-waypoint path longer than the mover's speed. The
// manager only sees the final cell, so the path length is checked here.
func (m *Manager) checkRoute(req parser.MoveRequest) error {
	snap, err := m.deps.Battles.GetSnapshot(req.SessionID)
	if err != nil {
		return err
	}
	for _, v := range snap.Combatants {
		if v.ID != req.CombatantID {
			continue
		}
		l, err := geo.RouteLength(v.Pos, req.Route)
		if err != nil {
			return &battle.ValidationError{Field: "route", Reason: err.Error()}
		}
		if l > v.Speed+routeTolerance {
			return &battle.ValidationError{
				Field:  "route",
				Reason: fmt.Sprintf("route of %.1f cells exceeds speed %.1f", l, v.Speed),
			}
		}
		return nil
	}
	// unknown combatants are reported by SubmitMove
	return nil
}

func (m *Manager) handleAttack(e dispatcher.Event) (any, error) {
	req, err := m.deps.Parser.ParseAttack(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse attack: %w", err)
	}
	return m.deps.Battles.SubmitAttack(req.SessionID, req.AttackerID, req.TargetID, req.WeaponID)
}

func (m *Manager) handleEndTurn(e dispatcher.Event) (any, error) {
	req, err := m.deps.Parser.ParseActor(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse end turn: %w", err)
	}
	return nil, m.deps.Battles.EndTurn(req.SessionID, req.CombatantID)
}

func (m *Manager) handleLaunch(e dispatcher.Event) (any, error) {
	req, err := m.deps.Parser.ParseActor(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse launch: %w", err)
	}
	return m.deps.Battles.Launch(req.SessionID, req.CombatantID)
}

func (m *Manager) handleAdvance(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseSessionRef(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse advance: %w", err)
	}
	ctx, cancel := context.WithTimeout(m.ctx, m.deps.AdvanceTimeout)
	defer cancel()
	return nil, m.deps.Battles.AdvanceTurn(ctx, id)
}

func (m *Manager) handleSnapshot(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseSessionRef(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if snap, ok := m.deps.Battles.Cache().Get(id); ok {
		return snap, nil
	}
	return m.deps.Battles.GetSnapshot(id)
}

func (m *Manager) handleMessages(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseSessionRef(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	if m.deps.Narration == nil {
		return []string{}, nil
	}
	msgs := m.deps.Narration.Drain(id)
	if msgs == nil {
		msgs = []string{}
	}
	return msgs, nil
}

func (m *Manager) handleStatus(e dispatcher.Event) (any, error) {
	if m.deps.Monitor != nil {
		_, status := m.deps.Monitor.GetProgramStatus(false, false)
		return status, nil
	}
	return map[string]any{"activeSessions": m.deps.Battles.ActiveSessions()}, nil
}

func (m *Manager) handleMetric(e dispatcher.Event) (any, error) {
	if m.deps.Metrics == nil {
		return nil, nil
	}

	bucket, point, err := influx.ParseClientMetric(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metric: %w", err)
	}
	if err := m.deps.Metrics.WritePoint(m.ctx, bucket, point); err != nil {
		return nil, fmt.Errorf("failed to write metric: %w", err)
	}
	return nil, nil
}
