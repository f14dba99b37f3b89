package battle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidewatch/battlecore/internal/aircraft"
	"github.com/tidewatch/battlecore/internal/objective"
	"github.com/tidewatch/battlecore/pkg/core"
)

// reportTimeout bounds the background Reporter call.
const reportTimeout = 30 * time.Second

// settle ends the session with the outcome decide returns under the session lock. A
// zero outcome leaves the session running. Settling is idempotent: it reports true
// for a session that has already ended and does nothing else.
//
// Once the phase is ended the session always leaves the registry, even when a
// collaborator fails while the result is being delivered.
func (m *Manager) settle(s *session, decide func() objective.Outcome, note string) bool {
	now := m.clock.Now()

	var (
		already, settled bool
		started          bool
		msgs             []string
		rewards          []core.Reward
		rec              core.BattleRecord
		snap             core.Snapshot
	)
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ended() {
			already = true
			return
		}
		out := decide()
		if !out.Ended {
			return
		}

		settled = true
		started = s.phase != core.PhaseSetup
		s.phase = core.PhaseEnded
		s.qrfWaitingSince = nil
		s.outcome = out
		s.roundOpen = false
		if s.window != nil {
			s.window.close()
			s.window = nil
		}
		s.cancel()

		if note != "" {
			msgs = append(msgs, note)
		}
		if started {
			for _, sq := range s.squadrons() {
				if !sq.Airborne() || sq.CarrierID == "" {
					continue
				}
				if o := aircraft.Recover(sq, s.carrier(sq.CarrierID)); o.Message != "" {
					msgs = append(msgs, o.Message)
				}
			}
		}

		if started && out.Reason != objective.ReasonAborted {
			xp, currency := m.cfg.RewardXP, m.cfg.RewardCurrency
			if out.ObjectiveCompleted {
				xp += m.cfg.ObjectiveBonusXP
				currency += m.cfg.ObjectiveBonusCurrency
			}
			for _, p := range s.participants() {
				rewards = append(rewards, core.Reward{PlayerID: p, XP: xp, Currency: currency})
			}
		}

		if s.record.SessionID == "" {
			s.record = core.BattleRecord{SessionID: s.id, Objective: s.objective.Name(), Participants: s.participants()}
		}
		s.record.EndedAt = now
		s.record.Turns = s.turn
		s.record.Outcome = string(out.Reason)
		s.record.Winner = out.Winner
		s.record.ObjectiveCompleted = out.ObjectiveCompleted
		s.record.Rewards = rewards
		msgs = append(msgs, outcomeMessage(out, s.turn))

		rec = s.record
		snap = s.snapshot(now)
	}()
	if already {
		return true
	}
	if !settled {
		return false
	}
	defer m.release(s, rec.Outcome)

	m.shielded(s.id, "grant", func() { m.grant(s.id, rewards) })
	if started {
		m.shielded(s.id, "record", func() {
			m.record(core.BattleEvent{
				ID:        uuid.NewString(),
				SessionID: s.id,
				Turn:      rec.Turns,
				Time:      now,
				Type:      core.EventBattleEnded,
				Message:   msgs[len(msgs)-1],
				ExtraData: map[string]any{"reason": rec.Outcome, "winner": string(rec.Winner)},
			})
		})
		if m.deps.Recorder != nil {
			m.shielded(s.id, "EndBattle", func() {
				if err := m.deps.Recorder.EndBattle(&rec); err != nil {
					m.sessionLog(s.id, "settle", fmt.Sprintf("Error recording battle end: %v", err), "WARN")
				}
			})
		}
	}
	m.shielded(s.id, "notify", func() { m.notify(s.id, msgs) })
	m.shielded(s.id, "refresh", func() { m.refresh(snap) })

	m.writeLog("settle", fmt.Sprintf("Session %s ended after %d turns: %s", s.id, rec.Turns, rec.Outcome), "INFO")

	if m.deps.Reporter != nil && started {
		go m.shielded(s.id, "report", func() {
			ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
			defer cancel()
			if err := m.deps.Reporter.ReportBattle(ctx, rec); err != nil {
				m.writeLog("settle", fmt.Sprintf("Error reporting battle %s: %v", rec.SessionID, err), "WARN")
			}
		})
	}
	return true
}

// release drops a settled session from the registry and the cache and wakes Wait.
func (m *Manager) release(s *session, outcome string) {
	m.mu.Lock()
	delete(m.sessions, s.id)
	m.ended[s.id] = true
	m.mu.Unlock()
	m.deps.Cache.Delete(s.id)
	m.metrics.active.Add(context.Background(), -1)
	m.metrics.settled(outcome)
	close(s.done)
}

// shielded runs a collaborator call and logs a panic instead of propagating it.
func (m *Manager) shielded(sessionID, op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.sessionLog(sessionID, op, recovered(sessionID, op, r).Error(), "ERROR")
		}
	}()
	fn()
}

// grant hands out rewards and persists the player store once.
func (m *Manager) grant(sessionID string, rewards []core.Reward) {
	if m.deps.Players == nil || len(rewards) == 0 {
		return
	}
	for _, r := range rewards {
		if err := m.deps.Players.GrantReward(r.PlayerID, r.XP, r.Currency); err != nil {
			m.writeLog("grant", fmt.Sprintf("Error granting reward to %s in session %s: %v", r.PlayerID, sessionID, err), "ERROR")
		}
	}
	if err := m.deps.Players.Persist(); err != nil {
		m.writeLog("grant", fmt.Sprintf("Error persisting player data for session %s: %v", sessionID, err), "ERROR")
	}
}

func outcomeMessage(out objective.Outcome, turns int) string {
	switch out.Reason {
	case objective.ReasonSideEliminated:
		if out.Winner == core.SidePlayer {
			return fmt.Sprintf("Victory! All enemy forces destroyed after %d turns.", turns)
		}
		return fmt.Sprintf("Defeat. All player forces destroyed after %d turns.", turns)
	case objective.ReasonObjectiveComplete:
		return fmt.Sprintf("Victory! Objective complete after %d turns.", turns)
	case objective.ReasonQRFTimeout:
		return "Mission failed. The battle is over."
	default:
		return "The battle has been aborted."
	}
}
