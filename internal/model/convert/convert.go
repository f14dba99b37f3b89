package convert

import (
	"encoding/json"

	"github.com/tidewatch/battlecore/internal/model"
	"github.com/tidewatch/battlecore/pkg/core"
)

// BattleToCore converts a GORM model.Battle back to a core.BattleRecord.
func BattleToCore(b model.Battle) core.BattleRecord {
	r := core.BattleRecord{
		SessionID:          b.SessionID,
		Objective:          b.Objective,
		StartedAt:          b.StartedAt,
		Turns:              b.Turns,
		Outcome:            b.Outcome,
		Winner:             core.Side(b.Winner),
		ObjectiveCompleted: b.ObjectiveCompleted,
	}
	if b.EndedAt != nil {
		r.EndedAt = *b.EndedAt
	}
	if len(b.Participants) > 0 {
		_ = json.Unmarshal(b.Participants, &r.Participants)
	}
	if len(b.Rewards) > 0 {
		_ = json.Unmarshal(b.Rewards, &r.Rewards)
	}
	if len(r.Rewards) == 0 {
		r.Rewards = nil
	}
	return r
}

// BattleEventToCore converts a GORM model.BattleEvent back to a core.BattleEvent.
func BattleEventToCore(e model.BattleEvent) core.BattleEvent {
	out := core.BattleEvent{
		ID:        e.EventID,
		SessionID: e.SessionID,
		Turn:      e.Turn,
		Time:      e.Time,
		Type:      core.EventType(e.Type),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Damage:    e.Damage,
		Message:   e.Message,
	}
	if c, ok := e.Position.Coordinates(); ok {
		out.Pos = &core.Position{X: c.XY.X, Y: c.XY.Y}
	}
	if len(e.ExtraData) > 0 {
		var extra map[string]any
		if err := json.Unmarshal(e.ExtraData, &extra); err == nil && len(extra) > 0 {
			out.ExtraData = extra
		}
	}
	return out
}
