// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/tidewatch/battlecore/internal/geo"
	"github.com/tidewatch/battlecore/internal/model"
	"github.com/tidewatch/battlecore/pkg/core"
	"gorm.io/datatypes"
)

// toJSON marshals v for a JSON column, using fallback for empty values.
func toJSON(v any, empty bool, fallback string) datatypes.JSON {
	if empty {
		return datatypes.JSON(fallback)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON(fallback)
	}
	return datatypes.JSON(data)
}

// CoreToBattle converts a core.BattleRecord to a GORM model.Battle.
// A zero EndedAt is stored as NULL.
func CoreToBattle(r core.BattleRecord) model.Battle {
	b := model.Battle{
		SessionID:          r.SessionID,
		Objective:          r.Objective,
		StartedAt:          r.StartedAt,
		Turns:              r.Turns,
		Outcome:            r.Outcome,
		Winner:             string(r.Winner),
		ObjectiveCompleted: r.ObjectiveCompleted,
		Participants:       toJSON(r.Participants, len(r.Participants) == 0, "[]"),
		Rewards:            toJSON(r.Rewards, len(r.Rewards) == 0, "[]"),
	}
	if !r.EndedAt.IsZero() {
		ended := r.EndedAt
		b.EndedAt = &ended
	}
	return b
}

// CoreToBattleEvent converts a core.BattleEvent to a GORM model.BattleEvent.
// core.BattleEvent.ID maps to GORM BattleEvent.EventID.
func CoreToBattleEvent(e core.BattleEvent) model.BattleEvent {
	out := model.BattleEvent{
		EventID:   e.ID,
		SessionID: e.SessionID,
		Turn:      e.Turn,
		Time:      e.Time,
		Type:      string(e.Type),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Damage:    e.Damage,
		Message:   e.Message,
		ExtraData: toJSON(e.ExtraData, len(e.ExtraData) == 0, "{}"),
	}
	if e.Pos != nil {
		// non-finite positions are stored without a geometry
		if pt, err := geo.Point(*e.Pos); err == nil {
			out.Position = pt
		}
	}
	return out
}
