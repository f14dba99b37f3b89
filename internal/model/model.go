package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Battle{},
	&BattleEvent{},
	&Player{},
	&ServicePerformance{},
}

////////////////////////
// BATTLE MODELS
////////////////////////

// Battle is one recorded battle session, from start to settlement
type Battle struct {
	gorm.Model
	SessionID          string         `json:"sessionId" gorm:"size:64;uniqueIndex:idx_battle_session_id"`
	Objective          string         `json:"objective" gorm:"size:127"`
	StartedAt          time.Time      `json:"startedAt" gorm:"index:idx_battle_started_at"`
	EndedAt            *time.Time     `json:"endedAt" gorm:"default:NULL"`
	Turns              int            `json:"turns" gorm:"default:0"`
	Outcome            string         `json:"outcome" gorm:"size:64"`
	Winner             string         `json:"winner" gorm:"size:16"`
	ObjectiveCompleted bool           `json:"objectiveCompleted" gorm:"default:false"`
	Participants       datatypes.JSON `json:"participants"`
	Rewards            datatypes.JSON `json:"rewards"`
}

func (*Battle) TableName() string {
	return "battles"
}

// BattleEvent is one change the engine made to a battle
type BattleEvent struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	EventID   string         `json:"eventId" gorm:"size:36;uniqueIndex:idx_battle_event_event_id"`
	SessionID string         `json:"sessionId" gorm:"size:64;index:idx_battle_event_session_id"`
	Turn      int            `json:"turn" gorm:"index:idx_battle_event_turn"`
	Time      time.Time      `json:"time"`
	Type      string         `json:"type" gorm:"size:32"`
	ActorID   string         `json:"actorId" gorm:"size:64"`
	TargetID  string         `json:"targetId" gorm:"size:64"`
	Damage    int            `json:"damage" gorm:"default:0"`
	Message   string         `json:"message" gorm:"size:500"`
	Position  geom.Point     `json:"position"` // destination of move events, empty otherwise
	ExtraData datatypes.JSON `json:"extraData"`
}

func (*BattleEvent) TableName() string {
	return "battle_events"
}

////////////////////////
// PLAYER MODELS
////////////////////////

// Player is a player's accumulated progression
type Player struct {
	PlayerID  string    `json:"playerId" gorm:"primaryKey;size:64"`
	XP        int       `json:"xp" gorm:"default:0"`
	Currency  int       `json:"currency" gorm:"default:0"`
	Battles   int       `json:"battles" gorm:"default:0"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (*Player) TableName() string {
	return "players"
}

////////////////////////
// PERFORMANCE MODELS
////////////////////////

// ServicePerformance is one status sample written by the monitor
type ServicePerformance struct {
	ID                  uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time                time.Time `json:"time" gorm:"index:idx_service_performance_time"`
	ActiveSessions      int       `json:"activeSessions"`
	CachedSnapshots     int       `json:"cachedSnapshots"`
	LastWriteDurationMs float32   `json:"lastWriteDurationMs"`
}

func (*ServicePerformance) TableName() string {
	return "service_performance"
}
