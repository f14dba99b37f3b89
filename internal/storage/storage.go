// internal/storage/storage.go
package storage

import "github.com/tidewatch/battlecore/pkg/core"

// Backend is the interface all battle recorder implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Battle management
	StartBattle(rec *core.BattleRecord) error
	EndBattle(rec *core.BattleRecord) error

	// Event recording
	RecordEvent(e *core.BattleEvent) error
}

// PlayerStore is the player progression store rewards are granted through.
type PlayerStore interface {
	GrantReward(playerID string, xp, currency int) error
	Persist() error
}

// Uploadable is an optional interface for storage backends that produce
// battle report files suitable for upload to the dashboard.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() UploadMetadata
}

// UploadMetadata describes an exported battle report.
type UploadMetadata struct {
	SessionID          string
	Objective          string
	Outcome            string
	Winner             string
	Turns              int
	DurationSeconds    float64
	ObjectiveCompleted bool
}

// MetadataFor builds upload metadata from a settled battle record.
func MetadataFor(rec core.BattleRecord) UploadMetadata {
	m := UploadMetadata{
		SessionID:          rec.SessionID,
		Objective:          rec.Objective,
		Outcome:            rec.Outcome,
		Winner:             string(rec.Winner),
		Turns:              rec.Turns,
		ObjectiveCompleted: rec.ObjectiveCompleted,
	}
	if !rec.EndedAt.IsZero() && !rec.StartedAt.IsZero() {
		m.DurationSeconds = rec.EndedAt.Sub(rec.StartedAt).Seconds()
	}
	return m
}
