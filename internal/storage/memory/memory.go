// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"

	"github.com/tidewatch/battlecore/internal/config"
	"github.com/tidewatch/battlecore/internal/storage"
	"github.com/tidewatch/battlecore/pkg/core"
)

// ErrEmptyPlayerID is returned when a reward names no player.
var ErrEmptyPlayerID = errors.New("player id is empty")

// BattleLog groups a battle record with every event recorded for it
type BattleLog struct {
	Record core.BattleRecord
	Events []core.BattleEvent
}

// PlayerRecord is a player's accumulated progression
type PlayerRecord struct {
	PlayerID string `json:"playerId"`
	XP       int    `json:"xp"`
	Currency int    `json:"currency"`
}

// Backend keeps battles and player progression in memory and exports
// settled battles to JSON.
type Backend struct {
	cfg config.MemoryConfig

	battles map[string]*BattleLog // keyed by session id
	players map[string]*PlayerRecord

	lastExportPath string
	lastRecord     *core.BattleRecord
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		battles: make(map[string]*BattleLog),
		players: make(map[string]*PlayerRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartBattle begins recording a battle. Restarting a session id discards its earlier log.
func (b *Backend) StartBattle(rec *core.BattleRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.battles[rec.SessionID] = &BattleLog{
		Record: *rec,
		Events: make([]core.BattleEvent, 0),
	}
	return nil
}

// RecordEvent appends an event to its battle
func (b *Backend) RecordEvent(e *core.BattleEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if log, ok := b.battles[e.SessionID]; ok {
		log.Events = append(log.Events, *e)
	}
	return nil // silently ignore events for unknown battles
}

// EndBattle finalizes the battle and exports it
func (b *Backend) EndBattle(rec *core.BattleRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	log, ok := b.battles[rec.SessionID]
	if !ok {
		log = &BattleLog{}
	}
	log.Record = *rec
	delete(b.battles, rec.SessionID)

	final := *rec
	b.lastRecord = &final
	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON(log)
}

// GetBattle returns a copy of an in-progress battle log
func (b *Backend) GetBattle(sessionID string) (BattleLog, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	log, ok := b.battles[sessionID]
	if !ok {
		return BattleLog{}, false
	}
	out := BattleLog{Record: log.Record, Events: make([]core.BattleEvent, len(log.Events))}
	copy(out.Events, log.Events)
	return out, true
}

// GrantReward adds experience and currency to a player
func (b *Backend) GrantReward(playerID string, xp, currency int) error {
	if playerID == "" {
		return ErrEmptyPlayerID
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.players[playerID]
	if !ok {
		p = &PlayerRecord{PlayerID: playerID}
		b.players[playerID] = p
	}
	p.XP += xp
	p.Currency += currency
	return nil
}

// Player returns a player's progression
func (b *Backend) Player(playerID string) (PlayerRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.players[playerID]
	if !ok {
		return PlayerRecord{}, false
	}
	return *p, true
}

// Persist writes player progression to players.json in the output directory
func (b *Backend) Persist() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.writePlayers()
}

// GetExportedFilePath returns the path of the last exported battle report
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last settled battle
func (b *Backend) GetExportMetadata() storage.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.lastRecord == nil {
		return storage.UploadMetadata{}
	}
	return storage.MetadataFor(*b.lastRecord)
}
