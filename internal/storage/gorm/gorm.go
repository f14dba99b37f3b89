// Package gormstorage implements the storage.Backend and storage.PlayerStore interfaces
// on GORM. Battle events are queued and written in batches by a background goroutine;
// battle records and rewards are written synchronously.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidewatch/battlecore/internal/database"
	"github.com/tidewatch/battlecore/internal/logging"
	"github.com/tidewatch/battlecore/internal/model"
	"github.com/tidewatch/battlecore/internal/model/convert"
	"github.com/tidewatch/battlecore/internal/queue"
	"github.com/tidewatch/battlecore/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultFlushInterval is how often queued events are written when none is configured.
const DefaultFlushInterval = time.Second

// ErrNoDB is returned by Init when no database was injected.
var ErrNoDB = errors.New("no database connection")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	FlushInterval time.Duration
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	events   *queue.Queue[model.BattleEvent]
	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	lastWrite atomic.Int64 // nanoseconds
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{
		deps:   deps,
		events: queue.New[model.BattleEvent](),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDB
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.deps.LogManager.WriteLog("gorm:Init", "Database schema ready", "INFO")

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine and flushes pending events.
func (b *Backend) Close() error {
	var err error
	b.stopOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.done
		}
		err = b.Flush()
	})
	return err
}

// StartBattle inserts the battle record, replacing one with the same session id.
func (b *Backend) StartBattle(rec *core.BattleRecord) error {
	return b.upsertBattle(rec)
}

// EndBattle flushes the session's queued events and stores the final record.
func (b *Backend) EndBattle(rec *core.BattleRecord) error {
	if err := b.Flush(); err != nil {
		b.deps.LogManager.WriteLog("gorm:EndBattle", fmt.Sprintf("Error flushing events: %v", err), "ERROR")
	}
	return b.upsertBattle(rec)
}

func (b *Backend) upsertBattle(rec *core.BattleRecord) error {
	battle := convert.CoreToBattle(*rec)
	err := b.deps.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"objective", "started_at", "ended_at", "turns", "outcome", "winner",
			"objective_completed", "participants", "rewards", "updated_at",
		}),
	}).Create(&battle).Error
	if err != nil {
		return fmt.Errorf("failed to save battle %s: %w", rec.SessionID, err)
	}
	return nil
}

// RecordEvent queues an event for the next batch write.
func (b *Backend) RecordEvent(e *core.BattleEvent) error {
	b.events.Push(convert.CoreToBattleEvent(*e))
	return nil
}

// Pending returns the number of queued events.
func (b *Backend) Pending() int {
	return b.events.Len()
}

// Flush writes all queued events now.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	start := time.Now()
	err := writeQueue(b.deps.DB, b.events)
	b.lastWrite.Store(int64(time.Since(start)))
	return err
}

// GetLastDBWriteDuration returns how long the last batch write took.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// GrantReward adds experience and currency to a player, creating the player if needed.
func (b *Backend) GrantReward(playerID string, xp, currency int) error {
	if playerID == "" {
		return errors.New("player id is empty")
	}
	p := model.Player{PlayerID: playerID, XP: xp, Currency: currency, Battles: 1, UpdatedAt: time.Now()}
	err := b.deps.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "player_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"xp":         gorm.Expr("players.xp + ?", xp),
			"currency":   gorm.Expr("players.currency + ?", currency),
			"battles":    gorm.Expr("players.battles + 1"),
			"updated_at": p.UpdatedAt,
		}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("failed to grant reward to %s: %w", playerID, err)
	}
	return nil
}

// Persist flushes pending writes. Rewards are already durable once granted.
func (b *Backend) Persist() error {
	return b.Flush()
}

// Player reads a player's progression.
func (b *Backend) Player(playerID string) (model.Player, error) {
	var p model.Player
	err := b.deps.DB.First(&p, "player_id = ?", playerID).Error
	return p, err
}

// Battle reads a stored battle record.
func (b *Backend) Battle(sessionID string) (core.BattleRecord, error) {
	var battle model.Battle
	if err := b.deps.DB.First(&battle, "session_id = ?", sessionID).Error; err != nil {
		return core.BattleRecord{}, err
	}
	return convert.BattleToCore(battle), nil
}

// Events reads the stored events of a battle in turn order.
func (b *Backend) Events(sessionID string) ([]core.BattleEvent, error) {
	var rows []model.BattleEvent
	err := b.deps.DB.Where("session_id = ?", sessionID).Order("turn, id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]core.BattleEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.BattleEventToCore(r))
	}
	return out, nil
}

// writerLoop periodically drains the event queue into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.LogManager.WriteLog(":DB:WRITER:", fmt.Sprintf("Error writing battle events: %v", err), "ERROR")
			}
		}
	}
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items are pushed back for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T]) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		tx.Rollback()
		q.Push(items...)
		return err
	}
	return tx.Commit().Error
}
