// Package sqlitestorage records battles in an in-memory SQLite database wrapped by
// the GORM backend. The database is dumped to disk periodically, after every
// settled battle and on close, and can be restored from that dump on startup.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/tidewatch/battlecore/internal/database"
	"github.com/tidewatch/battlecore/internal/logging"
	gormstorage "github.com/tidewatch/battlecore/internal/storage/gorm"
	"github.com/tidewatch/battlecore/pkg/core"
	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string
	Restore      bool
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *logging.SlogManager
	stopChan chan struct{}
	stopOnce sync.Once
	dumpMu   sync.Mutex
}

// New creates a new SQLite storage backend.
func New(cfg Config, logManager *logging.SlogManager) (*Backend, error) {
	db, err := database.GetSqliteDB("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	if logManager == nil {
		logManager = logging.NewSlogManager()
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		LogManager: logManager,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logManager,
		stopChan: make(chan struct{}),
	}, nil
}

// Init migrates the schema, restores the previous dump when configured and
// starts the dump loop.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.cfg.Restore && b.cfg.DumpPath != "" {
		restored, err := database.RestoreFromDisk(b.db, b.cfg.DumpPath)
		if err != nil {
			return fmt.Errorf("failed to restore %s: %w", b.cfg.DumpPath, err)
		}
		if restored {
			b.log.WriteLog("sqlite:Init", fmt.Sprintf("Restored previous dump from %s", b.cfg.DumpPath), "INFO")
		}
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, closes the embedded GORM backend and writes
// a final dump so the last battle is not lost.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if b.cfg.DumpPath == "" {
		return nil
	}
	return b.Dump()
}

// EndBattle stores the final record and dumps the database so a settled
// battle survives a crash before the next tick.
func (b *Backend) EndBattle(rec *core.BattleRecord) error {
	if err := b.Backend.EndBattle(rec); err != nil {
		return err
	}
	if b.cfg.DumpPath != "" {
		if err := b.Dump(); err != nil {
			b.log.WriteLog("sqlite:EndBattle", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
		}
	}
	return nil
}

// Dump writes a point-in-time snapshot of the database to DumpPath.
func (b *Backend) Dump() error {
	b.dumpMu.Lock()
	defer b.dumpMu.Unlock()
	return database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath)
}

func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
			} else {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
			}
		}
	}
}
