// Package postgres records battles in PostgreSQL through the GORM backend. The
// connection is either injected (the database manager's, possibly its SQLite
// fallback) or dialed from DBConfig in Init.
package postgres

import (
	"fmt"

	"github.com/tidewatch/battlecore/internal/config"
	"github.com/tidewatch/battlecore/internal/database"
	"github.com/tidewatch/battlecore/internal/logging"
	gormstorage "github.com/tidewatch/battlecore/internal/storage/gorm"
	"gorm.io/gorm"
)

type Dependencies struct {
	DB         *gorm.DB
	DBConfig   config.DBConfig
	LogManager *logging.SlogManager
}

// Backend embeds the GORM backend once Init has a connection.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{deps: deps}
}

func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, _, err := database.OpenPostgres(b.deps.DBConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.deps.DB = db
		b.deps.LogManager.WriteLog("postgres:Init",
			fmt.Sprintf("Connected to %s:%s/%s", b.deps.DBConfig.Host, b.deps.DBConfig.Port, b.deps.DBConfig.Database), "INFO")
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: b.deps.DB, LogManager: b.deps.LogManager})
	return b.Backend.Init()
}

// Close is a no-op before Init.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
