package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/tidewatch/battlecore/internal/config"
	"github.com/tidewatch/battlecore/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const maxPostgresConns = 10

// Manager handles database connections and operations.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger

	cfg config.DBConfig
}

// NewManager creates a new database manager.
func NewManager(cfg config.DBConfig, log zerolog.Logger) *Manager {
	return &Manager{
		Logger: log,
		cfg:    cfg,
	}
}

// Connect establishes a database connection, falling back to an in-memory SQLite
// database if Postgres is unreachable.
func (m *Manager) Connect() error {
	var err error

	m.DB, m.SqlDB, err = OpenPostgres(m.cfg)
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
		m.ShouldSaveLocal = true
		m.DB, err = GetSqliteDB("")
		if err != nil || m.DB == nil {
			m.IsValid = false
			return fmt.Errorf("failed to get local SQLite DB: %w", err)
		}
		m.Logger.Info().Msg("Using local SQLite DB in memory with periodic disk dump")
		m.SqlDB, err = m.DB.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
	} else {
		m.Logger.Info().Str("host", m.cfg.Host).Msg("Connected to database")
	}

	m.IsValid = true
	return nil
}

// Setup migrates the battle schema.
func (m *Manager) Setup() error {
	m.Logger.Info().Msg("Migrating schema")
	if err := Migrate(m.DB); err != nil {
		m.IsValid = false
		return err
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// DumpMemoryToDisk vacuums the in-memory database to SqliteFilePath.
func (m *Manager) DumpMemoryToDisk() error {
	start := time.Now()
	if err := DumpMemoryDBToDisk(m.DB, m.SqliteFilePath); err != nil {
		return err
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Msg("Dumped memory DB to disk")
	return nil
}

// Migrate creates or updates every table in model.DatabaseModels.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DSN builds the Postgres connection string.
func DSN(cfg config.DBConfig) string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
	)
}

// GetPostgresDB returns a connection to the Postgres database.
func GetPostgresDB(cfg config.DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  DSN(cfg),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// OpenPostgres connects and pings Postgres, capping the pool at maxPostgresConns.
func OpenPostgres(cfg config.DBConfig) (*gorm.DB, *sql.DB, error) {
	db, err := GetPostgresDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxPostgresConns)
	return db, sqlDB, nil
}

// GetSqliteDB returns a connection to a SQLite database.
// If path is empty, uses a private in-memory database.
func GetSqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// a single connection keeps every statement on the same in-memory database
	if path == "" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -16000;",
		"PRAGMA temp_store = MEMORY;",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}

// DumpMemoryDBToDisk vacuums the in-memory database to a disk file, replacing any
// previous dump.
func DumpMemoryDBToDisk(db *gorm.DB, sqliteFilePath string) error {
	if sqliteFilePath == "" {
		return fmt.Errorf("sqlite file path not set")
	}
	if strings.Contains(sqliteFilePath, "'") {
		return fmt.Errorf("sqlite file path contains a quote: %s", sqliteFilePath)
	}

	if err := os.MkdirAll(filepath.Dir(sqliteFilePath), 0755); err != nil {
		return fmt.Errorf("error creating dump directory: %w", err)
	}

	// VACUUM INTO refuses an existing target, so dump beside it and swap; the
	// previous dump survives a failed vacuum.
	tmp := sqliteFilePath + ".tmp"
	_ = os.Remove(tmp)
	if err := db.Exec("VACUUM INTO 'file:" + tmp + "';").Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}
	if err := os.Rename(tmp, sqliteFilePath); err != nil {
		return fmt.Errorf("error replacing DB file: %w", err)
	}
	return nil
}

// RestoreFromDisk copies every model table of a previous dump into db, replacing
// rows with the same key. It reports false without error when there is no dump.
func RestoreFromDisk(db *gorm.DB, sqliteFilePath string) (bool, error) {
	if _, err := os.Stat(sqliteFilePath); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if strings.Contains(sqliteFilePath, "'") {
		return false, fmt.Errorf("sqlite file path contains a quote: %s", sqliteFilePath)
	}

	if err := db.Exec("ATTACH DATABASE 'file:" + sqliteFilePath + "' AS dump;").Error; err != nil {
		return false, fmt.Errorf("error attaching dump: %w", err)
	}
	defer db.Exec("DETACH DATABASE dump;")

	for _, m := range model.DatabaseModels {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return false, fmt.Errorf("error parsing model: %w", err)
		}
		table := stmt.Schema.Table

		var found int64
		if err := db.Raw("SELECT count(*) FROM dump.sqlite_master WHERE type = 'table' AND name = ?", table).
			Scan(&found).Error; err != nil {
			return false, fmt.Errorf("error inspecting dump: %w", err)
		}
		if found == 0 {
			continue
		}

		cols := make([]string, len(stmt.Schema.DBNames))
		for i, name := range stmt.Schema.DBNames {
			cols[i] = `"` + name + `"`
		}
		list := strings.Join(cols, ", ")
		q := fmt.Sprintf(`INSERT OR REPLACE INTO main."%s" (%s) SELECT %s FROM dump."%s";`, table, list, list, table)
		if err := db.Exec(q).Error; err != nil {
			return false, fmt.Errorf("error restoring %s: %w", table, err)
		}
	}
	return true, nil
}
