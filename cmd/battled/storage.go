package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidewatch/battlecore/internal/config"
	"github.com/tidewatch/battlecore/internal/database"
	"github.com/tidewatch/battlecore/internal/storage"
	"github.com/tidewatch/battlecore/internal/storage/memory"
	pgstorage "github.com/tidewatch/battlecore/internal/storage/postgres"
	sqlitestorage "github.com/tidewatch/battlecore/internal/storage/sqlite"
	wsstorage "github.com/tidewatch/battlecore/internal/storage/websocket"
	"gorm.io/gorm"
)

// initStorage creates and initializes the battle recorder selected by storage.type.
func initStorage() error {
	Logger.Debug("Initializing storage backend")

	storageCfg := config.GetStorageConfig()

	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return err
	}
	storageBackend = backend
	Logger.Info("Storage backend ready", "type", storageCfg.Type)
	return nil
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		dbManager = database.NewManager(config.GetDBConfig(), ZLogger)
		if err := dbManager.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if dbManager.ShouldSaveLocal {
			dbManager.SqliteFilePath = filepath.Join(LogsDir, fmt.Sprintf("battlecore_%s.db", SessionStartTime.Format("20060102_150405")))
		}
		Logger.Info("Postgres storage backend initialized", "fallback", dbManager.ShouldSaveLocal)
		return pgstorage.New(pgstorage.Dependencies{
			DB:         dbManager.DB,
			DBConfig:   config.GetDBConfig(),
			LogManager: SlogManager,
		}), nil

	case "sqlite":
		dumpPath, restore := storageCfg.SQLite.DumpPath, storageCfg.SQLite.Restore
		if dumpPath == "" {
			restore = false
			dumpPath = filepath.Join(LogsDir, fmt.Sprintf("battlecore_%s.db", SessionStartTime.Format("20060102_150405")))
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
			Restore:      restore,
		}, SlogManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized", "dumpPath", dumpPath)
		return backend, nil

	case "websocket":
		apiCfg := config.GetAPIConfig()
		wsURL := httpToWS(apiCfg.ServerURL) + "/api"
		Logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: apiCfg.APIKey,
			Logger: Logger,
		}), nil

	default:
		Logger.Info("Memory storage backend initialized")
		return memory.New(storageCfg.Memory), nil
	}
}

// storageDB returns the GORM connection behind the backend, if it has one.
func storageDB(b storage.Backend) *gorm.DB {
	if dbb, ok := b.(interface{ DB() *gorm.DB }); ok {
		return dbb.DB()
	}
	return nil
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
