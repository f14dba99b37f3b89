package main

import (
	"fmt"
	"strings"

	"github.com/tidewatch/battlecore/internal/config"
	"github.com/tidewatch/battlecore/internal/database"
	gormstorage "github.com/tidewatch/battlecore/internal/storage/gorm"
	"github.com/tidewatch/battlecore/internal/storage/memory"
	"gorm.io/gorm"
)

// runCommand handles the one-shot subcommands.
func runCommand(args []string) error {
	switch strings.ToLower(args[0]) {
	case "export":
		if len(args) < 2 {
			return fmt.Errorf("no session ids provided")
		}
		return exportBattles(args[1:])
	case "version":
		fmt.Printf("%s %s (built %s)\n", ServiceName, CurrentVersion, BuildDate)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// openArchive opens the database battles were recorded to: Postgres, or the
// SQLite dump file.
func openArchive() (*gorm.DB, error) {
	storageCfg := config.GetStorageConfig()
	switch storageCfg.Type {
	case "postgres":
		return database.GetPostgresDB(config.GetDBConfig())
	case "sqlite":
		if storageCfg.SQLite.DumpPath == "" {
			return nil, fmt.Errorf("storage.sqlite.dumpPath is not set")
		}
		return database.GetSqliteDB(storageCfg.SQLite.DumpPath)
	default:
		return nil, fmt.Errorf("storage type %q keeps no database to export from", storageCfg.Type)
	}
}

// exportBattles writes a battle report for every stored session id.
func exportBattles(sessionIDs []string) error {
	db, err := openArchive()
	if err != nil {
		return err
	}
	archive := gormstorage.New(gormstorage.Dependencies{DB: db, LogManager: SlogManager})

	for _, id := range sessionIDs {
		rec, err := archive.Battle(id)
		if err != nil {
			return fmt.Errorf("error getting battle %s: %w", id, err)
		}
		events, err := archive.Events(id)
		if err != nil {
			return fmt.Errorf("error getting events of %s: %w", id, err)
		}
		path, err := memory.WriteExport(config.GetStorageConfig().Memory, &memory.BattleLog{Record: rec, Events: events})
		if err != nil {
			return err
		}
		fmt.Println("Wrote battle report to", path)
	}
	return nil
}
