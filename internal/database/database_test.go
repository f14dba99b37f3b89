package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewatch/battlecore/internal/config"
	"github.com/tidewatch/battlecore/internal/model"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{
		Host:     "db.local",
		Port:     "5433",
		Username: "fleet",
		Password: "secret",
		Database: "battles",
	})
	assert.Equal(t, "host=db.local port=5433 user=fleet password=secret dbname=battles sslmode=disable", dsn)
}

func TestGetSqliteDB_InMemoryAndMigrate(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}

	require.NoError(t, db.Create(&model.Player{PlayerID: "p1", XP: 10}).Error)
	var got model.Player
	require.NoError(t, db.First(&got, "player_id = ?", "p1").Error)
	assert.Equal(t, 10, got.XP)
}

func TestGetSqliteDB_TimeColumnsRoundTrip(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	end := start.Add(42 * time.Minute)

	require.NoError(t, db.Create(&model.Battle{SessionID: "s1", StartedAt: start, EndedAt: &end}).Error)
	require.NoError(t, db.Create(&model.BattleEvent{EventID: "e1", SessionID: "s1", Time: start}).Error)
	require.NoError(t, db.Create(&model.Player{PlayerID: "p1", UpdatedAt: end}).Error)
	require.NoError(t, db.Create(&model.ServicePerformance{Time: start, ActiveSessions: 2}).Error)

	var b model.Battle
	require.NoError(t, db.First(&b, "session_id = ?", "s1").Error)
	assert.True(t, start.Equal(b.StartedAt), "started %v", b.StartedAt)
	require.NotNil(t, b.EndedAt)
	assert.True(t, end.Equal(*b.EndedAt), "ended %v", b.EndedAt)

	var ev model.BattleEvent
	require.NoError(t, db.First(&ev, "event_id = ?", "e1").Error)
	assert.True(t, start.Equal(ev.Time))

	var p model.Player
	require.NoError(t, db.First(&p, "player_id = ?", "p1").Error)
	assert.False(t, p.UpdatedAt.IsZero())

	var perf model.ServicePerformance
	require.NoError(t, db.First(&perf).Error)
	assert.True(t, start.Equal(perf.Time))
	assert.Equal(t, 2, perf.ActiveSessions)
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&model.Player{PlayerID: "p1", XP: 42}).Error)

	path := filepath.Join(t.TempDir(), "dumps", "battles.db")
	require.NoError(t, DumpMemoryDBToDisk(db, path))
	// a second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	_, err = os.Stat(path)
	require.NoError(t, err)

	disk, err := GetSqliteDB(path)
	require.NoError(t, err)
	var got model.Player
	require.NoError(t, disk.First(&got, "player_id = ?", "p1").Error)
	assert.Equal(t, 42, got.XP)
}

func TestDumpMemoryDBToDisk_BadPath(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)

	assert.Error(t, DumpMemoryDBToDisk(db, ""))
	assert.Error(t, DumpMemoryDBToDisk(db, "/tmp/it's.db"))
}

func TestManager_SetupOnSqlite(t *testing.T) {
	m := NewManager(config.DBConfig{}, zerolog.Nop())
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	m.DB = db

	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&model.Battle{}))

	m.SqliteFilePath = filepath.Join(t.TempDir(), "manager.db")
	require.NoError(t, m.DumpMemoryToDisk())
}

func TestRestoreFromDisk(t *testing.T) {
	src, err := GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, Migrate(src))
	require.NoError(t, src.Create(&model.Player{PlayerID: "p1", XP: 42, Battles: 2}).Error)
	require.NoError(t, src.Create(&model.Battle{SessionID: "s1", Turns: 6}).Error)

	path := filepath.Join(t.TempDir(), "battles.db")
	require.NoError(t, DumpMemoryDBToDisk(src, path))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	dst, err := GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, Migrate(dst))
	require.NoError(t, dst.Create(&model.Player{PlayerID: "p1", XP: 1}).Error)
	restored, err := RestoreFromDisk(dst, path)
	require.NoError(t, err)
	assert.True(t, restored)

	var p model.Player
	require.NoError(t, dst.First(&p, "player_id = ?", "p1").Error)
	assert.Equal(t, 42, p.XP)
	assert.Equal(t, 2, p.Battles)
	var b model.Battle
	require.NoError(t, dst.First(&b, "session_id = ?", "s1").Error)
	assert.Equal(t, 6, b.Turns)
}

func TestRestoreFromDisk_MissingFile(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	restored, err := RestoreFromDisk(db, filepath.Join(t.TempDir(), "absent.db"))
	assert.NoError(t, err)
	assert.False(t, restored)
}
