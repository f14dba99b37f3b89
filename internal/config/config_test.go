package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./battlelogs", viper.GetString("logsDir"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("api.serverUrl"))
	assert.Equal(t, "", viper.GetString("api.apiKey"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "battlecore", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "battle_metrics", viper.GetString("influx.bucket"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetBattleConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetBattleConfig()
	assert.Equal(t, 10*time.Minute, cfg.QRFTimeout)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.ReminderInterval)
	assert.Equal(t, 2*time.Minute, cfg.TurnTimeout)
	assert.Equal(t, 3, cfg.RefreshEvery)
	assert.Equal(t, 3, cfg.FireDuration)
	assert.Equal(t, 4, cfg.FloodingDuration)
	assert.Equal(t, 100, cfg.RewardXP)
	assert.Equal(t, 50, cfg.RewardCurrency)
	assert.Equal(t, 50, cfg.ObjectiveBonusXP)
	assert.Equal(t, 25, cfg.ObjectiveBonusCurrency)
	assert.Equal(t, 40.0, cfg.MapWidth)
	assert.Equal(t, 40.0, cfg.MapHeight)
	assert.Empty(t, cfg.Staff)
}

func TestGetBattleConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"battle": {
			"qrfTimeout": "90s",
			"refreshEvery": 5,
			"staff": ["admiral", "ops"]
		}
	}`)))

	cfg := GetBattleConfig()
	assert.Equal(t, 90*time.Second, cfg.QRFTimeout)
	assert.Equal(t, 5, cfg.RefreshEvery)
	assert.Equal(t, []string{"admiral", "ops"}, cfg.Staff)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./battles", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m", "dumpPath": "/tmp/battles.db" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "/tmp/battles.db", sc.SQLite.DumpPath)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "battlecore", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "fleet",
			"batchTimeout": "30s",
			"endpoint": "localhost:4318",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "fleet", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4318", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetInfluxNotifyMonitorAPIConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"influx": { "enabled": true, "org": "fleet" },
		"notify": { "websocketUrl": "ws://dash/stream" },
		"monitor": { "address": ":9000" },
		"api": { "enabled": true, "apiKey": "k" }
	}`)))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "fleet", ic.Org)
	assert.Equal(t, "8086", ic.Port)

	nc := GetNotifyConfig()
	assert.True(t, nc.Log)
	assert.Equal(t, "ws://dash/stream", nc.WebsocketURL)

	mc := GetMonitorConfig()
	assert.True(t, mc.Enabled)
	assert.Equal(t, ":9000", mc.Address)

	ac := GetAPIConfig()
	assert.True(t, ac.Enabled)
	assert.Equal(t, "k", ac.APIKey)
	assert.Equal(t, "http://localhost:5000", ac.ServerURL)

	dc := GetDBConfig()
	assert.Equal(t, "postgres", dc.Username)
}

func TestGetGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	gc := GetGraylogConfig()
	assert.False(t, gc.Enabled)
	assert.Equal(t, "localhost:12201", gc.Address)

	viper.Set("graylog.enabled", true)
	viper.Set("graylog.address", "graylog:12201")
	gc = GetGraylogConfig()
	assert.True(t, gc.Enabled)
	assert.Equal(t, "graylog:12201", gc.Address)
}
