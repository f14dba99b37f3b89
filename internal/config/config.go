package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is the JSON config file looked up in the config directory.
const ConfigFileName = "battlecore.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	// Restore loads an existing dump at DumpPath on startup so player progress
	// carries over between runs.
	Restore bool `json:"restore" mapstructure:"restore"`
}

// StorageConfig selects and configures the battle recorder backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB metrics settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// GraylogConfig configures the optional GELF log sink
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// NotifyConfig configures the narration sinks
type NotifyConfig struct {
	Log             bool   `json:"log" mapstructure:"log"`
	WebsocketURL    string `json:"websocketUrl" mapstructure:"websocketUrl"`
	WebsocketSecret string `json:"websocketSecret" mapstructure:"websocketSecret"`
}

// MonitorConfig configures the read-only HTTP status surface
type MonitorConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// APIConfig configures the dashboard client used for battle report uploads
type APIConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// BattleConfig holds the turn scheduler and reward settings
type BattleConfig struct {
	QRFTimeout       time.Duration `json:"qrfTimeout" mapstructure:"qrfTimeout"`
	PollInterval     time.Duration `json:"pollInterval" mapstructure:"pollInterval"`
	ReminderInterval time.Duration `json:"reminderInterval" mapstructure:"reminderInterval"`
	TurnTimeout      time.Duration `json:"turnTimeout" mapstructure:"turnTimeout"`
	RefreshEvery     int           `json:"refreshEvery" mapstructure:"refreshEvery"`

	FireDuration     int `json:"fireDuration" mapstructure:"fireDuration"`
	FloodingDuration int `json:"floodingDuration" mapstructure:"floodingDuration"`

	RewardXP               int `json:"rewardXP" mapstructure:"rewardXP"`
	RewardCurrency         int `json:"rewardCurrency" mapstructure:"rewardCurrency"`
	ObjectiveBonusXP       int `json:"objectiveBonusXP" mapstructure:"objectiveBonusXP"`
	ObjectiveBonusCurrency int `json:"objectiveBonusCurrency" mapstructure:"objectiveBonusCurrency"`

	MapWidth  float64  `json:"mapWidth" mapstructure:"mapWidth"`
	MapHeight float64  `json:"mapHeight" mapstructure:"mapHeight"`
	Staff     []string `json:"staff" mapstructure:"staff"`
}

// SetDefaults registers every default value. Load calls it; tests that skip the
// config file can call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./battlelogs")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "battlecore")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "battlecore")
	viper.SetDefault("influx.bucket", "battle_metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./battles")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.restore", true)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "battlecore")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("notify.log", true)
	viper.SetDefault("notify.websocketUrl", "")
	viper.SetDefault("notify.websocketSecret", "")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.address", "127.0.0.1:8089")

	viper.SetDefault("battle.qrfTimeout", "10m")
	viper.SetDefault("battle.pollInterval", "10s")
	viper.SetDefault("battle.reminderInterval", "5m")
	viper.SetDefault("battle.turnTimeout", "2m")
	viper.SetDefault("battle.refreshEvery", 3)
	viper.SetDefault("battle.fireDuration", 3)
	viper.SetDefault("battle.floodingDuration", 4)
	viper.SetDefault("battle.rewardXP", 100)
	viper.SetDefault("battle.rewardCurrency", 50)
	viper.SetDefault("battle.objectiveBonusXP", 50)
	viper.SetDefault("battle.objectiveBonusCurrency", 25)
	viper.SetDefault("battle.mapWidth", 40)
	viper.SetDefault("battle.mapHeight", 40)
	viper.SetDefault("battle.staff", []string{})
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			Restore:      viper.GetBool("storage.sqlite.restore"),
		},
	}
}

// GetDBConfig returns the Postgres connection settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the GELF sink configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetNotifyConfig returns the narration sink configuration.
func GetNotifyConfig() NotifyConfig {
	return NotifyConfig{
		Log:             viper.GetBool("notify.log"),
		WebsocketURL:    viper.GetString("notify.websocketUrl"),
		WebsocketSecret: viper.GetString("notify.websocketSecret"),
	}
}

// GetMonitorConfig returns the HTTP status surface configuration.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled: viper.GetBool("monitor.enabled"),
		Address: viper.GetString("monitor.address"),
	}
}

// GetAPIConfig returns the dashboard client configuration.
func GetAPIConfig() APIConfig {
	return APIConfig{
		Enabled:   viper.GetBool("api.enabled"),
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}

// GetBattleConfig returns the turn scheduler configuration.
func GetBattleConfig() BattleConfig {
	return BattleConfig{
		QRFTimeout:             viper.GetDuration("battle.qrfTimeout"),
		PollInterval:           viper.GetDuration("battle.pollInterval"),
		ReminderInterval:       viper.GetDuration("battle.reminderInterval"),
		TurnTimeout:            viper.GetDuration("battle.turnTimeout"),
		RefreshEvery:           viper.GetInt("battle.refreshEvery"),
		FireDuration:           viper.GetInt("battle.fireDuration"),
		FloodingDuration:       viper.GetInt("battle.floodingDuration"),
		RewardXP:               viper.GetInt("battle.rewardXP"),
		RewardCurrency:         viper.GetInt("battle.rewardCurrency"),
		ObjectiveBonusXP:       viper.GetInt("battle.objectiveBonusXP"),
		ObjectiveBonusCurrency: viper.GetInt("battle.objectiveBonusCurrency"),
		MapWidth:               viper.GetFloat64("battle.mapWidth"),
		MapHeight:              viper.GetFloat64("battle.mapHeight"),
		Staff:                  viper.GetStringSlice("battle.staff"),
	}
}
