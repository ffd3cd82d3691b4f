package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/man10/strike/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the main configuration file inside the config directory.
const FileName = "config.yml"

// GraylogConfig holds GELF log shipping settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// StorageConfig selects where map definitions are kept.
type StorageConfig struct {
	Type       string
	MapsDir    string
	SQLitePath string
}

// DatabaseConfig holds the Postgres connection used for maps and match history.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// RedisConfig holds settings for the Redis balance provider.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// EconomyConfig selects the balance provider.
type EconomyConfig struct {
	Provider string
	Redis    RedisConfig
}

// InfluxConfig holds match result metric export settings.
type InfluxConfig struct {
	Enabled    bool
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// MonitorConfig controls the status snapshot writer.
type MonitorConfig struct {
	Enabled    bool
	Interval   time.Duration
	StatusFile string
}

// HistoryConfig controls match history batching.
type HistoryConfig struct {
	FlushInterval time.Duration
	BatchSize     int
}

// TeamConfig holds the display settings of one side.
type TeamConfig struct {
	Name   string
	Prefix string
}

// Config is the full process configuration.
type Config struct {
	LogLevel  string
	LogsDir   string
	Debug     bool
	Graylog   GraylogConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Economy   EconomyConfig
	Influx    InfluxConfig
	Monitor   MonitorConfig
	History   HistoryConfig
	Teams     [2]TeamConfig
	MainLobby *core.Position
	Rules     Rules

	// RulesetFile optionally replaces Rules with a standalone ruleset file.
	RulesetFile string
}

// TeamName returns the configured display name of a side.
func (c Config) TeamName(s core.Side) string {
	if n := c.Teams[s].Name; n != "" {
		return n
	}
	return s.String()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("logsDir", "./logs")
	v.SetDefault("general.debug", false)

	v.SetDefault("graylog.enabled", false)
	v.SetDefault("graylog.address", "localhost:12201")

	v.SetDefault("storage.type", "yaml")
	v.SetDefault("storage.mapsDir", "./maps")
	v.SetDefault("storage.sqlitePath", "./strike.db")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "man10strike")

	v.SetDefault("economy.provider", "none")
	v.SetDefault("economy.redis.addr", "localhost:6379")
	v.SetDefault("economy.redis.password", "")
	v.SetDefault("economy.redis.db", 0)
	v.SetDefault("economy.redis.keyPrefix", "strike:balance:")

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "strike")
	v.SetDefault("influx.bucket", "matches")
	v.SetDefault("influx.backupPath", "./logs/influx_backup.lp.gz")

	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.interval", "5s")
	v.SetDefault("monitor.statusFile", "./status.txt")

	v.SetDefault("history.flushInterval", "10s")
	v.SetDefault("history.batchSize", 100)

	v.SetDefault("game.ruleset-file", "")

	v.SetDefault("teams.t.name", "Terrorists")
	v.SetDefault("teams.t.prefix", "[T]")
	v.SetDefault("teams.ct.name", "Counter-Terrorists")
	v.SetDefault("teams.ct.prefix", "[CT]")

	setRuleDefaults(v)
}

func fromViper(v *viper.Viper) Config {
	cfg := Config{
		LogLevel: v.GetString("logLevel"),
		LogsDir:  v.GetString("logsDir"),
		Debug:    v.GetBool("general.debug"),
		Graylog: GraylogConfig{
			Enabled: v.GetBool("graylog.enabled"),
			Address: v.GetString("graylog.address"),
		},
		Storage: StorageConfig{
			Type:       v.GetString("storage.type"),
			MapsDir:    v.GetString("storage.mapsDir"),
			SQLitePath: v.GetString("storage.sqlitePath"),
		},
		Database: DatabaseConfig{
			Enabled:  v.GetBool("database.enabled"),
			Host:     v.GetString("database.host"),
			Port:     v.GetInt("database.port"),
			Username: v.GetString("database.username"),
			Password: v.GetString("database.password"),
			Database: v.GetString("database.database"),
		},
		Economy: EconomyConfig{
			Provider: v.GetString("economy.provider"),
			Redis: RedisConfig{
				Addr:      v.GetString("economy.redis.addr"),
				Password:  v.GetString("economy.redis.password"),
				DB:        v.GetInt("economy.redis.db"),
				KeyPrefix: v.GetString("economy.redis.keyPrefix"),
			},
		},
		Influx: InfluxConfig{
			Enabled:    v.GetBool("influx.enabled"),
			URL:        v.GetString("influx.url"),
			Token:      v.GetString("influx.token"),
			Org:        v.GetString("influx.org"),
			Bucket:     v.GetString("influx.bucket"),
			BackupPath: v.GetString("influx.backupPath"),
		},
		Monitor: MonitorConfig{
			Enabled:    v.GetBool("monitor.enabled"),
			Interval:   v.GetDuration("monitor.interval"),
			StatusFile: v.GetString("monitor.statusFile"),
		},
		History: HistoryConfig{
			FlushInterval: v.GetDuration("history.flushInterval"),
			BatchSize:     v.GetInt("history.batchSize"),
		},
		Rules:       rulesFromViper(v),
		RulesetFile: v.GetString("game.ruleset-file"),
	}
	cfg.Teams[core.SideA] = TeamConfig{Name: v.GetString("teams.t.name"), Prefix: v.GetString("teams.t.prefix")}
	cfg.Teams[core.SideB] = TeamConfig{Name: v.GetString("teams.ct.name"), Prefix: v.GetString("teams.ct.prefix")}

	if v.IsSet("lobby.main-spawn.world") {
		pos := core.NewPosition(
			v.GetString("lobby.main-spawn.world"),
			v.GetFloat64("lobby.main-spawn.x"),
			v.GetFloat64("lobby.main-spawn.y"),
			v.GetFloat64("lobby.main-spawn.z"),
			float32(v.GetFloat64("lobby.main-spawn.yaw")),
			float32(v.GetFloat64("lobby.main-spawn.pitch")),
		)
		cfg.MainLobby = &pos
	}
	return cfg
}

// Default returns the configuration used when no file is present.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}

// Manager owns the config file of one plugin instance.
type Manager struct {
	mu  sync.RWMutex
	dir string
	v   *viper.Viper
	cfg Config
}

// NewManager creates a manager for configDir. Call Load before Current.
func NewManager(configDir string) *Manager {
	return &Manager{dir: configDir, cfg: Default()}
}

// Load reads the config file and sets default values.
// When the file cannot be read the defaults are kept and the error is returned.
func (m *Manager) Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(m.dir)

	err := v.ReadInConfig()
	cfg := fromViper(v)

	m.mu.Lock()
	m.v = v
	m.cfg = cfg
	m.mu.Unlock()

	if err != nil {
		return cfg, fmt.Errorf("error reading config file: %w", err)
	}
	return cfg, nil
}

// Current returns the last loaded configuration.
func (m *Manager) Current() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// SetMainLobby stores the main lobby location and writes the config file.
func (m *Manager) SetMainLobby(pos core.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.v == nil {
		m.v = viper.New()
		setDefaults(m.v)
	}
	m.v.Set("lobby.main-spawn.world", pos.World)
	m.v.Set("lobby.main-spawn.x", pos.X())
	m.v.Set("lobby.main-spawn.y", pos.Y())
	m.v.Set("lobby.main-spawn.z", pos.Z())
	m.v.Set("lobby.main-spawn.yaw", float64(pos.Yaw))
	m.v.Set("lobby.main-spawn.pitch", float64(pos.Pitch))

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := m.v.WriteConfigAs(filepath.Join(m.dir, FileName)); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	p := pos
	m.cfg.MainLobby = &p
	return nil
}

// Load is a shortcut for NewManager(configDir).Load().
func Load(configDir string) (Config, error) {
	return NewManager(configDir).Load()
}
