// Package app wires configuration, storage, the match services and the
// command surface into one plugin instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/man10/strike/internal/command"
	"github.com/man10/strike/internal/config"
	"github.com/man10/strike/internal/coordinator"
	"github.com/man10/strike/internal/database"
	"github.com/man10/strike/internal/dispatcher"
	"github.com/man10/strike/internal/economy"
	economyredis "github.com/man10/strike/internal/economy/redis"
	"github.com/man10/strike/internal/history"
	"github.com/man10/strike/internal/influx"
	"github.com/man10/strike/internal/logging"
	"github.com/man10/strike/internal/maps"
	"github.com/man10/strike/internal/monitor"
	"github.com/man10/strike/internal/setup"
	"github.com/man10/strike/internal/storage"
	"github.com/man10/strike/internal/storage/backends"
	"github.com/man10/strike/pkg/core"
	"github.com/man10/strike/pkg/host"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Options configures an App.
type Options struct {
	ConfigDir string
	Host      host.Host
	// Logger replaces the configured slog setup; LogOutput is then ignored.
	Logger *slog.Logger
	// LogOutput receives log records instead of a session file in logsDir.
	LogOutput io.Writer
	// TickInterval drives matches; zero means one second, negative disables ticking.
	TickInterval time.Duration
}

// App is one enabled plugin instance.
type App struct {
	opts Options
	cfgs *config.Manager

	mu      sync.Mutex
	enabled bool
	cfg     config.Config

	log     *slog.Logger
	zlog    zerolog.Logger
	closers []io.Closer

	db         *database.Manager
	mapStore   storage.MapBackend
	histStore  storage.HistoryBackend
	influx     *influx.Manager
	redis      *economyredis.Provider
	economy    *economy.Bridge
	registry   *maps.Registry
	coord      atomic.Pointer[coordinator.Coordinator]
	history    *history.Recorder
	monitor    *monitor.Service
	sessions   *setup.Sessions
	commands   *command.Service
	dispatcher *dispatcher.Dispatcher
	bridge     *host.Bridge
}

// New creates a disabled App.
func New(opts Options) *App {
	if opts.ConfigDir == "" {
		opts.ConfigDir = "."
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = time.Second
	}
	return &App{opts: opts, cfgs: config.NewManager(opts.ConfigDir)}
}

// Enable loads configuration and starts every service.
func (a *App) Enable(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enabled {
		return nil
	}

	cfg, cfgErr := a.cfgs.Load()
	if err := a.setupLogging(cfg); err != nil {
		return err
	}
	if cfgErr != nil {
		a.log.Warn("Using default configuration", "dir", a.opts.ConfigDir, "error", cfgErr)
	}
	cfg.Rules = a.rules(cfg)
	if err := cfg.Rules.Validate(); err != nil {
		a.closeAll()
		return fmt.Errorf("invalid game rules: %w", err)
	}
	a.cfg = cfg

	if err := a.setupStorage(cfg); err != nil {
		a.closeAll()
		return err
	}
	a.setupEconomy(ctx, cfg)
	a.setupHistory(ctx, cfg)

	a.registry = maps.New(a.mapStore, a.opts.Host, a.log)
	if n, err := a.registry.Load(ctx); err != nil {
		a.log.Error("Failed to load maps", "error", err)
	} else {
		a.log.Info("Maps loaded", "count", n)
	}

	tick := a.opts.TickInterval
	if tick < 0 {
		tick = 0
	}
	coord, err := coordinator.New(coordinator.Dependencies{
		Maps:         a.registry,
		Host:         a.opts.Host,
		Economy:      a.economy,
		Logger:       a.log,
		Rules:        cfg.Rules,
		MainLobby:    cfg.MainLobby,
		TeamNames:    [2]string{cfg.TeamName(core.SideA), cfg.TeamName(core.SideB)},
		History:      a.history,
		TickInterval: tick,
	})
	if err != nil {
		a.closeAll()
		return fmt.Errorf("creating coordinator: %w", err)
	}
	a.coord.Store(coord)

	if err := a.setupCommands(); err != nil {
		coord.Shutdown()
		a.closeAll()
		return err
	}

	if cfg.Monitor.Enabled {
		a.monitor = monitor.NewService(monitor.Dependencies{
			Matches:        coord,
			Logger:         a.log,
			StatusFile:     cfg.Monitor.StatusFile,
			PendingHistory: a.history.Pending,
		})
		a.monitor.Start(cfg.Monitor.Interval)
	}

	a.enabled = true
	a.log.Info("Strike enabled",
		"maps", len(a.registry.All()),
		"storage", cfg.Storage.Type,
		"economy", a.economy.IsEnabled(),
	)
	return nil
}

func (a *App) setupLogging(cfg config.Config) error {
	if a.opts.Logger != nil {
		a.log = a.opts.Logger
		a.zlog = zerolog.Nop()
		return nil
	}

	out := a.opts.LogOutput
	if out == nil {
		if err := os.MkdirAll(cfg.LogsDir, 0o755); err != nil {
			return fmt.Errorf("creating logs dir: %w", err)
		}
		path := logging.LogFilePath(cfg.LogsDir, "strike", time.Now())
		file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		a.closers = append(a.closers, file)
		out = file
	}

	var extra []slog.Handler
	if cfg.Graylog.Enabled {
		h, w, err := logging.NewGelfHandler(cfg.Graylog.Address, cfg.LogLevel)
		if err != nil {
			fmt.Fprintf(out, "graylog disabled: %v\n", err)
		} else {
			extra = append(extra, h)
			a.closers = append(a.closers, w)
		}
	}

	manager := logging.NewSlogManager(a.logContext)
	manager.Setup(out, cfg.LogLevel, extra...)
	a.log = manager.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}
	a.zlog = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}).Level(level).With().Timestamp().Logger().
		Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			if c := a.coord.Load(); c != nil {
				e.Int("activeMatches", c.ActiveCount())
			}
		}))
	return nil
}

// rules returns the ruleset file's rules when one is configured and readable,
// and the config file's game section otherwise.
func (a *App) rules(cfg config.Config) config.Rules {
	if cfg.RulesetFile == "" {
		return cfg.Rules
	}
	path := cfg.RulesetFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.opts.ConfigDir, path)
	}
	r, err := config.LoadRuleset(path)
	if err != nil {
		a.log.Warn("Ruleset file ignored", "path", path, "error", err)
		return cfg.Rules
	}
	a.log.Info("Ruleset loaded", "path", path)
	return r
}

// logContext adds live match counts to every slog record.
func (a *App) logContext(context.Context) []slog.Attr {
	c := a.coord.Load()
	if c == nil {
		return nil
	}
	return []slog.Attr{
		slog.Int("activeMatches", c.ActiveCount()),
		slog.Int("playersInMatches", c.PlayerCount()),
	}
}

func (a *App) setupStorage(cfg config.Config) error {
	var db *gorm.DB
	needsDB := cfg.Storage.Type == "sqlite" || cfg.Storage.Type == "postgres" || cfg.Database.Enabled
	if needsDB {
		dbCfg := cfg.Database
		if cfg.Storage.Type == "postgres" {
			dbCfg.Enabled = true
		}
		a.db = database.NewManager(a.zlog, dbCfg, cfg.Storage.SQLitePath)
		if err := a.db.Connect(); err != nil {
			return fmt.Errorf("connecting database: %w", err)
		}
		db = a.db.DB
	}

	mapStore, err := backends.NewMapBackend(cfg.Storage, db, a.log)
	if err != nil {
		return err
	}
	if err := mapStore.Init(); err != nil {
		return fmt.Errorf("initializing map storage: %w", err)
	}
	a.mapStore = mapStore

	histStore := backends.NewHistoryBackend(db, a.log)
	if err := histStore.Init(); err != nil {
		return fmt.Errorf("initializing history storage: %w", err)
	}
	a.histStore = histStore
	return nil
}

func (a *App) setupEconomy(ctx context.Context, cfg config.Config) {
	var provider economy.Provider
	switch cfg.Economy.Provider {
	case "redis":
		p, err := economyredis.Connect(ctx, economyredis.Options{
			Addr:      cfg.Economy.Redis.Addr,
			Password:  cfg.Economy.Redis.Password,
			DB:        cfg.Economy.Redis.DB,
			KeyPrefix: cfg.Economy.Redis.KeyPrefix,
		})
		if err != nil {
			a.log.Warn("Economy disabled", "error", err)
			break
		}
		a.redis = p
		provider = p
	case "", "none":
	default:
		a.log.Warn("Unknown economy provider, economy disabled", "provider", cfg.Economy.Provider)
	}
	a.economy = economy.NewBridge(provider, a.log)
}

func (a *App) setupHistory(ctx context.Context, cfg config.Config) {
	var metrics history.MatchWriter
	if cfg.Influx.Enabled {
		a.influx = influx.NewManager(a.zlog, cfg.Influx)
		if err := a.influx.Connect(ctx); err != nil {
			a.log.Error("InfluxDB disabled", "error", err)
		} else {
			metrics = a.influx
		}
	}
	a.history = history.New(history.Dependencies{
		Store:     a.histStore,
		Metrics:   metrics,
		Logger:    a.log,
		BatchSize: cfg.History.BatchSize,
	})
	if cfg.History.FlushInterval > 0 {
		a.history.Start(cfg.History.FlushInterval)
	}
}

func (a *App) setupCommands() error {
	d, err := dispatcher.New(a.log.With("component", "dispatcher"))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	a.dispatcher = d
	a.sessions = setup.NewSessions(a.registry, a.opts.Host, a.log)
	a.commands = command.NewService(command.Dependencies{
		Coordinator:   a.coord.Load(),
		Maps:          a.registry,
		Setup:         a.sessions,
		Host:          a.opts.Host,
		Economy:       a.economy,
		Logger:        a.log,
		Reload:        a.Reload,
		SaveMainLobby: a.cfgs.SetMainLobby,
	})
	a.commands.Register(d)
	a.bridge = host.NewBridge(d, command.Describe)
	return nil
}

// Reload re-reads the config file and the maps. New rules apply to matches
// created afterwards.
func (a *App) Reload(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return fmt.Errorf("%w: not enabled", core.ErrState)
	}

	cfg, err := a.cfgs.Load()
	if err != nil {
		return err
	}
	cfg.Rules = a.rules(cfg)
	if err := cfg.Rules.Validate(); err != nil {
		return fmt.Errorf("invalid game rules: %w", err)
	}
	a.cfg = cfg

	coord := a.coord.Load()
	coord.SetRules(cfg.Rules)
	coord.SetMainLobby(cfg.MainLobby)

	n, err := a.registry.Reload(ctx)
	if err != nil {
		return fmt.Errorf("reloading maps: %w", err)
	}
	a.log.Info("Configuration reloaded", "maps", n)
	return nil
}

// Disable ends every match, flushes history and releases all resources.
func (a *App) Disable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return nil
	}
	a.enabled = false

	if a.monitor != nil {
		a.monitor.Stop()
	}
	if c := a.coord.Load(); c != nil {
		c.Shutdown()
	}
	a.dispatcher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var errs []error
	if err := a.history.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flushing history: %w", err))
	}
	a.log.Info("Strike disabled")
	errs = append(errs, a.closeAll())
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	if a.influx != nil {
		errs = append(errs, a.influx.Close())
		a.influx = nil
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	if a.mapStore != nil {
		errs = append(errs, a.mapStore.Close())
		a.mapStore = nil
	}
	if a.histStore != nil {
		errs = append(errs, a.histStore.Close())
		a.histStore = nil
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
		a.db = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Call runs a command for sender and returns the host reply.
func (a *App) Call(sender core.PlayerID, cmd string, args ...string) string {
	a.mu.Lock()
	b := a.bridge
	enabled := a.enabled
	a.mu.Unlock()
	if !enabled || b == nil {
		return host.FormatResponse(cmd, nil, fmt.Errorf("%w: not enabled", core.ErrState), command.Describe)
	}
	return b.Call(sender, cmd, args...)
}

// PlayerQuit queues the removal of a disconnected player from its match and
// wizard. It does not block the host's event thread.
func (a *App) PlayerQuit(p core.PlayerID) {
	a.mu.Lock()
	d := a.dispatcher
	enabled := a.enabled
	a.mu.Unlock()
	if !enabled {
		return
	}
	if _, err := d.Dispatch(dispatcher.Event{Command: command.QuitCommand, Sender: p}); err != nil {
		a.log.Error("Failed to queue player quit", "player", p, "error", err)
	}
}

// Config returns the active configuration.
func (a *App) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Coordinator returns the match coordinator, or nil before Enable.
func (a *App) Coordinator() *coordinator.Coordinator { return a.coord.Load() }

// Maps returns the map registry, or nil before Enable.
func (a *App) Maps() *maps.Registry { return a.registry }

// History returns the match history recorder, or nil before Enable.
func (a *App) History() *history.Recorder { return a.history }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	if a.log == nil {
		return slog.Default()
	}
	return a.log
}
