package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidewatch/battlecore/internal/api"
	"github.com/tidewatch/battlecore/internal/battle"
	"github.com/tidewatch/battlecore/internal/combat"
	"github.com/tidewatch/battlecore/internal/config"
	"github.com/tidewatch/battlecore/internal/database"
	"github.com/tidewatch/battlecore/internal/dispatcher"
	"github.com/tidewatch/battlecore/internal/influx"
	"github.com/tidewatch/battlecore/internal/logging"
	"github.com/tidewatch/battlecore/internal/monitor"
	"github.com/tidewatch/battlecore/internal/notify"
	intOtel "github.com/tidewatch/battlecore/internal/otel"
	"github.com/tidewatch/battlecore/internal/storage"
	wsstorage "github.com/tidewatch/battlecore/internal/storage/websocket"
	"github.com/tidewatch/battlecore/internal/worker"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	ServiceName string = "battlecore"
)

// file paths
var (
	// ConfigDir holds battlecore.cfg.json.
	ConfigDir string

	// LogsDir is where log files, dumps and the status file are written.
	LogsDir string

	LogFilePath string
	LogFile     *os.File
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger feeds the components that log through zerolog
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	graylogHandler *logging.GraylogHandler

	SessionStartTime time.Time = time.Now()

	// Services
	battleManager   *battle.Manager
	workerManager   *worker.Manager
	monitorService  *monitor.Service
	influxManager   *influx.Manager
	narration       *notify.Buffer
	eventDispatcher *dispatcher.Dispatcher
	dbManager       *database.Manager

	storageBackend storage.Backend
	notifyBackend  *wsstorage.Backend
)

func main() {
	flag.StringVar(&ConfigDir, "config", ".", "directory containing "+config.ConfigFileName)
	flag.Parse()

	initLogging()
	Logger.Info("Starting up...", "version", CurrentVersion, "build", BuildDate)

	if args := flag.Args(); len(args) > 0 {
		if err := runCommand(args); err != nil {
			Logger.Error("Command failed", "command", args[0], "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := initServices(ctx); err != nil {
		Logger.Error("Failed to start", "error", err)
		shutdown()
		os.Exit(1)
	}

	srv := newServer(eventDispatcher, os.Stdout, Logger)
	Logger.Info("Ready for commands")
	if err := srv.serve(ctx, os.Stdin); err != nil && err != context.Canceled {
		Logger.Error("Command stream failed", "error", err)
	}

	shutdown()
}

// initLogging loads the config and sets up file, Graylog and OTel logging.
func initLogging() {
	var err error

	// console logging until the log file is open
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(os.Stderr, "info", nil)
	Logger = SlogManager.Logger()

	if err = config.Load(ConfigDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	LogsDir = config.GetString("logsDir")
	LogFile, LogFilePath, err = logging.OpenLogFile(LogsDir, ServiceName, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	var logWriter io.Writer = os.Stderr
	if LogFile != nil {
		logWriter = LogFile
	}
	ZLogger = zerolog.New(logWriter).With().Timestamp().Str("service", ServiceName).Logger()

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.FromConfig(otelCfg, CurrentVersion, logWriter))
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		} else {
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	var extra []slog.Handler
	if gl := config.GetGraylogConfig(); gl.Enabled {
		graylogHandler, err = logging.NewGraylogHandler(gl.Address, config.GetString("logLevel"))
		if err != nil {
			Logger.Error("Failed to set up Graylog", "error", err)
		} else {
			extra = append(extra, graylogHandler)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	SlogManager.SetContextProvider(func() []slog.Attr {
		if battleManager == nil {
			return nil
		}
		return []slog.Attr{slog.Int("activeSessions", battleManager.ActiveCount())}
	})
	SlogManager.Setup(logWriter, config.GetString("logLevel"), otelLogProvider, extra...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)
}

// initServices wires storage, sinks and the battle manager behind the dispatcher.
func initServices(ctx context.Context) error {
	var err error

	if err = initStorage(); err != nil {
		return err
	}

	// narration sinks
	narration = notify.NewBuffer(0)
	notifiers := notify.Fanout{narration}
	notifyCfg := config.GetNotifyConfig()
	if notifyCfg.Log {
		notifiers = append(notifiers, notify.NewLogNotifier(Logger))
	}
	if n, ok := storageBackend.(notify.Notifier); ok {
		notifiers = append(notifiers, n)
	} else if notifyCfg.WebsocketURL != "" {
		notifyBackend = wsstorage.New(wsstorage.Config{
			URL:    notifyCfg.WebsocketURL,
			Secret: notifyCfg.WebsocketSecret,
			Logger: Logger,
		})
		if err := notifyBackend.Init(); err != nil {
			Logger.Error("Failed to connect narration websocket", "error", err)
			notifyBackend = nil
		} else {
			notifiers = append(notifiers, notifyBackend)
		}
	}

	// metrics
	var roundSink battle.MetricsSink
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		influxManager = influx.NewManager(ZLogger, filepath.Join(LogsDir, "influx_backup.lp.gz"))
		if err := influxManager.Connect(influxCfg); err != nil {
			Logger.Error("Failed to connect to InfluxDB", "error", err)
		}
		roundSink = influxManager
	}

	// dashboard reports
	var reporter battle.Reporter
	if apiCfg := config.GetAPIConfig(); apiCfg.Enabled {
		client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
		if u, ok := storageBackend.(storage.Uploadable); ok {
			client.WithExports(u)
		}
		if err := client.Healthcheck(); err != nil {
			Logger.Warn("Dashboard is not reachable, reports may fail", "error", err)
		}
		reporter = client
	}

	var players storage.PlayerStore
	if ps, ok := storageBackend.(storage.PlayerStore); ok {
		players = ps
	}

	battleManager, err = battle.NewManager(battle.Dependencies{
		Config:     config.GetBattleConfig(),
		Roller:     combat.NewRandRoller(),
		Recorder:   storageBackend,
		Players:    players,
		Notifier:   notifiers,
		Metrics:    roundSink,
		Reporter:   reporter,
		LogManager: SlogManager,
	})
	if err != nil {
		return fmt.Errorf("failed to create battle manager: %w", err)
	}

	// status surface
	monitorCfg := config.GetMonitorConfig()
	monitorDeps := monitor.Dependencies{
		Battles:    battleManager,
		Cache:      battleManager.Cache(),
		LogManager: SlogManager,
		Recorder:   storageBackend,
		DB:         storageDB(storageBackend),
		StatusDir:  LogsDir,
	}
	if influxManager != nil {
		monitorDeps.Influx = influxManager
	}
	if monitorCfg.Enabled {
		monitorDeps.Address = monitorCfg.Address
	}
	monitorService = monitor.NewService(monitorDeps)
	if err := monitorService.Start(); err != nil {
		Logger.Error("Failed to start status monitor", "error", err)
	}

	// commands
	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(ZLogger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	workerDeps := worker.Dependencies{
		Battles:    battleManager,
		LogManager: SlogManager,
		Narration:  narration,
		Monitor:    monitorService,
	}
	if influxManager != nil {
		workerDeps.Metrics = influxManager
	}
	workerManager = worker.NewManager(ctx, workerDeps)
	workerManager.RegisterHandlers(eventDispatcher)
	Logger.Info("Command handlers registered")
	return nil
}

// shutdown aborts running battles and closes every sink in reverse order.
func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	Logger.Info("Shutting down...")
	if eventDispatcher != nil {
		if err := eventDispatcher.Close(ctx); err != nil {
			Logger.Error("Queued commands did not drain in time", "error", err)
		}
	}
	if battleManager != nil {
		if err := battleManager.Shutdown(ctx); err != nil {
			Logger.Error("Battle sessions did not stop in time", "error", err)
		}
	}
	if OTelProvider != nil {
		if err := OTelProvider.Flush(ctx); err != nil {
			Logger.Error("Failed to flush OTel logs", "error", err)
		}
	}
	if monitorService != nil {
		monitorService.Stop()
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Error("Failed to close InfluxDB", "error", err)
		}
	}
	if notifyBackend != nil {
		if err := notifyBackend.Close(); err != nil {
			Logger.Error("Failed to close narration websocket", "error", err)
		}
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}
	if dbManager != nil && dbManager.ShouldSaveLocal {
		if err := dbManager.DumpMemoryToDisk(); err != nil {
			Logger.Error("Failed to dump fallback database", "error", err)
		}
	}

	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shut down OTel: %v\n", err)
		}
	}
	if graylogHandler != nil {
		_ = graylogHandler.Close()
	}
	Logger.Info("Stopped")
	if LogFile != nil {
		_ = LogFile.Close()
	}
}
