// Package main is the entry point for the Spotify RGB sync agent. It
// loads configuration, wires the Spotify poller, palette extractor,
// visualizer and OpenRGB client together, and runs the sync loop in the
// foreground until interrupted. The setup flags install or remove the
// login autostart entry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spotrgb/agent/internal/autostart"
	"github.com/spotrgb/agent/internal/config"
	"github.com/spotrgb/agent/internal/detect"
	"github.com/spotrgb/agent/internal/engine"
	"github.com/spotrgb/agent/internal/monitor"
	"github.com/spotrgb/agent/internal/openrgb"
	"github.com/spotrgb/agent/internal/palette"
	"github.com/spotrgb/agent/internal/setup"
	"github.com/spotrgb/agent/internal/spotify"
)

var (
	// version is set at build time via -ldflags.
	version = "dev"

	configPath    = flag.String("config", "", "Path to configuration file (default: per-user location)")
	showVersion   = flag.Bool("version", false, "Show version and exit")
	debug         = flag.Bool("debug", false, "Force debug logging")
	runSetup      = flag.Bool("setup", false, "Install the login autostart entry and exit")
	runRemove     = flag.Bool("remove", false, "Remove the login autostart entry and exit")
	startupStatus = flag.Bool("startup-status", false, "Report whether autostart is registered and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("spotrgb %s\n", version)
		os.Exit(0)
	}

	if *runSetup || *runRemove || *startupStatus {
		os.Exit(runSetupCommand())
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}

	logger := initLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting Spotify RGB sync",
		zap.String("version", version),
		zap.String("config", path))

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal, shutting down",
			zap.String("signal", sig.String()))
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Engine failed", zap.Error(err))
	}
	logger.Info("Stopped")
}

// runSetupCommand handles the install/remove/status flags. Returns the
// process exit code; failures are non-zero so scripts can branch on them.
func runSetupCommand() int {
	mgr := autostart.New()
	switch {
	case *runSetup:
		if err := setup.Install(version, mgr, setup.ResolvePaths()); err != nil {
			fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
			return 1
		}
	case *runRemove:
		if err := setup.Remove(mgr); err != nil {
			fmt.Fprintf(os.Stderr, "Remove failed: %v\n", err)
			return 1
		}
	case *startupStatus:
		installed, err := setup.Status(mgr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status check failed: %v\n", err)
			return 1
		}
		if !installed {
			return 2
		}
	}
	return 0
}

// run assembles the engine and blocks until the context is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var store *palette.Store
	if cfg.Cache.DBPath != "" {
		var err error
		store, err = palette.OpenStore(cfg.Cache.DBPath)
		if err != nil {
			logger.Warn("palette cache unavailable, continuing without", zap.Error(err))
		} else {
			defer store.Close()
		}
	}

	bridge := monitor.NewBridge()
	eng := engine.New(engine.Options{
		Config:    cfg,
		Logger:    logger,
		Spotify:   spotify.New(cfg.Spotify, logger.Named("spotify")),
		RGB:       openrgb.New(cfg.OpenRGB, logger.Named("openrgb")),
		Extractor: palette.New(cfg.Bands, store, logger.Named("palette")),
		Detector:  detect.New(cfg.Spotify.ProcessName, logger.Named("detect")),
		Bridge:    bridge,
	})

	if cfg.Monitor.Enabled {
		srv := monitor.NewServer(cfg.Monitor, bridge, eng.Devices, logger.Named("monitor"))
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	return eng.Run(ctx)
}

// initLogger creates a zap logger that writes human-readable output to
// the console and, when configured, structured JSON to a log file.
func initLogger(cfg *config.Config) *zap.Logger {
	var level zapcore.Level
	switch cfg.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	cores := []zapcore.Core{consoleCore}

	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			fileCore := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			)
			cores = append(cores, fileCore)
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}
