package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/echotype/echotype/pkg/commands"
	"github.com/echotype/echotype/pkg/config"
	"github.com/echotype/echotype/pkg/crypto"
	"github.com/echotype/echotype/pkg/database"
	"github.com/echotype/echotype/pkg/dispatch"
	"github.com/echotype/echotype/pkg/input"
	"github.com/echotype/echotype/pkg/logger"
	"github.com/echotype/echotype/pkg/metrics"
	"github.com/echotype/echotype/pkg/network"
	"github.com/echotype/echotype/pkg/phrases"
	"github.com/echotype/echotype/pkg/session"
	"github.com/echotype/echotype/pkg/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configFile := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("EchoType %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := newLogger(cfg.Logging)

	// Validate only mode
	if *validate {
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	log.Info("Starting EchoType",
		logger.String("version", version),
		logger.String("build_time", buildTime))

	// Resolve the desktop device identity
	deviceID, err := resolveDeviceID(cfg)
	if err != nil {
		log.Error("Failed to resolve device identity", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Device identity resolved", logger.String("device_id", deviceID))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize wait group for goroutines
	var wg sync.WaitGroup

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector()

	// Start Prometheus metrics server if enabled
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metricsServer := metrics.NewPrometheusServer(
				metrics.PrometheusConfig{
					Enabled: cfg.Metrics.Prometheus.Enabled,
					Port:    cfg.Metrics.Prometheus.Port,
					Path:    cfg.Metrics.Prometheus.Path,
				},
				metricsCollector,
				log.WithComponent("metrics"),
			)
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
		log.Info("Prometheus metrics server started",
			logger.Int("port", cfg.Metrics.Prometheus.Port),
			logger.String("path", cfg.Metrics.Prometheus.Path))
	}

	// Open the database
	db, err := database.NewDB(database.Config{Path: cfg.Database.Path}, log.WithComponent("database"))
	if err != nil {
		log.Error("Failed to open database", logger.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database", logger.Error(err))
		}
	}()

	phraseRepo := database.NewPhraseRepository(db.GetDB())
	historyRepo := database.NewHistoryRepository(db.GetDB())
	deviceRepo := database.NewDeviceRepository(db.GetDB())

	// Prune old history on startup
	if cfg.Commands.HistoryEnabled && cfg.Commands.HistoryDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.Commands.HistoryDays)
		if deleted, err := historyRepo.DeleteOlderThan(cutoff); err != nil {
			log.Warn("History pruning failed", logger.Error(err))
		} else if deleted > 0 {
			log.Info("Pruned old history entries", logger.Int64("deleted", deleted))
		}
	}

	// Voice command pipeline
	phraseStore, err := phrases.NewStore(phraseRepo, log)
	if err != nil {
		log.Error("Failed to load phrase mappings", logger.Error(err))
		os.Exit(1)
	}
	matcher := commands.NewMatcher(phraseStore, log)
	wordBuffer := commands.NewWordBuffer(matcher, log)
	injector := input.NewLogInjector(log)

	// Session and transport
	manager := session.NewManager()
	events := make(chan session.Event, 64)

	dispatcher := dispatch.New(events, matcher, wordBuffer, injector, phraseStore, log, metricsCollector)
	if cfg.Commands.HistoryEnabled {
		dispatcher.WithHistory(historyRepo)
	}
	dispatcher.WithDevices(deviceRepo)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dispatcher.Run(ctx); err != nil && err != context.Canceled {
			log.Error("Dispatcher error", logger.Error(err))
		}
	}()

	transport := network.NewServer(
		network.Config{Host: cfg.Transport.Host, Port: cfg.Transport.Port},
		deviceID, manager, events, metricsCollector, log,
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := transport.Start(ctx); err != nil && err != context.Canceled {
			log.Error("Transport server error", logger.Error(err))
		}
	}()
	log.Info("Transport server started",
		logger.String("host", cfg.Transport.Host),
		logger.Int("port", cfg.Transport.Port))

	// Start web server if enabled
	if cfg.Web.Enabled {
		api := web.NewAPI(manager, phraseStore, log.WithComponent("web")).
			WithHistory(historyRepo).
			WithDevices(deviceRepo).
			WithRecorder(dispatcher)
		webServer := web.NewServer(cfg.Web, api, log.WithComponent("web"))

		// Forward session events to UI clients
		dispatcher.SetEventHook(webServer.GetHub().BroadcastConnectionEvent)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := webServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Web server error", logger.Error(err))
			}
		}()
		log.Info("Web server started",
			logger.String("host", cfg.Web.Host),
			logger.Int("port", cfg.Web.Port))
	}

	log.Info("EchoType initialized",
		logger.String("server_name", cfg.Server.Name))

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("Received shutdown signal",
		logger.String("signal", sig.String()))

	// Cancel context to trigger graceful shutdown
	cancel()

	// Wait for all components to stop
	wg.Wait()

	log.Info("EchoType stopped")
}

// newLogger builds the root logger, sending output to the configured file
// when one is set.
func newLogger(cfg config.LoggingConfig) *logger.Logger {
	lc := logger.Config{Level: cfg.Level, Format: cfg.Format}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", cfg.File, err)
		} else {
			lc.Output = f
		}
	}
	return logger.New(lc)
}

// resolveDeviceID returns the configured device ID, or generates one on
// first run and persists it next to the database file.
func resolveDeviceID(cfg *config.Config) (string, error) {
	if cfg.Server.DeviceID != "" {
		return cfg.Server.DeviceID, nil
	}

	idPath := filepath.Join(filepath.Dir(cfg.Database.Path), "device_id")
	if data, err := os.ReadFile(idPath); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id, err := crypto.GenerateDeviceID()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(idPath, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}
