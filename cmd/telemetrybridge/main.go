// Telemetry Bridge
//
// This is the main entry point for the telemetry bridge. It subscribes to
// sensor and actuator topics on an MQTT broker (or runs a local simulator
// when no broker is reachable), keeps the latest readings in memory, pushes
// every change to websocket clients and relays actuator commands back to
// the broker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/nerrad567/telemetry-bridge/internal/api"
	"github.com/nerrad567/telemetry-bridge/internal/commandlog"
	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/config"
	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/database"
	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/telemetry-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/telemetry-bridge/internal/metrics"
	"github.com/nerrad567/telemetry-bridge/internal/telemetry"
	"github.com/nerrad567/telemetry-bridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path. A missing file is not an error.
const defaultConfigPath = "configs/config.yaml"

// startupHealthTimeout bounds the health checks run once everything is up.
const startupHealthTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the CLI: the root command runs the service,
// `version` prints build information and `migrate` manages the command
// log schema.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "telemetrybridge",
		Short:         "Bridge MQTT telemetry to websocket dashboards",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Cancel on Ctrl+C or SIGTERM for graceful shutdown.
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := run(ctx, configPath); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return err
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(), "path to configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "telemetrybridge %s (commit %s, built %s)\n", version, commit, date)
		},
	})

	root.AddCommand(newMigrateCmd(&configPath))

	return root
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting telemetry bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	clock := clockwork.NewRealClock()
	hub := api.NewHub(cfg.WebSocket, log.With("component", "websocket"))
	state := telemetry.NewState(clock, hub)

	// Command log (optional)
	var (
		db       *database.DB
		commands commandlog.Repository
		recorder telemetry.CommandRecorder
	)
	if cfg.Database.Enabled {
		db, err = openCommandLog(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		repo := commandlog.NewSQLiteRepository(db.DB)
		commands = repo
		recorder = commandlog.NewRecorder(repo, clock)
	} else {
		log.Info("command log disabled")
	}

	// Telemetry source: broker bridge, falling back to the simulator.
	var (
		publisher  telemetry.Publisher
		broker     api.BrokerStatus
		mqttClient *mqtt.Client
		mode       = metrics.ModeSimulator
	)
	if cfg.MQTT.Enabled {
		client, bridge, brokerErr := startBroker(ctx, cfg, state, log)
		if brokerErr != nil {
			log.Warn("broker unavailable, falling back to simulator", "error", brokerErr)
		} else {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := client.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			defer bridge.Stop()
			publisher = client
			broker = client
			mqttClient = client
			mode = metrics.ModeBroker
		}
	} else {
		log.Info("MQTT disabled, using simulator")
	}

	if mode == metrics.ModeSimulator {
		if err := startSimulator(ctx, cfg.Simulator, state, clock, log); err != nil {
			return err
		}
	}
	metrics.SetSourceMode(mode)

	relay, err := telemetry.NewRelay(telemetry.RelayOptions{
		State:        state,
		Publisher:    publisher,
		CommandTopic: cfg.MQTT.Topics.ActuatorCommand,
		QoS:          byte(cfg.MQTT.QoS), //nolint:gosec // validated 0-2 by config
		Logger:       log.With("component", "relay"),
		Recorder:     recorder,
	})
	if err != nil {
		return fmt.Errorf("creating command relay: %w", err)
	}

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Metrics:    cfg.Metrics,
		Logger:     log.With("component", "api"),
		Query:      telemetry.NewQueryService(state),
		Relay:      relay,
		Hub:        hub,
		Commands:   commands,
		DB:         db,
		Broker:     broker,
		SourceMode: mode,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	healthCtx, healthCancel := context.WithTimeout(ctx, startupHealthTimeout)
	err = healthCheck(healthCtx, db, mqttClient, server)
	healthCancel()
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("telemetry bridge started",
		"source", mode,
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// openCommandLog opens the SQLite command log and applies migrations.
func openCommandLog(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("command log ready", "path", cfg.Path)
	return db, nil
}

// startBroker connects to the broker and subscribes the bridge. On error
// nothing is left running.
func startBroker(ctx context.Context, cfg *config.Config, state *telemetry.State, log *logging.Logger) (*mqtt.Client, *telemetry.Bridge, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	bridge, err := telemetry.NewBridge(telemetry.BridgeOptions{
		Client: client,
		State:  state,
		Topics: telemetry.BridgeTopics{
			Sensor:        cfg.MQTT.Topics.Sensor,
			ActuatorState: cfg.MQTT.Topics.ActuatorState,
		},
		QoS:    byte(cfg.MQTT.QoS), //nolint:gosec // validated 0-2 by config
		Logger: log.With("component", "bridge"),
	})
	if err == nil {
		err = bridge.Start(ctx)
	}
	if err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("starting bridge: %w", err)
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", client.ClientID(),
		"sensor_topic", cfg.MQTT.Topics.Sensor,
		"actuator_topic", cfg.MQTT.Topics.ActuatorState,
	)
	return client, bridge, nil
}

// startSimulator launches the simulator loop for the lifetime of ctx.
func startSimulator(ctx context.Context, cfg config.SimulatorConfig, state *telemetry.State, clock clockwork.Clock, log *logging.Logger) error {
	opts := telemetry.SimulatorOptions{
		State:    state,
		Clock:    clock,
		Interval: cfg.Interval,
		Logger:   log.With("component", "simulator"),
	}
	if cfg.Seed != 0 {
		opts.Rand = telemetry.NewSeededRand(cfg.Seed)
	}

	sim, err := telemetry.NewSimulator(opts)
	if err != nil {
		return fmt.Errorf("creating simulator: %w", err)
	}
	go sim.Run(ctx)
	return nil
}

// healthCheck verifies the components that came up are healthy.
// db and mqttClient are nil when the command log or broker is not in use.
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, server *api.Server) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}

// getConfigPath returns the config file path from environment or default.
func getConfigPath() string {
	if path := os.Getenv("TELEMETRY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
