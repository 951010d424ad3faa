// Gray Logic BLE - GAP identity bridge
//
// This is the main entry point for the Gray Logic BLE bridge. It reads the
// Device Name and Appearance of every BLE peripheral a proxy connects to
// and keeps the device registry in step with what the peripheral reports.
//
// Proxies are the radio side: they hold the BLE links and exchange
// connection, discovery and ATT read traffic with this process over MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/gray-logic-ble/migrations"

	"github.com/nerrad567/gray-logic-ble/internal/bridges/bleproxy"
	"github.com/nerrad567/gray-logic-ble/internal/device"
	"github.com/nerrad567/gray-logic-ble/internal/gap"
	"github.com/nerrad567/gray-logic-ble/internal/gatt"
	"github.com/nerrad567/gray-logic-ble/internal/identity"
	"github.com/nerrad567/gray-logic-ble/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ble/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-ble/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-ble/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-ble/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// options holds the parsed command line.
type options struct {
	configPath  string
	showVersion bool
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Printf("graylogic-ble %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if opts.configPath != "" {
		os.Setenv("GRAYLOGIC_CONFIG", opts.configPath)
	}

	// Cancel on Ctrl+C or SIGTERM so the deferred shutdown chain runs
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command line arguments. Usage text goes to output.
func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("graylogic-ble", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (overrides GRAYLOGIC_CONFIG)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if flagSet.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic BLE",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	deviceRepo := device.NewSQLiteRepository(db.DB)
	deviceRegistry := device.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// InfluxDB is optional
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Every session operation runs on this loop. It outlives ctx so the
	// bridge can still close its links on it during shutdown.
	loop := gatt.NewLoop()
	loop.SetLogger(log)
	go loop.Run(context.Background())
	defer func() {
		loop.Stop()
		<-loop.Done()
	}()

	storeOpts := identity.Options{
		Registry:  deviceRegistry,
		Publisher: mqttClient,
		QoS:       byte(cfg.MQTT.QoS),
		Logger:    log,
	}
	if influxClient != nil {
		storeOpts.Telemetry = influxClient
	}
	store := identity.NewStore(storeOpts)

	sessions := gap.NewRegistry(gap.Options{
		Store:  store,
		Logger: log,
	})

	if cfg.BLE.Enabled {
		bridge, bridgeErr := startBLEBridge(ctx, cfg, loop, sessions, deviceRegistry, mqttClient, influxClient, log)
		if bridgeErr != nil {
			return fmt.Errorf("starting BLE bridge: %w", bridgeErr)
		}
		defer func() {
			log.Info("stopping BLE bridge")
			bridge.Stop()
		}()
	} else {
		log.Info("BLE bridge disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. BLE bridge
	// 2. Event loop
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	stats := store.GetStats()
	log.Info("Gray Logic BLE stopped",
		"names_stored", stats.NamesStored,
		"appearances_stored", stats.AppearanceStored,
		"write_failures", stats.WriteFailures,
	)
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// loadBridgeConfig reads the proxy bridge configuration. An empty path
// selects the built-in defaults, which accept every proxy.
func loadBridgeConfig(path string) (*bleproxy.Config, error) {
	if path == "" {
		return bleproxy.DefaultConfig(), nil
	}
	return bleproxy.LoadConfig(path)
}

// startBLEBridge initialises and starts the BLE proxy bridge.
//
// Parameters:
//   - ctx: Context for startup/cancellation
//   - cfg: Application configuration
//   - loop: Event loop shared with the session registry
//   - sessions: GAP session registry driven by the bridge
//   - registry: Device registry for seeding and health
//   - mqttClient: MQTT client for publishing/subscribing
//   - influxClient: InfluxDB client (may be nil if disabled)
//   - log: Logger instance
//
// Returns:
//   - *bleproxy.Bridge: Running bridge
//   - error: If the bridge fails to start
func startBLEBridge(
	ctx context.Context,
	cfg *config.Config,
	loop *gatt.Loop,
	sessions *gap.Registry,
	registry *device.Registry,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	log *logging.Logger,
) (*bleproxy.Bridge, error) {
	bridgeCfg, err := loadBridgeConfig(cfg.BLE.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("loading BLE bridge config: %w", err)
	}
	log.Info("BLE bridge config loaded",
		"path", cfg.BLE.ConfigFile,
		"bridge_id", bridgeCfg.Bridge.ID,
		"proxies", len(bridgeCfg.Proxies),
		"devices", len(bridgeCfg.Devices),
	)

	opts := bleproxy.BridgeOptions{
		Config:     bridgeCfg,
		MQTTClient: &mqttBridgeAdapter{client: mqttClient, log: log},
		Loop:       loop,
		Sessions:   sessions,
		Registry:   registry,
		Version:    version,
		Logger:     log.With("component", "bleproxy"),
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}

	bridge, err := bleproxy.NewBridge(opts)
	if err != nil {
		return nil, fmt.Errorf("creating BLE bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting BLE bridge: %w", err)
	}
	log.Info("BLE bridge started", "bridge_id", bridgeCfg.Bridge.ID)

	return bridge, nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - BLE bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
	log    *logging.Logger
}

// Publish implements bleproxy.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bleproxy.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// Unsubscribe implements bleproxy.MQTTClient.
func (a *mqttBridgeAdapter) Unsubscribe(topic string) error {
	if err := a.client.Unsubscribe(topic); err != nil {
		a.log.Warn("unsubscribe failed", "topic", topic, "error", err)
		return err
	}
	return nil
}

// IsConnected implements bleproxy.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
