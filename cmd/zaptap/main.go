// ZapTap Link Core
//
// This is the main entry point for the ZapTap link core: the dispatch
// service behind NFC tags, QR codes, and share links. It classifies
// incoming links, resolves their automations, gates every execution
// behind an explicit confirmation, and runs confirmed automations
// through the MQTT engine or the offline fallback interpreter.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/EzioAM/zaptap-cloud-hosting-sub008/migrations"

	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/api"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/audit"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/automation"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/dispatch"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/engine"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/fallback"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/infrastructure/config"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/infrastructure/database"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/infrastructure/influxdb"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/infrastructure/logging"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/infrastructure/mqtt"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/link"
	"github.com/EzioAM/zaptap-cloud-hosting-sub008/internal/tagio"
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

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit // Composition root: sequential wiring
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ZapTap link core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database
	db, err := database.Open(ctx, database.Config{
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Automation store, registry, resolver
	repo := automation.NewSQLiteRepository(db.DB)
	registry := automation.NewRegistry(repo)
	registry.SetLogger(log)
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading automation registry: %w", refreshErr)
	}
	log.Info("automation registry initialised", "automations", registry.Count())

	resolver := automation.NewResolver(repo, log)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Link grammar
	codec := link.NewCodec(cfg.Links.Scheme, cfg.Links.LegacyScheme, cfg.Links.WebDomain)
	generator := link.NewGenerator(codec, cfg.Links.MaxPayloadBytes)

	// Connect to MQTT broker. A broker outage must not keep the core
	// down: dispatches still work through the fallback interpreter and
	// the REST API, so a failed connect is logged, not fatal.
	var mqttClient *mqtt.Client
	mqttClient, err = mqtt.Connect(cfg.MQTT)
	if err != nil {
		log.Warn("MQTT unavailable, engine execution and tag IO disabled", "error", err)
		mqttClient = nil
	} else {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Executors. With no broker the engine reports every execution as
	// failed-unavailable; the fallback interpreter is unaffected.
	var broker engine.Broker
	if mqttClient != nil {
		broker = mqttClient
	}
	eng := engine.NewEngine(broker, log)
	interp := fallback.NewInterpreter(&hostCapabilities{log: log}, log)

	// Dispatcher
	dispatcher := dispatch.NewDispatcher(codec, resolver, eng, interp, log)
	dispatcher.SetAudit(auditRepo)
	if influxClient != nil {
		dispatcher.SetMetrics(influxClient)
	}

	// WebSocket hub is created here rather than inside the API server so
	// the dispatcher can broadcast through it.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)
	dispatcher.SetBroadcaster(hub)

	// Tag reader bridge
	if mqttClient != nil {
		bridge := tagio.NewBridge(mqttClient, dispatcher, cfg.Links.MaxPayloadBytes, log)
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting tag bridge: %w", startErr)
		}
		log.Info("tag bridge started")
	}

	// HTTP API
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Registry:    registry,
		Generator:   generator,
		Dispatcher:  dispatcher,
		AuditRepo:   auditRepo,
		MQTT:        mqttClient,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify infrastructure is healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	if d := dispatcher.CancelActive(context.Background()); d != nil {
		log.Info("cancelled in-flight dispatch", "dispatch_id", d.ID)
	}

	log.Info("ZapTap link core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ZAPTAP_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ZAPTAP_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy. MQTT and
// InfluxDB are skipped when not connected.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
