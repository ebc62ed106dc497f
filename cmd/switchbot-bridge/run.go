package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	_ "github.com/nerrad567/gray-logic-switchbot/migrations"

	"github.com/nerrad567/gray-logic-switchbot/internal/ble"
	"github.com/nerrad567/gray-logic-switchbot/internal/bridges/switchbot"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-switchbot/internal/openapi"
)

// run starts the bridge and blocks until ctx is cancelled.
// Resources are released in reverse order of acquisition.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting SwitchBot bridge",
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
		"refresh_rate", cfg.Options.RefreshRate,
		"ble_devices", len(cfg.Options.BLE),
		"declared_devices", len(cfg.Devices),
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	registry := switchbot.NewRegistry(db)
	log.Info("database ready", "path", db.Path())

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
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	bus := &mqttAdapter{client: mqttClient}

	// Interfaces stay nil unless the backing client exists.
	var (
		stateWriter switchbot.StateWriter
		statsWriter switchbot.StatsWriter
	)
	influxClient, err := connectInflux(cfg.InfluxDB, cfg.Bridge.ID)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		stateWriter = influxClient
		statsWriter = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var (
		local   *ble.Transport
		gateway switchbot.GatewayStatus
	)
	if cfg.BLEGateway.Enabled {
		driver := ble.NewGatewayDriver(bus, ble.GatewayOptions{
			TopicPrefix:   cfg.BLEGateway.TopicPrefix,
			AckTimeout:    cfg.BLEAckTimeout(),
			RequireOnline: cfg.BLEGateway.RequireOnline,
		})
		if startErr := driver.Start(); startErr != nil {
			return fmt.Errorf("starting BLE gateway driver: %w", startErr)
		}
		defer func() {
			log.Info("stopping BLE gateway driver")
			driver.Stop()
		}()

		local = ble.NewTransport(driver)
		local.SetLogger(log.Component("ble"))
		if startErr := local.Start(); startErr != nil {
			return fmt.Errorf("starting BLE transport: %w", startErr)
		}
		defer local.Close()

		gateway = driver
		log.Info("BLE gateway enabled", "topic_prefix", cfg.BLEGateway.TopicPrefix)
	}

	remote := openapi.New(openapi.Config{
		BaseURL: cfg.OpenAPI.BaseURL,
		Token:   cfg.OpenAPI.Token,
		Timeout: cfg.OpenAPITimeout(),
	})
	remote.SetLogger(log.Component("openapi"))

	opts := switchbot.BridgeOptions{
		Config:      cfg,
		MQTTClient:  bus,
		Remote:      remote,
		Store:       registry,
		Telemetry:   switchbot.NewTelemetry(stateWriter, registry, log.Component("telemetry")),
		Gateway:     gateway,
		StatsWriter: statsWriter,
		Logger:      log.Component("bridge"),
		Version:     version,
	}
	if local != nil {
		opts.Local = local
	}

	bridge, err := switchbot.NewBridge(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()
	log.Info("bridge started", "accessories", len(bridge.Accessories()))

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// connectInflux returns nil when InfluxDB is disabled.
func connectInflux(cfg config.InfluxDBConfig, bridgeID string) (*influxdb.Client, error) {
	if !cfg.Enabled {
		return nil, nil //nolint:nilnil // disabled is not an error
	}
	return influxdb.Connect(cfg, bridgeID)
}

// healthCheck verifies the infrastructure connections.
// influxClient may be nil when InfluxDB is disabled.
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

// listDevices prints the devices the cloud API reports.
func listDevices(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	remote := openapi.New(openapi.Config{
		BaseURL: cfg.OpenAPI.BaseURL,
		Token:   cfg.OpenAPI.Token,
		Timeout: cfg.OpenAPITimeout(),
	})
	if !remote.Configured() {
		return fmt.Errorf("openapi.token is not set")
	}

	devices, err := remote.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tHUB\tCLOUD")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", d.DeviceID, d.DeviceName, d.DeviceType, d.HubDeviceID, d.EnableCloudService)
	}
	return w.Flush()
}

// mqttAdapter adapts the infrastructure MQTT client to the handler signature
// used by the bridge and the BLE gateway driver.
//   - Infrastructure mqtt: func(topic, payload []byte) error
//   - Bridge and gateway: func(topic, payload []byte)
type mqttAdapter struct {
	client *mqtt.Client
}

func (a *mqttAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

func (a *mqttAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

func (a *mqttAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

func (a *mqttAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
