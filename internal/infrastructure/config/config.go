package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the SwitchBot bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge     BridgeConfig     `yaml:"bridge"`
	OpenAPI    OpenAPIConfig    `yaml:"openapi"`
	Options    OptionsConfig    `yaml:"options"`
	Devices    []DeviceConfig   `yaml:"devices"`
	BLEGateway BLEGatewayConfig `yaml:"ble_gateway"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BridgeConfig identifies this bridge instance.
type BridgeConfig struct {
	ID             string `yaml:"id"`
	HealthInterval int    `yaml:"health_interval"` // seconds
}

// OpenAPIConfig contains cloud API settings.
type OpenAPIConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Timeout int    `yaml:"timeout"` // seconds
}

// OptionsConfig contains the device behaviour options.
type OptionsConfig struct {
	// RefreshRate is the refresh period in seconds.
	RefreshRate int `yaml:"refresh_rate"`

	// BLE lists the device identifiers served by the local radio.
	BLE []string `yaml:"ble"`

	Bot BotOptionsConfig `yaml:"bot"`

	// ActuateScan is the discovery duration before a local actuation, in milliseconds.
	ActuateScan int `yaml:"actuate_scan"`
}

// BotOptionsConfig selects how bots are exposed and actuated.
type BotOptionsConfig struct {
	// Switch exposes bots as switches instead of outlets.
	Switch bool `yaml:"switch"`

	// DeviceSwitch lists bots driven with turnOn/turnOff.
	DeviceSwitch []string `yaml:"device_switch"`

	// DevicePress lists bots driven with press.
	DevicePress []string `yaml:"device_press"`
}

// DeviceConfig declares a device manually, e.g. a BLE-only device the cloud
// does not list.
type DeviceConfig struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	HubID string `yaml:"hub_id"`
}

// BLEGatewayConfig contains the MQTT BLE gateway settings.
type BLEGatewayConfig struct {
	Enabled       bool   `yaml:"enabled"`
	TopicPrefix   string `yaml:"topic_prefix"`
	AckTimeout    int    `yaml:"ack_timeout"` // seconds
	RequireOnline bool   `yaml:"require_online"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Supported device type names in DeviceConfig.Type.
var supportedDeviceTypes = map[string]bool{
	"Bot":            true,
	"Contact Sensor": true,
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SWITCHBOT_SECTION_KEY
// For example: SWITCHBOT_OPENAPI_TOKEN, SWITCHBOT_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "switchbot-bridge",
			HealthInterval: 30,
		},
		OpenAPI: OpenAPIConfig{
			BaseURL: "https://api.switch-bot.com/v1.0",
			Timeout: 10,
		},
		Options: OptionsConfig{
			RefreshRate: 300,
			ActuateScan: 3000,
		},
		BLEGateway: BLEGatewayConfig{
			TopicPrefix: "switchbot/ble",
			AckTimeout:  10,
		},
		Database: DatabaseConfig{
			Path:        "./data/switchbot.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "switchbot-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "switchbot",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SWITCHBOT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Cloud API
	if v := os.Getenv("SWITCHBOT_OPENAPI_TOKEN"); v != "" {
		cfg.OpenAPI.Token = v
	}
	if v := os.Getenv("SWITCHBOT_OPENAPI_BASE_URL"); v != "" {
		cfg.OpenAPI.BaseURL = v
	}

	// Database
	if v := os.Getenv("SWITCHBOT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("SWITCHBOT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SWITCHBOT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SWITCHBOT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("SWITCHBOT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SWITCHBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}

	if c.Options.RefreshRate < 1 {
		errs = append(errs, "options.refresh_rate must be at least 1 second")
	}
	if c.Options.ActuateScan < 0 {
		errs = append(errs, "options.actuate_scan must not be negative")
	}

	if c.OpenAPI.Token == "" && len(c.Devices) == 0 {
		errs = append(errs, "openapi.token is required when no devices are declared (set SWITCHBOT_OPENAPI_TOKEN)")
	}
	if c.OpenAPI.Timeout < 1 {
		errs = append(errs, "openapi.timeout must be at least 1 second")
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.ID == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].id is required", i))
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Sprintf("devices[%d].id %q is duplicated", i, d.ID))
		}
		seen[d.ID] = true
		if !supportedDeviceTypes[d.Type] {
			errs = append(errs, fmt.Sprintf("devices[%d].type %q is not supported (Bot, Contact Sensor)", i, d.Type))
		}
	}

	if len(c.Options.BLE) > 0 && !c.BLEGateway.Enabled {
		errs = append(errs, "ble_gateway.enabled is required when options.ble lists devices")
	}
	if c.BLEGateway.Enabled && c.BLEGateway.TopicPrefix == "" {
		errs = append(errs, "ble_gateway.topic_prefix is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// RefreshInterval returns the refresh rate as a Duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Options.RefreshRate) * time.Second
}

// HealthInterval returns the health publish interval as a Duration.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// OpenAPITimeout returns the cloud request timeout as a Duration.
func (c *Config) OpenAPITimeout() time.Duration {
	return time.Duration(c.OpenAPI.Timeout) * time.Second
}

// ActuateScanDuration returns the pre-actuation scan duration.
func (c *Config) ActuateScanDuration() time.Duration {
	return time.Duration(c.Options.ActuateScan) * time.Millisecond
}

// BLEAckTimeout returns the gateway actuation timeout as a Duration.
func (c *Config) BLEAckTimeout() time.Duration {
	return time.Duration(c.BLEGateway.AckTimeout) * time.Second
}
