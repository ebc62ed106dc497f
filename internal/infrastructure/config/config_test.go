package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
openapi:
  token: "abc123"
options:
  refresh_rate: 60
  ble:
    - "C0FFEE001122"
  bot:
    switch: true
    device_switch:
      - "1A23B456789A"
    device_press:
      - "AABBCCDDEEFF"
devices:
  - id: "C0FFEE001122"
    name: "Front Door"
    type: "Contact Sensor"
ble_gateway:
  enabled: true
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.OpenAPI.Token != "abc123" {
		t.Errorf("OpenAPI.Token = %q, want %q", cfg.OpenAPI.Token, "abc123")
	}
	if got := cfg.RefreshInterval(); got != time.Minute {
		t.Errorf("RefreshInterval() = %v, want 1m", got)
	}
	if !cfg.Options.Bot.Switch {
		t.Error("Options.Bot.Switch = false, want true")
	}
	if len(cfg.Options.Bot.DeviceSwitch) != 1 || cfg.Options.Bot.DeviceSwitch[0] != "1A23B456789A" {
		t.Errorf("Options.Bot.DeviceSwitch = %v", cfg.Options.Bot.DeviceSwitch)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].Type != "Contact Sensor" {
		t.Errorf("Devices = %+v", cfg.Devices)
	}
	// Defaults survive a partial file.
	if cfg.BLEGateway.TopicPrefix != "switchbot/ble" {
		t.Errorf("BLEGateway.TopicPrefix = %q, want default", cfg.BLEGateway.TopicPrefix)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
options:
  refresh_rate: 0
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// Every problem is reported, not just the first.
	for _, want := range []string{"options.refresh_rate", "openapi.token"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.OpenAPI.Token = "token"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name: "declared devices without token",
			mutate: func(c *Config) {
				c.OpenAPI.Token = ""
				c.Devices = []DeviceConfig{{ID: "AA", Type: "Bot"}}
			},
		},
		{
			name:    "missing bridge ID",
			mutate:  func(c *Config) { c.Bridge.ID = "" },
			wantErr: "bridge.id",
		},
		{
			name:    "zero refresh rate",
			mutate:  func(c *Config) { c.Options.RefreshRate = 0 },
			wantErr: "options.refresh_rate",
		},
		{
			name:    "ble ids without gateway",
			mutate:  func(c *Config) { c.Options.BLE = []string{"AA"} },
			wantErr: "ble_gateway.enabled",
		},
		{
			name:    "unsupported device type",
			mutate:  func(c *Config) { c.Devices = []DeviceConfig{{ID: "AA", Type: "Curtain"}} },
			wantErr: "devices[0].type",
		},
		{
			name: "duplicate device",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "AA", Type: "Bot"}, {ID: "AA", Type: "Bot"}}
			},
			wantErr: "duplicated",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 70000 },
			wantErr: "mqtt.broker.port",
		},
		{
			name:    "influx enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Bridge:     BridgeConfig{HealthInterval: 30},
		OpenAPI:    OpenAPIConfig{Timeout: 10},
		Options:    OptionsConfig{RefreshRate: 300, ActuateScan: 1500},
		BLEGateway: BLEGatewayConfig{AckTimeout: 5},
	}

	if got := cfg.RefreshInterval(); got != 5*time.Minute {
		t.Errorf("RefreshInterval() = %v, want 5m", got)
	}
	if got := cfg.HealthInterval(); got != 30*time.Second {
		t.Errorf("HealthInterval() = %v, want 30s", got)
	}
	if got := cfg.OpenAPITimeout(); got != 10*time.Second {
		t.Errorf("OpenAPITimeout() = %v, want 10s", got)
	}
	if got := cfg.ActuateScanDuration(); got != 1500*time.Millisecond {
		t.Errorf("ActuateScanDuration() = %v, want 1.5s", got)
	}
	if got := cfg.BLEAckTimeout(); got != 5*time.Second {
		t.Errorf("BLEAckTimeout() = %v, want 5s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("SWITCHBOT_OPENAPI_TOKEN", "env-token")
	t.Setenv("SWITCHBOT_OPENAPI_BASE_URL", "http://localhost:9999")
	t.Setenv("SWITCHBOT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("SWITCHBOT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("SWITCHBOT_MQTT_USERNAME", "testuser")
	t.Setenv("SWITCHBOT_MQTT_PASSWORD", "testpass")
	t.Setenv("SWITCHBOT_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("SWITCHBOT_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	checks := []struct {
		field, got, want string
	}{
		{"OpenAPI.Token", cfg.OpenAPI.Token, "env-token"},
		{"OpenAPI.BaseURL", cfg.OpenAPI.BaseURL, "http://localhost:9999"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Bridge.ID == "" {
		t.Error("defaultConfig should have non-empty Bridge.ID")
	}
	if cfg.Options.RefreshRate != 300 {
		t.Errorf("defaultConfig Options.RefreshRate = %d, want 300", cfg.Options.RefreshRate)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.OpenAPI.BaseURL == "" {
		t.Error("defaultConfig should have a cloud base URL")
	}
}
