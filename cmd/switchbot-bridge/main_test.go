package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("SWITCHBOT_CONFIG", "")
	assert.Equal(t, defaultConfigPath, getConfigPath(""))

	t.Setenv("SWITCHBOT_CONFIG", "/etc/switchbot/config.yaml")
	assert.Equal(t, "/etc/switchbot/config.yaml", getConfigPath(""))
	assert.Equal(t, "custom.yaml", getConfigPath("custom.yaml"), "flag wins over env")
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, loadDotEnv(""))
	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SWITCHBOT_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("SWITCHBOT_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("SWITCHBOT_TEST_DOTENV"))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("SWITCHBOT_TEST_DOTENV"))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--env-file", ""})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "switchbot-bridge "+version)
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestRun_MissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
openapi:
  token: "test-token"
database:
  path: ""
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path is required")
}

func TestDevicesCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/devices" || r.Header.Get("Authorization") != "test-token" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"statusCode":100,"message":"success","body":{"deviceList":[
			{"deviceId":"1A23B456789A","deviceName":"Kettle","deviceType":"Bot","hubDeviceId":"HUB1","enableCloudService":true},
			{"deviceId":"C0FFEE001122","deviceName":"Front Door","deviceType":"Contact Sensor","hubDeviceId":"HUB1","enableCloudService":true}
		]}}`)
	}))
	defer srv.Close()

	path := writeConfig(t, fmt.Sprintf(`
openapi:
  base_url: %q
  token: "test-token"
database:
  path: %q
`, srv.URL, filepath.Join(t.TempDir(), "switchbot.db")))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"devices", "--config", path, "--env-file", ""})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "1A23B456789A")
	assert.Contains(t, out.String(), "Front Door")
	assert.Contains(t, out.String(), "Contact Sensor")
}

// Requires an MQTT broker at 127.0.0.1:1883.
func TestRun_StartupAndShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping broker test in short mode")
	}
	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", time.Second)
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	conn.Close()

	tmp := t.TempDir()
	path := writeConfig(t, fmt.Sprintf(`
bridge:
  health_interval: 60
openapi:
  token: ""
devices:
  - id: "C0FFEE001122"
    name: "Front Door"
    type: "Contact Sensor"
database:
  path: %q
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "switchbot-bridge-test"
logging:
  level: error
  format: text
  output: stderr
`, filepath.Join(tmp, "switchbot.db")))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, path) }()

	select {
	case err := <-errCh:
		t.Fatalf("run returned early: %v", err)
	case <-time.After(500 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
