package switchbot

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct{ online atomic.Bool }

func (g *fakeGateway) Online() bool { return g.online.Load() }

func lastHealth(t *testing.T, client *MockMQTTClient) HealthMessage {
	t.Helper()
	msgs := client.PublishedTo("switchbot/health")
	require.NotEmpty(t, msgs)
	var msg HealthMessage
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &msg))
	return msg
}

func TestHealthReporter_Status(t *testing.T) {
	tests := []struct {
		name        string
		connected   bool
		gateway     *fakeGateway
		faulted     int
		wantStatus  HealthStatus
		wantReason  string
		wantGateway string
	}{
		{"healthy", true, nil, 0, HealthHealthy, "", ""},
		{"mqtt down", false, nil, 0, HealthDegraded, "MQTT disconnected", ""},
		{"gateway offline", true, &fakeGateway{}, 0, HealthDegraded, "BLE gateway offline", "offline"},
		{"faulted devices", true, nil, 1, HealthDegraded, "devices reporting faults", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewMockMQTTClient()
			client.connected = tt.connected

			cfg := HealthReporterConfig{
				BridgeID:  "switchbot-test",
				Version:   "1.2.3",
				Publisher: client,
				Stats:     func() (int, int) { return 2, tt.faulted },
			}
			if tt.gateway != nil {
				cfg.Gateway = tt.gateway
			}
			h := NewHealthReporter(cfg)

			require.NoError(t, h.PublishNow())

			msg := lastHealth(t, client)
			assert.Equal(t, tt.wantStatus, msg.Status)
			assert.Equal(t, tt.wantReason, msg.Reason)
			assert.Equal(t, "1.2.3", msg.Version)
			assert.Equal(t, 2, msg.DevicesManaged)
			assert.Equal(t, tt.faulted, msg.DevicesFaulted)
			assert.Equal(t, tt.wantGateway, msg.Connections["ble_gateway"])
		})
	}
}

func TestHealthReporter_PeriodicAndStop(t *testing.T) {
	client := NewMockMQTTClient()
	w := &recordingWriter{}
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "switchbot-test",
		Interval:  10 * time.Millisecond,
		Publisher: client,
		Recorder:  w,
	})

	require.NoError(t, h.PublishStarting())
	assert.Equal(t, HealthStarting, lastHealth(t, client).Status)

	h.Start(context.Background())
	require.Eventually(t, func() bool {
		return len(client.PublishedTo("switchbot/health")) >= 3
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
	assert.Equal(t, HealthStopping, lastHealth(t, client).Status)

	w.mu.Lock()
	defer w.mu.Unlock()
	require.NotEmpty(t, w.stats)
	assert.Equal(t, "stopping", w.stats[len(w.stats)-1]["status"])
}
