package ble

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

type publishedMessage struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// MockMQTTClient records publishes and lets tests deliver messages to
// subscribed handlers.
type MockMQTTClient struct {
	mu          sync.Mutex
	connected   bool
	published   []publishedMessage
	subscribers map[string]func(string, []byte)
	onPublish   func(topic string, payload []byte)
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected:   true,
		subscribers: make(map[string]func(string, []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	m.published = append(m.published, publishedMessage{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	hook := m.onPublish
	m.mu.Unlock()

	if hook != nil {
		go hook(topic, payload)
	}
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler func(string, []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, topic)
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Deliver routes a message to the handler whose pattern matches topic.
func (m *MockMQTTClient) Deliver(topic string, payload []byte) {
	m.mu.Lock()
	var handler func(string, []byte)
	for pattern, h := range m.subscribers {
		if topicMatches(pattern, topic) {
			handler = h
			break
		}
	}
	m.mu.Unlock()

	if handler != nil {
		handler(topic, payload)
	}
}

func (m *MockMQTTClient) publishedTo(prefix string) []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []publishedMessage
	for _, p := range m.published {
		if strings.HasPrefix(p.Topic, prefix) {
			out = append(out, p)
		}
	}
	return out
}

func topicMatches(pattern, topic string) bool {
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")
	if len(pp) != len(tp) {
		return false
	}
	for i := range pp {
		if pp[i] != "+" && pp[i] != tp[i] {
			return false
		}
	}
	return true
}

func advertJSON(t *testing.T, address, model, state string, motion bool) []byte {
	t.Helper()
	data, err := json.Marshal(advertPayload{
		Address:     address,
		Model:       model,
		RSSI:        -60,
		ServiceData: advertServiceData{State: state, Motion: &motion},
	})
	require.NoError(t, err)
	return data
}

func TestGatewayDriver_SubscribeDecodesAdvertisements(t *testing.T) {
	client := NewMockMQTTClient()
	drv := NewGatewayDriver(client, GatewayOptions{})
	require.NoError(t, drv.Start())

	var got []Advertisement
	cancel, err := drv.Subscribe(func(ad Advertisement) { got = append(got, ad) })
	require.NoError(t, err)

	client.Deliver("switchbot/ble/advert/1a23b456789a", advertJSON(t, "1A:23:B4:56:78:9A", ModelContact, "open", true))
	client.Deliver("switchbot/ble/advert/1a23b456789a", []byte("{broken"))

	require.Len(t, got, 1)
	assert.Equal(t, "1a:23:b4:56:78:9a", got[0].Address)
	require.NotNil(t, got[0].Open)
	assert.True(t, *got[0].Open)
	require.NotNil(t, got[0].Motion)
	assert.True(t, *got[0].Motion)
	assert.Nil(t, got[0].On)

	cancel()
	client.Deliver("switchbot/ble/advert/1a23b456789a", advertJSON(t, "1a:23:b4:56:78:9a", ModelBot, "on", false))
	assert.Len(t, got, 1)
}

func TestGatewayDriver_Discover(t *testing.T) {
	client := NewMockMQTTClient()
	drv := NewGatewayDriver(client, GatewayOptions{})
	require.NoError(t, drv.Start())

	advert := advertJSON(t, "aa:bb:cc:dd:ee:ff", ModelBot, "off", false)
	client.onPublish = func(topic string, _ []byte) {
		if topic == "switchbot/ble/scan" {
			client.Deliver("switchbot/ble/advert/aabbccddeeff", advert)
		}
	}

	peers, err := drv.Discover(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", peers[0].Address())
	assert.Len(t, client.publishedTo("switchbot/ble/scan"), 1)
}

func TestGatewayDriver_DiscoverDisconnected(t *testing.T) {
	client := NewMockMQTTClient()
	client.connected = false
	drv := NewGatewayDriver(client, GatewayOptions{})

	_, err := drv.Discover(context.Background(), time.Millisecond)
	assert.ErrorIs(t, err, device.ErrRadioUnavailable)
}

func TestGatewayDriver_RequireOnline(t *testing.T) {
	client := NewMockMQTTClient()
	drv := NewGatewayDriver(client, GatewayOptions{RequireOnline: true})
	require.NoError(t, drv.Start())

	_, err := drv.Discover(context.Background(), time.Millisecond)
	assert.ErrorIs(t, err, device.ErrRadioUnavailable)

	client.Deliver("switchbot/ble/status", []byte("online"))
	assert.True(t, drv.Online())
	_, err = drv.Discover(context.Background(), time.Millisecond)
	assert.NoError(t, err)
}

func TestGatewayDriver_ActuateAck(t *testing.T) {
	tests := []struct {
		name    string
		success bool
		wantErr error
	}{
		{name: "acknowledged", success: true},
		{name: "gateway reports failure", success: false, wantErr: ErrActuationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewMockMQTTClient()
			drv := NewGatewayDriver(client, GatewayOptions{AckTimeout: time.Second})
			require.NoError(t, drv.Start())

			client.onPublish = func(topic string, payload []byte) {
				var req commandRequest
				if err := json.Unmarshal(payload, &req); err != nil {
					return
				}
				ack, _ := json.Marshal(commandAck{ID: req.ID, Success: tt.success, Error: "connect failed"}) //nolint:errcheck // test helper
				client.Deliver("switchbot/ble/ack/aabbccddeeff", ack)
			}

			peer := &gatewayPeer{driver: drv, address: "aa:bb:cc:dd:ee:ff"}
			err := peer.TurnOn(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			cmds := client.publishedTo("switchbot/ble/command/aabbccddeeff")
			require.Len(t, cmds, 1)
			var req commandRequest
			require.NoError(t, json.Unmarshal(cmds[0].Payload, &req))
			assert.Equal(t, "turnOn", req.Command)
			assert.NotEmpty(t, req.ID)
		})
	}
}

func TestGatewayDriver_ActuateTimeout(t *testing.T) {
	client := NewMockMQTTClient()
	drv := NewGatewayDriver(client, GatewayOptions{AckTimeout: 20 * time.Millisecond})
	require.NoError(t, drv.Start())

	peer := &gatewayPeer{driver: drv, address: "aa:bb:cc:dd:ee:ff"}
	assert.ErrorIs(t, peer.TurnOff(context.Background()), ErrAckTimeout)
}
