package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/config"
)

// Client is the bridge's broker connection.
//
// It carries device commands and state between the host and the bridge,
// keeps the retained bridge status topic current, and re-subscribes the
// command topics after every reconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	subs      subscriptionSet
	connected atomic.Bool

	hooksMu sync.RWMutex
	hooks   hooks
}

// hooks are the optional observers set after Connect.
type hooks struct {
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger is the optional logger for handler errors and panics.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run on paho's goroutines and should return quickly.
//
// Parameters:
//   - topic: The topic the message arrived on, wildcards expanded
//   - payload: The raw message body
//
// Returns:
//   - error: Logged as a warning; the message is still acknowledged
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker and waits for the first session.
//
// It performs:
//  1. Builds paho options with auto-reconnect and backoff from cfg.Reconnect
//  2. Registers a retained "offline" will on the bridge status topic
//  3. Connects within defaultConnectTimeout
//
// The retained "online" status and the tracked subscriptions are
// (re)published from the connect handler, on the first session and on
// every reconnect.
//
// Parameters:
//   - cfg: Broker address, credentials, QoS and reconnect settings
//
// Returns:
//   - *Client: Connected client; call Close on shutdown
//   - error: ErrConnectionFailed wrapping the paho error or timeout
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{cfg: cfg}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onSessionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onSessionLost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.logWarn("MQTT reconnecting", "broker", cfg.Broker.Host)
	})

	c.client = pahomqtt.NewClient(opts)
	if err := await(c.client.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The connect handler runs on its own goroutine; callers may publish now.
	c.connected.Store(true)
	return c, nil
}

// await waits up to timeout for token and wraps a failure in kind.
func await(token pahomqtt.Token, timeout time.Duration, kind error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", kind, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}

func (c *Client) onSessionUp() {
	c.connected.Store(true)
	c.restoreSubscriptions()
	c.publishStatus(StatusOnline, "")

	if callback := c.getHooks().onConnect; callback != nil {
		callback()
	}
}

func (c *Client) onSessionLost(err error) {
	c.connected.Store(false)

	if callback := c.getHooks().onDisconnect; callback != nil {
		callback(err)
	}
}

// restoreSubscriptions replays every tracked subscription after a
// reconnect. Failures are logged; paho retries on the next session.
func (c *Client) restoreSubscriptions() {
	for _, sub := range c.subs.snapshot() {
		token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		if err := await(token, defaultPublishTimeout, ErrSubscribeFailed); err != nil {
			c.logWarn("MQTT resubscribe failed", "topic", sub.topic, "error", err)
		}
	}
}

func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	payload := buildStatusPayload(status, c.cfg.Broker.ClientID, reason)
	return c.client.Publish(Topics{}.BridgeStatus(), byte(c.cfg.QoS), true, payload)
}

// Close announces a graceful shutdown and disconnects.
//
// It performs:
//  1. Publishes a retained "offline" status with reason graceful_shutdown
//  2. Disconnects after defaultDisconnectQuiesce milliseconds
//
// Returns:
//   - error: Always nil; safe to call on a nil client
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	if c.IsConnected() {
		c.publishStatus(StatusOffline, "graceful_shutdown").WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)

	return nil
}

// HealthCheck reports ErrNotConnected when the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback run on the first session and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.hooksMu.Lock()
	c.hooks.onConnect = callback
	c.hooksMu.Unlock()
}

// SetOnDisconnect sets a callback run when the session drops.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.hooksMu.Lock()
	c.hooks.onDisconnect = callback
	c.hooksMu.Unlock()
}

// SetLogger sets a logger for handler errors and panics.
func (c *Client) SetLogger(logger Logger) {
	c.hooksMu.Lock()
	c.hooks.logger = logger
	c.hooksMu.Unlock()
}

func (c *Client) getHooks() hooks {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	return c.hooks
}

func (c *Client) logWarn(msg string, args ...any) {
	if logger := c.getHooks().logger; logger != nil {
		logger.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	if logger := c.getHooks().logger; logger != nil {
		logger.Error(msg, args...)
	}
}
