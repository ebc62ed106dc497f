package ble

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

// MQTT QoS levels used by the gateway driver.
const (
	qosAtMostOnce  byte = 0
	qosAtLeastOnce byte = 1
)

const (
	gatewayOnline         = "online"
	defaultAckTimeout     = 10 * time.Second
	defaultGatewayPrefix  = "switchbot/ble"
	commandTurnOn         = "turnOn"
	commandTurnOff        = "turnOff"
	advertSubscriptionSuf = "/advert/+"
	ackSubscriptionSuf    = "/ack/+"
)

// MQTTClient is the subset of an MQTT client the gateway driver needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// GatewayOptions configures a GatewayDriver.
type GatewayOptions struct {
	// TopicPrefix is the gateway's topic root. Default "switchbot/ble".
	TopicPrefix string

	// AckTimeout bounds how long an actuation waits for the gateway.
	AckTimeout time.Duration

	// RequireOnline rejects operations until the gateway reports "online".
	RequireOnline bool
}

// advertPayload is the JSON published by the gateway for each advertisement.
type advertPayload struct {
	Address     string            `json:"address"`
	Model       string            `json:"model"`
	RSSI        int               `json:"rssi"`
	ServiceData advertServiceData `json:"service_data"`
}

type advertServiceData struct {
	State  string `json:"state,omitempty"` // "on"/"off" for bots, "open"/"close" for contacts
	Motion *bool  `json:"motion,omitempty"`
}

// scanRequest asks the gateway to run an active scan.
type scanRequest struct {
	ID         string `json:"id"`
	DurationMS int64  `json:"duration_ms"`
}

// commandRequest asks the gateway to connect to a peer and actuate it.
type commandRequest struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Command string `json:"command"`
}

// commandAck is the gateway's reply to a commandRequest.
type commandAck struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// GatewayDriver implements Driver against a BLE gateway reachable over MQTT.
//
// Thread Safety: all methods are safe for concurrent use.
type GatewayDriver struct {
	client MQTTClient
	opts   GatewayOptions

	mu         sync.Mutex
	handlers   map[uint64]func(Advertisement)
	collectors map[uint64]func(Advertisement)
	pending    map[string]chan commandAck
	nextID     uint64
	online     bool
	started    bool
}

// NewGatewayDriver creates a driver. Call Start before use.
func NewGatewayDriver(client MQTTClient, opts GatewayOptions) *GatewayDriver {
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = defaultGatewayPrefix
	}
	opts.TopicPrefix = strings.TrimSuffix(opts.TopicPrefix, "/")
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = defaultAckTimeout
	}
	return &GatewayDriver{
		client:     client,
		opts:       opts,
		handlers:   make(map[uint64]func(Advertisement)),
		collectors: make(map[uint64]func(Advertisement)),
		pending:    make(map[string]chan commandAck),
	}
}

// Start subscribes to the gateway's status, advertisement and ack topics.
func (g *GatewayDriver) Start() error {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return nil
	}
	g.started = true
	g.mu.Unlock()

	subs := []struct {
		topic   string
		qos     byte
		handler func(string, []byte)
	}{
		{g.opts.TopicPrefix + "/status", qosAtLeastOnce, g.handleStatus},
		{g.opts.TopicPrefix + advertSubscriptionSuf, qosAtMostOnce, g.handleAdvert},
		{g.opts.TopicPrefix + ackSubscriptionSuf, qosAtLeastOnce, g.handleAck},
	}
	for _, s := range subs {
		if err := g.client.Subscribe(s.topic, s.qos, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
	}
	return nil
}

// Stop unsubscribes from the gateway topics.
func (g *GatewayDriver) Stop() {
	g.mu.Lock()
	started := g.started
	g.started = false
	g.mu.Unlock()
	if !started {
		return
	}
	for _, suffix := range []string{"/status", advertSubscriptionSuf, ackSubscriptionSuf} {
		_ = g.client.Unsubscribe(g.opts.TopicPrefix + suffix) //nolint:errcheck // best effort on shutdown
	}
}

// Online reports whether the gateway last announced itself online.
func (g *GatewayDriver) Online() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online
}

// Discover implements Driver. It asks the gateway to scan and collects every
// advertisement received during duration.
func (g *GatewayDriver) Discover(ctx context.Context, duration time.Duration) ([]Peer, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}

	seen := make(map[string]string)
	var seenMu sync.Mutex
	remove := g.addCollector(func(ad Advertisement) {
		seenMu.Lock()
		seen[normalise(ad.Address)] = ad.Address
		seenMu.Unlock()
	})
	defer remove()

	req := scanRequest{ID: uuid.NewString(), DurationMS: duration.Milliseconds()}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal scan request: %w", err)
	}
	if err := g.client.Publish(g.opts.TopicPrefix+"/scan", payload, qosAtLeastOnce, false); err != nil {
		return nil, fmt.Errorf("publishing scan request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(duration):
	}

	seenMu.Lock()
	defer seenMu.Unlock()
	peers := make([]Peer, 0, len(seen))
	for _, addr := range seen {
		peers = append(peers, &gatewayPeer{driver: g, address: addr})
	}
	return peers, nil
}

// Subscribe implements Driver.
func (g *GatewayDriver) Subscribe(handler func(Advertisement)) (func(), error) {
	if err := g.Start(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.nextID++
	id := g.nextID
	g.handlers[id] = handler
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.handlers, id)
		g.mu.Unlock()
	}, nil
}

func (g *GatewayDriver) ready() error {
	if !g.client.IsConnected() {
		return fmt.Errorf("%w: mqtt not connected", device.ErrRadioUnavailable)
	}
	if g.opts.RequireOnline && !g.Online() {
		return fmt.Errorf("%w: gateway offline", device.ErrRadioUnavailable)
	}
	return nil
}

func (g *GatewayDriver) addCollector(fn func(Advertisement)) func() {
	g.mu.Lock()
	g.nextID++
	id := g.nextID
	g.collectors[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.collectors, id)
		g.mu.Unlock()
	}
}

// actuate publishes a command and waits for the matching ack.
func (g *GatewayDriver) actuate(ctx context.Context, address, command string) error {
	if err := g.ready(); err != nil {
		return err
	}

	req := commandRequest{ID: uuid.NewString(), Address: address, Command: command}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	ackCh := make(chan commandAck, 1)
	g.mu.Lock()
	g.pending[req.ID] = ackCh
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.pending, req.ID)
		g.mu.Unlock()
	}()

	topic := g.opts.TopicPrefix + "/command/" + normalise(address)
	if err := g.client.Publish(topic, payload, qosAtLeastOnce, false); err != nil {
		return fmt.Errorf("publishing command: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.opts.AckTimeout):
		return ErrAckTimeout
	case ack := <-ackCh:
		if !ack.Success {
			return fmt.Errorf("%w: %s", ErrActuationFailed, ack.Error)
		}
		return nil
	}
}

func (g *GatewayDriver) handleStatus(_ string, payload []byte) {
	g.mu.Lock()
	g.online = strings.TrimSpace(string(payload)) == gatewayOnline
	g.mu.Unlock()
}

func (g *GatewayDriver) handleAdvert(_ string, payload []byte) {
	var p advertPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}

	ad := Advertisement{
		Address:    strings.ToLower(p.Address),
		Model:      p.Model,
		RSSI:       p.RSSI,
		Motion:     p.ServiceData.Motion,
		ReceivedAt: time.Now(),
	}
	switch p.ServiceData.State {
	case "on":
		ad.On = boolPtr(true)
	case "off":
		ad.On = boolPtr(false)
	case "open":
		ad.Open = boolPtr(true)
	case "close":
		ad.Open = boolPtr(false)
	}

	g.mu.Lock()
	fns := make([]func(Advertisement), 0, len(g.handlers)+len(g.collectors))
	for _, fn := range g.handlers {
		fns = append(fns, fn)
	}
	for _, fn := range g.collectors {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	for _, fn := range fns {
		fn(ad)
	}
}

func (g *GatewayDriver) handleAck(_ string, payload []byte) {
	var ack commandAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		return
	}

	g.mu.Lock()
	ch, ok := g.pending[ack.ID]
	g.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- ack:
	default:
	}
}

// gatewayPeer is a peer reachable through the gateway.
type gatewayPeer struct {
	driver  *GatewayDriver
	address string
}

func (p *gatewayPeer) Address() string { return p.address }

func (p *gatewayPeer) TurnOn(ctx context.Context) error {
	return p.driver.actuate(ctx, p.address, commandTurnOn)
}

func (p *gatewayPeer) TurnOff(ctx context.Context) error {
	return p.driver.actuate(ctx, p.address, commandTurnOff)
}

func boolPtr(b bool) *bool { return &b }
