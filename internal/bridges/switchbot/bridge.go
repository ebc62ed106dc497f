package switchbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/engine"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-switchbot/internal/openapi"
)

// commandQoS is the subscription QoS for host commands.
const commandQoS = 1

// Publisher is the publishing half of an MQTT client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests.
type MQTTClient interface {
	Publisher
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	Unsubscribe(topic string) error
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Remote is the cloud API as used by the bridge. Satisfied by *openapi.Client.
type Remote interface {
	engine.Remote
	ListDevices(ctx context.Context) ([]openapi.DeviceInfo, error)
}

// AccessoryStore persists the accessory cache. Satisfied by *Registry.
type AccessoryStore interface {
	Upsert(ctx context.Context, rec AccessoryRecord) error
	List(ctx context.Context) ([]AccessoryRecord, error)
	Remove(ctx context.Context, id string) error
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded configuration. Required.
	Config *config.Config

	// MQTTClient connects the bridge to the host. Required.
	MQTTClient MQTTClient

	// Remote is the cloud transport. Required; device enumeration through it
	// only happens when a token is configured.
	Remote Remote

	// Local is the shared local radio transport, nil when disabled.
	Local engine.Local

	// Store is the optional accessory cache.
	Store AccessoryStore

	// Telemetry optionally records observed states and write outcomes.
	Telemetry engine.Telemetry

	// Gateway optionally reports BLE gateway liveness in health messages.
	Gateway GatewayStatus

	// StatsWriter optionally records health counters.
	StatsWriter StatsWriter

	// Logger is the optional structured logger.
	Logger Logger

	// Version is reported in health messages.
	Version string

	// Tune adjusts the engine options derived from Config.
	Tune func(*engine.Options)
}

// Bridge owns the accessories and routes between them and the host.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg          *config.Config
	mqtt         MQTTClient
	remote       Remote
	local        engine.Local
	store        AccessoryStore
	telemetry    engine.Telemetry
	sink         *mqttSink
	health       *HealthReporter
	roleOpts     device.RoleOptions
	engineOpts   engine.Options
	cloudEnabled bool

	accessories map[string]*engine.Accessory
	mu          sync.RWMutex

	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Remote == nil {
		return nil, fmt.Errorf("remote transport is required")
	}

	cfg := opts.Config
	engineOpts := engine.OptionsFromRefreshRate(cfg.Options.RefreshRate, device.NewIDSet(cfg.Options.BLE...))
	engineOpts.ActuateScan = cfg.ActuateScanDuration()
	if opts.Tune != nil {
		opts.Tune(&engineOpts)
	}

	b := &Bridge{
		cfg:       cfg,
		mqtt:      opts.MQTTClient,
		remote:    opts.Remote,
		local:     opts.Local,
		store:     opts.Store,
		telemetry: opts.Telemetry,
		roleOpts: device.RoleOptions{
			BotExposeAsSwitch: cfg.Options.Bot.Switch,
			BotSwitchIDs:      device.NewIDSet(cfg.Options.Bot.DeviceSwitch...),
			BotPressIDs:       device.NewIDSet(cfg.Options.Bot.DevicePress...),
		},
		engineOpts:   engineOpts,
		cloudEnabled: cfg.OpenAPI.Token != "",
		accessories:  make(map[string]*engine.Accessory),
		logger:       opts.Logger,
	}
	b.sink = &mqttSink{publisher: opts.MQTTClient, logger: b.getLogger}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  cfg.Bridge.ID,
		Version:   opts.Version,
		Interval:  cfg.HealthInterval(),
		Publisher: opts.MQTTClient,
		Gateway:   opts.Gateway,
		Stats:     b.stats,
		Recorder:  opts.StatsWriter,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start enumerates devices, starts their accessories, subscribes to host
// commands and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	b.SyncDevices(ctx)

	topic := mqtt.Topics{}.AllCommands()
	if err := b.mqtt.Subscribe(topic, commandQoS, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", topic)

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	managed, _ := b.stats()
	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"devices", managed,
		"cloud", b.cloudEnabled,
		"local_radio", b.local != nil)

	return nil
}

// Stop unsubscribes, stops every accessory and publishes a final health
// status. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if err := b.mqtt.Unsubscribe(mqtt.Topics{}.AllCommands()); err != nil {
			b.logDebug("unsubscribe commands", "error", err)
		}

		var wg sync.WaitGroup
		for _, acc := range b.Accessories() {
			wg.Add(1)
			go func(acc *engine.Accessory) {
				defer wg.Done()
				acc.Stop()
			}(acc)
		}
		wg.Wait()

		b.health.Stop()
		b.logInfo("bridge stopped")
	})
}

// SyncDevices enumerates devices and reconciles the running accessories:
// new devices are started, and when enumeration was complete, devices no
// longer listed are stopped and removed from the cache.
func (b *Bridge) SyncDevices(ctx context.Context) {
	specs, complete := b.discover(ctx)

	wanted := make(map[string]bool, len(specs))
	var started []*engine.Accessory

	b.mu.Lock()
	for _, spec := range specs {
		wanted[spec.ID] = true
		if _, ok := b.accessories[spec.ID]; ok {
			continue
		}
		acc, err := b.newAccessory(spec)
		if err != nil {
			b.logError("failed to create accessory", err)
			continue
		}
		b.accessories[spec.ID] = acc
		started = append(started, acc)
	}

	var removed []*engine.Accessory
	if complete {
		for id, acc := range b.accessories {
			if !wanted[id] {
				removed = append(removed, acc)
				delete(b.accessories, id)
			}
		}
	}
	b.mu.Unlock()

	for _, acc := range started {
		acc.Start()
		b.remember(ctx, acc)
	}
	for _, acc := range removed {
		acc.Stop()
		b.sink.clear(acc.ID())
		b.logInfo("accessory removed", "device_id", acc.ID())
	}

	if complete {
		b.pruneStore(ctx, wanted)
	}
}

// discover merges configured devices with the cloud listing. The second
// result is false when the cloud listing failed; cached accessories are
// then kept.
func (b *Bridge) discover(ctx context.Context) ([]device.Spec, bool) {
	seen := make(map[string]bool)
	var specs []device.Spec

	add := func(s device.Spec) {
		if s.ID == "" || seen[s.ID] {
			return
		}
		if s.Type != device.TypeBot && s.Type != device.TypeContact {
			b.logDebug("skipping unsupported device", "device_id", s.ID, "type", s.Type)
			return
		}
		if s.Name == "" {
			s.Name = s.ID
		}
		seen[s.ID] = true
		specs = append(specs, s)
	}

	for _, d := range b.cfg.Devices {
		add(device.Spec{ID: d.ID, Name: d.Name, Type: device.Type(d.Type), HubID: d.HubID})
	}

	complete := true
	if b.cloudEnabled {
		list, err := b.remote.ListDevices(ctx)
		if err != nil {
			b.logError("cloud device enumeration failed, keeping cached accessories", err)
			complete = false
		}
		for _, d := range list {
			add(d.Spec())
		}
	}

	if !complete && b.store != nil {
		cached, err := b.store.List(ctx)
		if err != nil {
			b.logError("failed to load cached accessories", err)
		}
		for _, rec := range cached {
			add(rec.Spec())
		}
	}

	return specs, complete
}

func (b *Bridge) newAccessory(spec device.Spec) (*engine.Accessory, error) {
	role, err := device.RoleFor(spec, b.roleOpts)
	if err != nil {
		return nil, err
	}
	if bot, ok := role.(device.BotRole); ok && bot.Mode == device.BotModeUnset {
		b.logWarn("bot is in neither bot.device_switch nor bot.device_press", "device_id", spec.ID)
	}

	return engine.NewAccessory(spec, role, engine.Deps{
		Remote:    b.remote,
		Local:     b.local,
		Sink:      b.sink,
		Telemetry: b.telemetry,
		Logger:    b.getLogger(),
	}, b.engineOpts)
}

// remember upserts an accessory into the cache.
func (b *Bridge) remember(ctx context.Context, acc *engine.Accessory) {
	if b.store == nil {
		return
	}
	id := acc.Identity()
	rec := AccessoryRecord{
		ID:        id.ID(),
		Name:      id.Name(),
		Type:      id.Type(),
		HubID:     id.HubID(),
		Transport: acc.Transport().String(),
		LastSeen:  time.Now(),
	}
	if bot, ok := acc.Role().(device.BotRole); ok {
		rec.BotMode = bot.Mode.String()
	}
	if err := b.store.Upsert(ctx, rec); err != nil {
		b.logError("failed to cache accessory", err)
	}
}

// pruneStore removes cached accessories that are no longer listed.
func (b *Bridge) pruneStore(ctx context.Context, wanted map[string]bool) {
	if b.store == nil {
		return
	}
	cached, err := b.store.List(ctx)
	if err != nil {
		b.logError("failed to list cached accessories", err)
		return
	}
	for _, rec := range cached {
		if wanted[rec.ID] {
			continue
		}
		if err := b.store.Remove(ctx, rec.ID); err != nil {
			b.logError("failed to remove cached accessory", err)
			continue
		}
		b.sink.clear(rec.ID)
		b.logInfo("stale accessory removed from cache", "device_id", rec.ID)
	}
}

// handleCommand applies a host command. It never blocks on the device.
func (b *Bridge) handleCommand(topic string, payload []byte) {
	id, ok := mqtt.Topics{}.DeviceID(topic)
	if !ok {
		b.logWarn("command on unexpected topic", "topic", topic)
		return
	}

	cmd, err := ParseCommand(payload)
	if err != nil {
		b.publishAck(id, NewAckError(cmd, id, ErrCodeInvalidCommand, err.Error()))
		return
	}
	if cmd.DeviceID != "" && cmd.DeviceID != id {
		b.publishAck(id, NewAckError(cmd, id, ErrCodeInvalidCommand,
			fmt.Sprintf("device_id %q does not match topic", cmd.DeviceID)))
		return
	}

	acc := b.Accessory(id)
	if acc == nil {
		b.publishAck(id, NewAckError(cmd, id, ErrCodeNotConfigured,
			fmt.Sprintf("%v: %s", ErrUnknownDevice, id)))
		return
	}

	on, err := cmd.On()
	if err != nil {
		b.publishAck(id, NewAckError(cmd, id, ErrCodeInvalidCommand, err.Error()))
		return
	}

	if err := acc.SetOn(on); err != nil {
		code := ErrCodeInvalidCommand
		if errors.Is(err, device.ErrUnsupportedRole) {
			code = ErrCodeUnsupported
		}
		b.publishAck(id, NewAckError(cmd, id, code, err.Error()))
		return
	}

	b.logDebug("command accepted", "command_id", cmd.ID, "device_id", id, "on", on)
	b.publishAck(id, NewAckMessage(cmd, id))
}

func (b *Bridge) publishAck(deviceID string, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to encode ack", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.Ack(deviceID), payload, stateQoS, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// Accessory returns the accessory for id, or nil.
func (b *Bridge) Accessory(id string) *engine.Accessory {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.accessories[id]
}

// Accessories returns the managed accessories ordered by ID.
func (b *Bridge) Accessories() []*engine.Accessory {
	b.mu.RLock()
	out := make([]*engine.Accessory, 0, len(b.accessories))
	for _, acc := range b.accessories {
		out = append(out, acc)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// stats returns the managed and faulted accessory counts.
func (b *Bridge) stats() (managed, faulted int) {
	for _, acc := range b.Accessories() {
		managed++
		if acc.Snapshot().LastError != nil {
			faulted++
		}
	}
	return managed, faulted
}

// SetLogger sets the logger for the bridge. Accessories created afterwards
// use it too.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.health.SetLogger(logger)
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
