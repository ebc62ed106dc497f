package switchbot

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/mqtt"
)

// defaultHealthInterval applies when HealthReporterConfig.Interval is zero.
const defaultHealthInterval = 30 * time.Second

// HealthReporter publishes the bridge health message at a fixed interval.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher Publisher
	gateway   GatewayStatus
	stats     func() (managed, faulted int)
	recorder  StatsWriter

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// GatewayStatus reports the BLE gateway's liveness. Satisfied by
// *ble.GatewayDriver.
type GatewayStatus interface {
	Online() bool
}

// StatsWriter records bridge counters. Satisfied by *influxdb.Client.
type StatsWriter interface {
	WriteBridgeStats(bridgeID string, fields map[string]interface{})
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string

	// Interval is how often to publish. Default 30 seconds.
	Interval time.Duration

	Publisher Publisher

	// Gateway is optional; when set its liveness is reported and an
	// offline gateway degrades the bridge.
	Gateway GatewayStatus

	// Stats returns the managed and faulted device counts.
	Stats func() (managed, faulted int)

	// Recorder optionally receives the counters on every report.
	Recorder StatsWriter
}

// NewHealthReporter creates a health reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	stats := cfg.Stats
	if stats == nil {
		stats = func() (int, int) { return 0, 0 }
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		gateway:   cfg.Gateway,
		stats:     stats,
		recorder:  cfg.Recorder,
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.gateway != nil && !h.gateway.Online() {
		return HealthDegraded, "BLE gateway offline"
	}
	if _, faulted := h.stats(); faulted > 0 {
		return HealthDegraded, "devices reporting faults"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) buildMessage(status HealthStatus, reason string) HealthMessage {
	managed, faulted := h.stats()

	conns := map[string]string{"mqtt": "connected"}
	if h.publisher == nil || !h.publisher.IsConnected() {
		conns["mqtt"] = "disconnected"
	}
	if h.gateway != nil {
		conns["ble_gateway"] = "offline"
		if h.gateway.Online() {
			conns["ble_gateway"] = "online"
		}
	}

	return HealthMessage{
		Bridge:         h.bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        h.version,
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		DevicesManaged: managed,
		DevicesFaulted: faulted,
		Connections:    conns,
		Reason:         reason,
	}
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	msg := h.buildMessage(status, reason)
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if h.recorder != nil {
		h.recorder.WriteBridgeStats(h.bridgeID, map[string]interface{}{
			"status":          string(status),
			"uptime_seconds":  msg.UptimeSeconds,
			"devices_managed": msg.DevicesManaged,
			"devices_faulted": msg.DevicesFaulted,
		})
	}

	return h.publisher.Publish(mqtt.Topics{}.Health(), payload, stateQoS, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
