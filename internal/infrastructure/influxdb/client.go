package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// A bridge with a handful of devices produces a few points per refresh,
	// so small batches keep the dashboard close to live.
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second

	// Device reports carry at best millisecond timestamps.
	writePrecision = time.Millisecond

	// TagBridgeID is added to every point unless the point sets it itself.
	TagBridgeID = "bridge_id"
)

// Client writes SwitchBot device telemetry to InfluxDB v2.
//
// Every point is tagged with the bridge ID given to Connect, so several
// bridges can share one bucket. Writes are batched and non-blocking.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	connected bool
	mu        sync.RWMutex

	onError func(err error)
}

// clientOptions builds the write options for a bridge.
// Non-positive batch settings fall back to the bridge defaults.
func clientOptions(cfg config.InfluxDBConfig, bridgeID string) *influxdb2.Options {
	batchSize := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batchSize = uint(cfg.BatchSize) // #nosec G115 -- checked positive
	}
	flushInterval := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flushInterval = time.Duration(cfg.FlushInterval) * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batchSize).
		SetFlushInterval(uint(flushInterval.Milliseconds())). // #nosec G115 -- positive
		SetPrecision(writePrecision)
	if bridgeID != "" {
		opts.AddDefaultTag(TagBridgeID, bridgeID)
	}
	return opts
}

// Connect opens the telemetry client for one bridge.
//
// It performs:
//  1. Builds batched write options tagged with bridgeID
//  2. Pings the server within defaultConnectTimeout
//  3. Starts the non-blocking write API for cfg.Org and cfg.Bucket
//
// Parameters:
//   - cfg: InfluxDB settings from the bridge config
//   - bridgeID: value of the bridge_id tag on every point
//
// Returns:
//   - *Client: ready for WriteDeviceState, WriteFlush and WriteBridgeStats
//   - error: ErrDisabled when cfg.Enabled is false, ErrConnectionFailed when the ping fails
func Connect(cfg config.InfluxDBConfig, bridgeID string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg, bridgeID))

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		connected: true,
	}
	go c.forwardErrors(c.writeAPI.Errors())

	return c, nil
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

// forwardErrors hands async write failures to the SetOnError callback.
// It exits when the write API closes its error channel.
func (c *Client) forwardErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()
		if callback != nil {
			callback(err)
		}
	}
}

// Close stops accepting points and shuts the client down.
//
// It performs:
//  1. Marks the client disconnected so later writes are dropped
//  2. Flushes the pending batch
//  3. Closes the underlying HTTP client
//
// Returns:
//   - error: always nil; safe to call on a nil client
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
//
// Parameters:
//   - ctx: bounded further by defaultPingTimeout
//
// Returns:
//   - error: ErrNotConnected after Close, or the ping failure
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := ping(checkCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether Close has not yet been called.
// Use HealthCheck for an active check.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets the callback for async write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until buffered points are written. It is a no-op after Close.
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
