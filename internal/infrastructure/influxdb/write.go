package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementState  = "switchbot_state"
	MeasurementFlush  = "switchbot_flush"
	MeasurementBridge = "switchbot_bridge"
)

// FlushPoint is the outcome of one write flush.
type FlushPoint struct {
	RequestID string
	DeviceID  string
	Transport string
	Desired   bool
	Noop      bool
	Attempts  int
	Duration  time.Duration
	Error     string // empty on success
}

// WriteDeviceState records the characteristics of a device after a refresh
// or a confirmed write. The write is non-blocking.
//
//	client.WriteDeviceState("1A23B456789A", "Bot",
//	    map[string]interface{}{"On": true}, time.Now())
func (c *Client) WriteDeviceState(deviceID, deviceType string, fields map[string]interface{}, at time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(statePoint(deviceID, deviceType, fields, at))
}

// WriteFlush records a write flush outcome.
func (c *Client) WriteFlush(f FlushPoint, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(flushPoint(f, at))
}

// WriteBridgeStats records bridge-wide counters alongside the health message.
func (c *Client) WriteBridgeStats(bridgeID string, fields map[string]interface{}) {
	c.WritePoint(MeasurementBridge, map[string]string{"bridge_id": bridgeID}, fields)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func statePoint(deviceID, deviceType string, fields map[string]interface{}, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementState,
		map[string]string{
			"device_id":   deviceID,
			"device_type": deviceType,
		},
		fields,
		at,
	)
}

func flushPoint(f FlushPoint, at time.Time) *write.Point {
	result := "ok"
	switch {
	case f.Error != "":
		result = "error"
	case f.Noop:
		result = "noop"
	}

	fields := map[string]interface{}{
		"request_id":  f.RequestID,
		"desired":     f.Desired,
		"attempts":    f.Attempts,
		"duration_ms": f.Duration.Milliseconds(),
	}
	if f.Error != "" {
		fields["error"] = f.Error
	}

	return write.NewPoint(
		MeasurementFlush,
		map[string]string{
			"device_id": f.DeviceID,
			"transport": f.Transport,
			"result":    result,
		},
		fields,
		at,
	)
}
