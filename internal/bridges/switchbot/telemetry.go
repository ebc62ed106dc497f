package switchbot

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/engine"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/influxdb"
)

// recordTimeout bounds a flush history insert.
const recordTimeout = 2 * time.Second

// StateWriter records telemetry points. Satisfied by *influxdb.Client.
type StateWriter interface {
	WriteDeviceState(deviceID, deviceType string, fields map[string]interface{}, at time.Time)
	WriteFlush(f influxdb.FlushPoint, at time.Time)
}

// FlushRecorder stores flush outcomes. Satisfied by *Registry.
type FlushRecorder interface {
	RecordFlush(ctx context.Context, f FlushRecord) error
}

// Telemetry fans engine telemetry out to InfluxDB and the flush history.
// Either destination may be nil.
type Telemetry struct {
	writer   StateWriter
	recorder FlushRecorder
	logger   Logger
}

// NewTelemetry creates a telemetry adapter.
func NewTelemetry(writer StateWriter, recorder FlushRecorder, logger Logger) *Telemetry {
	return &Telemetry{writer: writer, recorder: recorder, logger: logger}
}

// StateObserved implements engine.Telemetry.
func (t *Telemetry) StateObserved(deviceID string, typ device.Type, values map[device.Characteristic]any, at time.Time) {
	if t.writer == nil {
		return
	}
	fields := make(map[string]interface{}, len(values))
	for c, v := range values {
		switch v := v.(type) {
		case nil:
		case device.ContactSensorState:
			fields[string(c)] = int(v)
		default:
			fields[string(c)] = v
		}
	}
	t.writer.WriteDeviceState(deviceID, string(typ), fields, at)
}

// FlushCompleted implements engine.Telemetry.
func (t *Telemetry) FlushCompleted(r engine.FlushResult) {
	now := time.Now()
	errText := ""
	if r.Err != nil {
		errText = r.Err.Error()
	}

	if t.writer != nil {
		t.writer.WriteFlush(influxdb.FlushPoint{
			RequestID: r.ID.String(),
			DeviceID:  r.DeviceID,
			Transport: r.Transport.String(),
			Desired:   r.Desired,
			Noop:      r.Noop,
			Attempts:  r.Attempts,
			Duration:  r.Duration,
			Error:     errText,
		}, now)
	}

	if t.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		err := t.recorder.RecordFlush(ctx, FlushRecord{
			RequestID:   r.ID.String(),
			DeviceID:    r.DeviceID,
			Transport:   r.Transport.String(),
			Desired:     r.Desired,
			Noop:        r.Noop,
			Attempts:    r.Attempts,
			Duration:    r.Duration,
			Error:       errText,
			CompletedAt: now,
		})
		if err != nil && t.logger != nil {
			t.logger.Warn("failed to record flush", "device_id", r.DeviceID, "error", err)
		}
	}
}
