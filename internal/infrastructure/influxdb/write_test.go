package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/config"
)

var testTime = time.Unix(1700000000, 0)

func lineProtocol(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Second)
}

func TestStatePoint(t *testing.T) {
	line := lineProtocol(statePoint("C0FFEE001122", "Contact Sensor",
		map[string]interface{}{"ContactSensorState": 1, "MotionDetected": false}, testTime))

	for _, want := range []string{
		"switchbot_state,",
		"device_id=C0FFEE001122",
		`device_type=Contact\ Sensor`,
		"ContactSensorState=1i",
		"MotionDetected=false",
		" 1700000000",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestFlushPoint(t *testing.T) {
	tests := []struct {
		name  string
		point FlushPoint
		want  []string
	}{
		{
			name: "success",
			point: FlushPoint{
				RequestID: "req-1", DeviceID: "1A23B456789A", Transport: "remote",
				Desired: true, Attempts: 1, Duration: 150 * time.Millisecond,
			},
			want: []string{"result=ok", "transport=remote", "desired=true", "attempts=1i", "duration_ms=150i", `request_id="req-1"`},
		},
		{
			name:  "noop",
			point: FlushPoint{DeviceID: "1A23B456789A", Transport: "local", Noop: true},
			want:  []string{"result=noop", "transport=local"},
		},
		{
			name:  "error wins over noop",
			point: FlushPoint{DeviceID: "1A23B456789A", Transport: "local", Noop: true, Attempts: 6, Error: "local actuate: timeout"},
			want:  []string{"result=error", "attempts=6i", `error="local actuate: timeout"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := lineProtocol(flushPoint(tt.point, testTime))
			if !strings.HasPrefix(line, "switchbot_flush,") {
				t.Errorf("line %q has wrong measurement", line)
			}
			for _, want := range tt.want {
				if !strings.Contains(line, want) {
					t.Errorf("line %q missing %q", line, want)
				}
			}
		})
	}
}

func TestWritesWhenDisconnected(t *testing.T) {
	// A client that never connected drops writes instead of touching the nil write API.
	c := &Client{}

	c.WriteDeviceState("id", "Bot", map[string]interface{}{"On": true}, testTime)
	c.WriteFlush(FlushPoint{DeviceID: "id"}, testTime)
	c.WriteBridgeStats("bridge", map[string]interface{}{"devices": 2})
	c.Flush()

	if c.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
	if err := c.HealthCheck(t.Context()); err != ErrNotConnected {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name          string
		cfg           config.InfluxDBConfig
		bridgeID      string
		wantBatch     uint
		wantFlushMS   uint
		wantBridgeTag string
	}{
		{
			name:          "configured",
			cfg:           config.InfluxDBConfig{BatchSize: 200, FlushInterval: 2},
			bridgeID:      "garage",
			wantBatch:     200,
			wantFlushMS:   2000,
			wantBridgeTag: "garage",
		},
		{
			name:        "defaults without bridge tag",
			cfg:         config.InfluxDBConfig{BatchSize: -1},
			wantBatch:   defaultBatchSize,
			wantFlushMS: uint(defaultFlushInterval.Milliseconds()),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := clientOptions(tt.cfg, tt.bridgeID)
			if got := opts.BatchSize(); got != tt.wantBatch {
				t.Errorf("BatchSize() = %d, want %d", got, tt.wantBatch)
			}
			if got := opts.FlushInterval(); got != tt.wantFlushMS {
				t.Errorf("FlushInterval() = %d, want %d", got, tt.wantFlushMS)
			}
			if got := opts.Precision(); got != time.Millisecond {
				t.Errorf("Precision() = %v, want 1ms", got)
			}
			tags := opts.WriteOptions().DefaultTags()
			if got := tags[TagBridgeID]; got != tt.wantBridgeTag {
				t.Errorf("default %s = %q, want %q", TagBridgeID, got, tt.wantBridgeTag)
			}
			if tt.wantBridgeTag == "" && len(tags) != 0 {
				t.Errorf("DefaultTags() = %v, want none", tags)
			}
		})
	}
}
