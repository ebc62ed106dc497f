package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-switchbot/internal/ble"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/openapi"
)

// Remote is the cloud transport.
type Remote interface {
	FetchStatus(ctx context.Context, id string) (*openapi.DeviceStatus, error)
	SendCommand(ctx context.Context, id string, cmd openapi.Command) (openapi.StatusCode, error)
}

// Local is the local radio transport.
type Local interface {
	Scan(ctx context.Context, address string, duration time.Duration) ([]ble.Peer, error)
	Actuate(ctx context.Context, peer ble.Peer, on bool) error
	Listen(address string, fn func(ble.Advertisement)) (unsubscribe func(), err error)
	LastAdvertisement(address string) (ble.Advertisement, error)
}

// Sink receives characteristic updates for the host.
type Sink interface {
	Push(deviceID string, u device.Update)
}

// Telemetry records observed states and write outcomes. Implementations
// must not block.
type Telemetry interface {
	StateObserved(deviceID string, typ device.Type, values map[device.Characteristic]any, at time.Time)
	FlushCompleted(r FlushResult)
}

// Logger is the logging interface used by the engine.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// FlushResult describes one write flush.
type FlushResult struct {
	ID        uuid.UUID
	DeviceID  string
	Transport device.Transport
	Desired   bool
	Noop      bool
	Attempts  int
	Duration  time.Duration
	Err       error
}

// Deps are the collaborators of an Accessory. Remote is required; the rest
// may be nil.
type Deps struct {
	Remote    Remote
	Local     Local
	Sink      Sink
	Telemetry Telemetry
	Logger    Logger
}
