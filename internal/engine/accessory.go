package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/ble"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

// ErrNoRemote is returned by NewAccessory when Deps.Remote is nil.
var ErrNoRemote = errors.New("engine: remote transport required")

// Accessory synchronises one device.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Accessory struct {
	identity  *device.Identity
	role      device.Role
	mirror    *device.Mirror
	transport device.Transport

	remote    Remote
	local     Local
	sink      Sink
	telemetry Telemetry
	logger    Logger
	opts      Options

	writeSignal chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	runMu    sync.Mutex
	started  bool
	stopped  bool
	unlisten func()
}

// NewAccessory creates an accessory for spec with the given role.
func NewAccessory(spec device.Spec, role device.Role, deps Deps, opts Options) (*Accessory, error) {
	if deps.Remote == nil {
		return nil, ErrNoRemote
	}
	if role == nil {
		return nil, fmt.Errorf("%w: no role for %s", device.ErrUnsupportedRole, spec.ID)
	}

	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Accessory{
		identity:    device.NewIdentity(spec),
		role:        role,
		mirror:      device.NewMirror(),
		transport:   device.Select(spec.ID, opts.LocalIDs),
		remote:      deps.Remote,
		local:       deps.Local,
		sink:        deps.Sink,
		telemetry:   deps.Telemetry,
		logger:      deps.Logger,
		opts:        opts,
		writeSignal: make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// ID returns the device identifier.
func (a *Accessory) ID() string { return a.identity.ID() }

// Identity returns the device identity.
func (a *Accessory) Identity() *device.Identity { return a.identity }

// Role returns the device role.
func (a *Accessory) Role() device.Role { return a.role }

// Transport returns the transport selected for the device.
func (a *Accessory) Transport() device.Transport { return a.transport }

// Snapshot returns the current mirror contents.
func (a *Accessory) Snapshot() device.Snapshot { return a.mirror.Snapshot() }

// Start launches the device loops. An initial refresh runs immediately.
func (a *Accessory) Start() {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.started || a.stopped {
		return
	}
	a.started = true

	if a.transport == device.TransportLocal && a.local != nil {
		unlisten, err := a.local.Listen(a.identity.HardwareAddress(), a.onAdvertisement)
		if err != nil {
			a.logWarn("advertisement listener unavailable", "error", err)
		} else {
			a.unlisten = unlisten
		}
	}

	a.wg.Add(2)
	go a.refreshLoop()
	go a.writeLoop()

	if a.transport == device.TransportLocal {
		a.wg.Add(1)
		go a.scanLoop()
	}

	a.logInfo("accessory started",
		"refresh_interval", a.opts.RefreshInterval.String(),
		"role", fmt.Sprintf("%T", a.role))
}

// Stop halts the loops and waits for them to exit. Operations in flight are
// cancelled and their results discarded.
func (a *Accessory) Stop() {
	a.runMu.Lock()
	if a.stopped {
		a.runMu.Unlock()
		return
	}
	a.stopped = true
	unlisten := a.unlisten
	a.runMu.Unlock()

	if unlisten != nil {
		unlisten()
	}
	a.cancel()
	a.wg.Wait()
	a.logInfo("accessory stopped")
}

// SetOn records the desired on/off state and schedules a write. It returns
// immediately.
func (a *Accessory) SetOn(on bool) error {
	if _, ok := a.role.(device.BotRole); !ok {
		return device.NewError(device.KindConfig, a.ID(), "set_on", device.ErrUnsupportedRole)
	}
	a.mirror.SetDesired(on)
	a.RequestWrite()
	return nil
}

// RequestWrite signals the writer loop. Repeated signals inside the debounce
// window collapse into one flush.
func (a *Accessory) RequestWrite() {
	select {
	case a.writeSignal <- struct{}{}:
	default:
	}
}

// Refresh runs one refresh now. It is skipped when a write or another
// refresh is in flight.
func (a *Accessory) Refresh(ctx context.Context) {
	a.guard("refresh", func() { a.refresh(ctx, false) })
}

func (a *Accessory) onAdvertisement(ad ble.Advertisement) {
	a.guard("advertisement", func() {
		tok, ok := a.mirror.TryBeginRefresh()
		if !ok {
			return
		}
		defer a.mirror.EndRefresh(tok)
		a.logDebug("advertisement received", "model", ad.Model, "rssi", ad.RSSI)
		a.apply(ad.Reading())
	})
}

// apply derives and stores a new observed state from r and pushes it.
// The caller holds refresh ownership.
func (a *Accessory) apply(r device.Reading) {
	o := a.role.Derive(a.mirror.Observed(), r)
	now := time.Now()
	if !a.mirror.ApplyRefresh(o, now) {
		a.logDebug("refresh result dropped, write in flight")
		return
	}
	a.push(o, now)
}

// push sends an observed state to the sink and telemetry.
func (a *Accessory) push(o device.Observed, at time.Time) {
	u := device.ValuesUpdate(a.role, o)
	if a.sink != nil {
		a.sink.Push(a.ID(), u)
	}
	if a.telemetry != nil {
		a.telemetry.StateObserved(a.ID(), a.role.Type(), u.Values, at)
	}
}

// fail records err, logs it and pushes a fault marker.
func (a *Accessory) fail(op string, err error) {
	var de *device.Error
	if !errors.As(err, &de) {
		err = device.NewError(device.KindUnknown, a.ID(), op, err)
	}
	a.mirror.RecordError(err, time.Now())
	a.logError("operation failed", "op", op, "kind", device.KindOf(err).String(), "error", err)
	if a.sink != nil {
		a.sink.Push(a.ID(), device.FaultUpdate(a.role, err))
	}
}

// guard runs fn and converts a panic into a reported failure.
func (a *Accessory) guard(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.fail(op, fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
}

func (a *Accessory) opContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, a.opts.OperationTimeout)
}

// scanContext bounds a discovery pass of duration. The operation timeout is
// added on top so that a long scan is never cut short.
func (a *Accessory) scanContext(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, duration+a.opts.OperationTimeout)
}

func (a *Accessory) deviceKV(keysAndValues []any) []any {
	return append([]any{
		"device_id", a.identity.ID(),
		"device_name", a.identity.Name(),
		"transport", a.transport.String(),
	}, keysAndValues...)
}

func (a *Accessory) logDebug(msg string, keysAndValues ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, a.deviceKV(keysAndValues)...)
	}
}

func (a *Accessory) logInfo(msg string, keysAndValues ...any) {
	if a.logger != nil {
		a.logger.Info(msg, a.deviceKV(keysAndValues)...)
	}
}

func (a *Accessory) logWarn(msg string, keysAndValues ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, a.deviceKV(keysAndValues)...)
	}
}

func (a *Accessory) logError(msg string, keysAndValues ...any) {
	if a.logger != nil {
		a.logger.Error(msg, a.deviceKV(keysAndValues)...)
	}
}
