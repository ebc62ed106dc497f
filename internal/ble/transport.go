package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

// Driver is the low-level radio boundary.
type Driver interface {
	// Discover runs a discovery pass for duration and returns every peer seen.
	Discover(ctx context.Context, duration time.Duration) ([]Peer, error)

	// Subscribe registers a handler for passive advertisements. The returned
	// cancel function removes the handler.
	Subscribe(handler func(Advertisement)) (cancel func(), err error)
}

// Logger is the logging interface used by the transport.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Transport is the shared local radio transport.
//
// Thread Safety: all methods are safe for concurrent use.
type Transport struct {
	driver Driver

	mu        sync.RWMutex
	cache     map[string]Advertisement
	listeners map[string]map[uint64]func(Advertisement)
	nextID    uint64
	cancel    func()
	closed    bool

	logger   Logger
	loggerMu sync.RWMutex
}

// NewTransport creates a transport over driver. A nil driver yields a
// transport whose every operation reports device.ErrRadioUnavailable.
func NewTransport(driver Driver) *Transport {
	return &Transport{
		driver:    driver,
		cache:     make(map[string]Advertisement),
		listeners: make(map[string]map[uint64]func(Advertisement)),
	}
}

// SetLogger sets the logger.
func (t *Transport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	defer t.loggerMu.Unlock()
	t.logger = logger
}

// Start subscribes to the driver's advertisement stream. It is safe to call
// more than once.
func (t *Transport) Start() error {
	if t.driver == nil {
		return device.ErrRadioUnavailable
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.cancel != nil {
		return nil
	}

	cancel, err := t.driver.Subscribe(t.handleAdvertisement)
	if err != nil {
		return fmt.Errorf("%w: %w", device.ErrRadioUnavailable, err)
	}
	t.cancel = cancel
	return nil
}

// Close stops listening. Cached advertisements are dropped.
func (t *Transport) Close() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.closed = true
	t.cache = make(map[string]Advertisement)
	t.listeners = make(map[string]map[uint64]func(Advertisement))
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Scan runs a discovery pass and returns the peers whose address equals
// address. device.ErrNotFound is returned when none matched.
func (t *Transport) Scan(ctx context.Context, address string, duration time.Duration) ([]Peer, error) {
	if t.driver == nil {
		return nil, device.ErrRadioUnavailable
	}

	peers, err := t.driver.Discover(ctx, duration)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", device.ErrRadioUnavailable, err)
	}

	want := normalise(address)
	var matched []Peer
	for _, p := range peers {
		if normalise(p.Address()) == want {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		t.logDebug("no device found during scan", "address", address, "seen", len(peers))
		return nil, device.ErrNotFound
	}
	t.logDebug("device found during scan", "address", address)
	return matched, nil
}

// Actuate drives peer to on or off.
func (t *Transport) Actuate(ctx context.Context, peer Peer, on bool) error {
	if on {
		return peer.TurnOn(ctx)
	}
	return peer.TurnOff(ctx)
}

// Listen registers fn for advertisements from address. It does not block.
func (t *Transport) Listen(address string, fn func(Advertisement)) (unsubscribe func(), err error) {
	if err := t.Start(); err != nil {
		return nil, err
	}

	key := normalise(address)

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	if t.listeners[key] == nil {
		t.listeners[key] = make(map[uint64]func(Advertisement))
	}
	t.listeners[key][id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.listeners[key], id)
			if len(t.listeners[key]) == 0 {
				delete(t.listeners, key)
			}
		})
	}, nil
}

// LastAdvertisement returns the most recent advertisement from address, or
// device.ErrNoAdvertisement when none has been received.
func (t *Transport) LastAdvertisement(address string) (Advertisement, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ad, ok := t.cache[normalise(address)]
	if !ok {
		return Advertisement{}, device.ErrNoAdvertisement
	}
	return ad, nil
}

func (t *Transport) handleAdvertisement(ad Advertisement) {
	key := normalise(ad.Address)
	if key == "" {
		return
	}
	if ad.ReceivedAt.IsZero() {
		ad.ReceivedAt = time.Now()
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.cache[key] = ad
	fns := make([]func(Advertisement), 0, len(t.listeners[key]))
	for _, fn := range t.listeners[key] {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(ad)
	}
}

func (t *Transport) logDebug(msg string, keysAndValues ...any) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// normalise lower-cases an address and strips separators so that
// "1A:23:B4:56:78:9A" and "1a23b456789a" compare equal.
func normalise(address string) string {
	return strings.ToLower(strings.NewReplacer(":", "", "-", "").Replace(address))
}
