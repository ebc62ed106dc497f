package ble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

// fakePeer records actuations.
type fakePeer struct {
	mu      sync.Mutex
	address string
	calls   []bool
	err     error
}

func (p *fakePeer) Address() string { return p.address }

func (p *fakePeer) TurnOn(context.Context) error { return p.record(true) }

func (p *fakePeer) TurnOff(context.Context) error { return p.record(false) }

func (p *fakePeer) record(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, on)
	return p.err
}

// fakeDriver is an in-memory Driver.
type fakeDriver struct {
	mu          sync.Mutex
	peers       []Peer
	discoverErr error
	handler     func(Advertisement)
	cancelled   bool
}

func (d *fakeDriver) Discover(context.Context, time.Duration) ([]Peer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peers, d.discoverErr
}

func (d *fakeDriver) Subscribe(handler func(Advertisement)) (func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = handler
	return func() {
		d.mu.Lock()
		d.cancelled = true
		d.mu.Unlock()
	}, nil
}

func (d *fakeDriver) emit(ad Advertisement) {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()
	if h != nil {
		h(ad)
	}
}

func TestTransport_Scan(t *testing.T) {
	target := &fakePeer{address: "1A:23:B4:56:78:9A"}
	drv := &fakeDriver{peers: []Peer{&fakePeer{address: "ff:ff:ff:ff:ff:ff"}, target}}
	tr := NewTransport(drv)

	peers, err := tr.Scan(context.Background(), "1a:23:b4:56:78:9a", time.Millisecond)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Same(t, target, peers[0])

	_, err = tr.Scan(context.Background(), "00:00:00:00:00:00", time.Millisecond)
	assert.ErrorIs(t, err, device.ErrNotFound)
}

func TestTransport_ScanRadioErrors(t *testing.T) {
	_, err := NewTransport(nil).Scan(context.Background(), "aa", time.Millisecond)
	assert.ErrorIs(t, err, device.ErrRadioUnavailable)

	drv := &fakeDriver{discoverErr: errors.New("adapter busy")}
	_, err = NewTransport(drv).Scan(context.Background(), "aa", time.Millisecond)
	assert.ErrorIs(t, err, device.ErrRadioUnavailable)
}

func TestTransport_Actuate(t *testing.T) {
	p := &fakePeer{address: "aa"}
	tr := NewTransport(&fakeDriver{})

	require.NoError(t, tr.Actuate(context.Background(), p, true))
	require.NoError(t, tr.Actuate(context.Background(), p, false))
	assert.Equal(t, []bool{true, false}, p.calls)
}

func TestTransport_ListenAndCache(t *testing.T) {
	drv := &fakeDriver{}
	tr := NewTransport(drv)

	_, err := tr.LastAdvertisement("1a:23:b4:56:78:9a")
	assert.ErrorIs(t, err, device.ErrNoAdvertisement)

	var got []Advertisement
	unsubscribe, err := tr.Listen("1a:23:b4:56:78:9a", func(ad Advertisement) {
		got = append(got, ad)
	})
	require.NoError(t, err)

	open := true
	drv.emit(Advertisement{Address: "1A:23:B4:56:78:9A", Model: ModelContact, Open: &open})
	drv.emit(Advertisement{Address: "ff:ff:ff:ff:ff:ff"})

	require.Len(t, got, 1)
	ad, err := tr.LastAdvertisement("1a23b456789a")
	require.NoError(t, err)
	assert.Equal(t, ModelContact, ad.Model)
	assert.False(t, ad.ReceivedAt.IsZero())
	assert.Equal(t, device.Reading{Open: &open}, ad.Reading())

	unsubscribe()
	unsubscribe()
	drv.emit(Advertisement{Address: "1a:23:b4:56:78:9a"})
	assert.Len(t, got, 1)

	tr.Close()
	assert.True(t, drv.cancelled)
	_, err = tr.LastAdvertisement("1a:23:b4:56:78:9a")
	assert.ErrorIs(t, err, device.ErrNoAdvertisement)
}
