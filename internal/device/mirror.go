package device

import (
	"sync"
	"sync/atomic"
	"time"
)

// SyncStatus is the per-device synchronisation status.
type SyncStatus int32

// Sync statuses. RefreshInFlight and WriteInFlight are mutually exclusive.
const (
	SyncIdle SyncStatus = iota
	SyncRefreshInFlight
	SyncWriteInFlight
)

// String returns the status name.
func (s SyncStatus) String() string {
	switch s {
	case SyncRefreshInFlight:
		return "refresh_in_flight"
	case SyncWriteInFlight:
		return "write_in_flight"
	default:
		return "idle"
	}
}

// Snapshot is a consistent copy of a Mirror.
type Snapshot struct {
	Desired    bool
	Observed   Observed // nil until the first successful refresh
	Status     SyncStatus
	ObservedAt time.Time
	LastError  error
	ErrorAt    time.Time
}

// Known reports whether the observed state has been populated.
func (s Snapshot) Known() bool {
	return s.Observed != nil
}

// Stale reports whether the observed state is older than maxAge, or unknown.
func (s Snapshot) Stale(now time.Time, maxAge time.Duration) bool {
	if s.Observed == nil {
		return true
	}
	return now.Sub(s.ObservedAt) > maxAge
}

// Mirror is the in-memory state of one device.
//
// Thread Safety: all methods are safe for concurrent use.
type Mirror struct {
	// state packs an ownership epoch above the two status bits. Every
	// transition out of Idle starts a new epoch.
	state atomic.Uint64

	mu         sync.RWMutex
	desired    bool
	desiredGen uint64
	observed   Observed
	observedAt time.Time
	lastErr    error
	errAt      time.Time
}

// NewMirror returns an idle mirror with unknown observed state.
func NewMirror() *Mirror {
	return &Mirror{}
}

const statusBits = 2

// RefreshToken identifies one refresh ownership. Ending a refresh with a
// stale token has no effect.
type RefreshToken uint64

func packState(epoch uint64, s SyncStatus) uint64 {
	return epoch<<statusBits | uint64(s)
}

func unpackState(v uint64) (epoch uint64, s SyncStatus) {
	return v >> statusBits, SyncStatus(v & (1<<statusBits - 1))
}

// Status returns the current sync status.
func (m *Mirror) Status() SyncStatus {
	_, s := unpackState(m.state.Load())
	return s
}

// TryBeginRefresh moves Idle to RefreshInFlight. It returns false, leaving the
// status untouched, when a write or another refresh is in flight.
func (m *Mirror) TryBeginRefresh() (RefreshToken, bool) {
	for {
		v := m.state.Load()
		epoch, s := unpackState(v)
		if s != SyncIdle {
			return 0, false
		}
		next := packState(epoch+1, SyncRefreshInFlight)
		if m.state.CompareAndSwap(v, next) {
			return RefreshToken(next), true
		}
	}
}

// EndRefresh returns to Idle when tok still owns the mirror. A write that
// took ownership, or a newer refresh, is left alone.
func (m *Mirror) EndRefresh(tok RefreshToken) {
	epoch, _ := unpackState(uint64(tok))
	m.state.CompareAndSwap(uint64(tok), packState(epoch, SyncIdle))
}

// BeginWrite marks a write flush as owning the mirror.
func (m *Mirror) BeginWrite() {
	for {
		v := m.state.Load()
		epoch, _ := unpackState(v)
		if m.state.CompareAndSwap(v, packState(epoch+1, SyncWriteInFlight)) {
			return
		}
	}
}

// EndWrite releases write ownership.
func (m *Mirror) EndWrite() {
	for {
		v := m.state.Load()
		epoch, _ := unpackState(v)
		if m.state.CompareAndSwap(v, packState(epoch, SyncIdle)) {
			return
		}
	}
}

// SetDesired records the host's desired on/off intent.
func (m *Mirror) SetDesired(on bool) {
	m.mu.Lock()
	m.desired = on
	m.desiredGen++
	m.mu.Unlock()
}

// Desired returns the desired on/off intent.
func (m *Mirror) Desired() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.desired
}

// DesiredIntent returns the desired intent with its generation, which
// changes on every SetDesired.
func (m *Mirror) DesiredIntent() (on bool, gen uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.desired, m.desiredGen
}

// ResetDesired clears the desired intent only if no SetDesired happened
// since gen was read. It reports whether the reset took place.
func (m *Mirror) ResetDesired(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.desiredGen != gen {
		return false
	}
	m.desired = false
	return true
}

// Observed returns the last observed state, or nil when unknown.
func (m *Mirror) Observed() Observed {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.observed
}

// ApplyRefresh stores a refreshed observed state. The result is dropped and
// false returned when a write flush currently owns the mirror.
func (m *Mirror) ApplyRefresh(o Observed, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Status() == SyncWriteInFlight {
		return false
	}
	m.observed = o
	m.observedAt = at
	m.lastErr = nil
	return true
}

// SetObserved stores an observed state confirmed by a write flush.
func (m *Mirror) SetObserved(o Observed, at time.Time) {
	m.mu.Lock()
	m.observed = o
	m.observedAt = at
	m.lastErr = nil
	m.mu.Unlock()
}

// RecordError keeps the last failure for staleness reporting. Observed
// state is not touched.
func (m *Mirror) RecordError(err error, at time.Time) {
	m.mu.Lock()
	m.lastErr = err
	m.errAt = at
	m.mu.Unlock()
}

// Snapshot returns a consistent copy of the mirror.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Desired:    m.desired,
		Observed:   m.observed,
		Status:     m.Status(),
		ObservedAt: m.observedAt,
		LastError:  m.lastErr,
		ErrorAt:    m.errAt,
	}
}
