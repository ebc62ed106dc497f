package engine

import (
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

// Default timings.
const (
	DefaultRefreshInterval  = 300 * time.Second
	DefaultDebounce         = 100 * time.Millisecond
	DefaultRetryMax         = 5
	DefaultRetryDelay       = time.Second
	DefaultActuateScan      = 3 * time.Second
	DefaultOperationTimeout = 15 * time.Second

	// scanCycleFactor scales the refresh interval into the secondary scan period.
	scanCycleFactor = 60
)

// Options tune an Accessory. Zero fields take defaults.
type Options struct {
	// RefreshInterval is the refresh period (refresh_rate seconds).
	RefreshInterval time.Duration

	// Debounce is the quiet period before a write flush.
	Debounce time.Duration

	// RetryMax is the number of retries after the first local actuation
	// attempt. Zero takes the default; a negative value disables retries.
	RetryMax int

	// RetryDelay is the constant delay between local actuation attempts.
	RetryDelay time.Duration

	// ActuateScan is the discovery duration before a local actuation.
	ActuateScan time.Duration

	// ScanCycle is the secondary scan period. Default RefreshInterval x 60.
	ScanCycle time.Duration

	// ScanDuration is the length of a secondary scan. Default RefreshInterval.
	ScanDuration time.Duration

	// OperationTimeout bounds a single fetch, command or actuation attempt.
	OperationTimeout time.Duration

	// LocalIDs are the device identifiers served by the local radio.
	LocalIDs device.IDSet
}

// OptionsFromRefreshRate returns options for a refresh rate in seconds.
func OptionsFromRefreshRate(seconds int, localIDs device.IDSet) Options {
	return Options{
		RefreshInterval: time.Duration(seconds) * time.Second,
		LocalIDs:        localIDs,
	}
}

func (o Options) withDefaults() Options {
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	switch {
	case o.RetryMax == 0:
		o.RetryMax = DefaultRetryMax
	case o.RetryMax < 0:
		o.RetryMax = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.ActuateScan <= 0 {
		o.ActuateScan = DefaultActuateScan
	}
	if o.ScanCycle <= 0 {
		o.ScanCycle = o.RefreshInterval * scanCycleFactor
	}
	if o.ScanDuration <= 0 {
		o.ScanDuration = o.RefreshInterval
	}
	if o.OperationTimeout <= 0 {
		o.OperationTimeout = DefaultOperationTimeout
	}
	return o
}
