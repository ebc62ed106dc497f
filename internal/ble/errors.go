package ble

import "errors"

// Sentinel errors for local radio operations. Scan misses and radio outages
// use device.ErrNotFound and device.ErrRadioUnavailable.
var (
	// ErrAckTimeout indicates the gateway did not confirm an actuation in time.
	ErrAckTimeout = errors.New("ble: actuation not acknowledged")

	// ErrActuationFailed indicates the gateway reported a failed actuation.
	ErrActuationFailed = errors.New("ble: actuation failed")

	// ErrClosed indicates the transport or driver has been closed.
	ErrClosed = errors.New("ble: closed")
)
