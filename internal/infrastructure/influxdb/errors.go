package influxdb

import "errors"

// Sentinel errors returned by Connect and HealthCheck.
//
// Write failures are never returned: the batching write API reports them
// asynchronously through the callback installed with SetOnError.
//
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry is off, run without it
//	}
var (
	// ErrNotConnected indicates Close has been called.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the server did not answer the startup ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates telemetry is turned off in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
