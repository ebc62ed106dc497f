package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // fall back to the cloud transport
//	}
var (
	// ErrNotFound is returned when a local scan finishes without seeing the
	// target hardware address.
	ErrNotFound = errors.New("device: not found during scan")

	// ErrRadioUnavailable is returned when the local radio cannot be used at all.
	ErrRadioUnavailable = errors.New("device: radio unavailable")

	// ErrNoBotMode is returned when a bot is in neither the switch nor the
	// press group, so no command can be built for it.
	ErrNoBotMode = errors.New("device: bot mode not configured")

	// ErrNotSuccess is returned when the cloud API answers with a message
	// other than "success".
	ErrNotSuccess = errors.New("device: cloud response not successful")

	// ErrNoAdvertisement is returned when no advertisement has been received
	// yet for a local device.
	ErrNoAdvertisement = errors.New("device: no advertisement received")

	// ErrUnsupportedRole is returned when an operation does not apply to the
	// device's role (for example actuating a contact sensor).
	ErrUnsupportedRole = errors.New("device: operation not supported for role")
)

// ErrorKind classifies failures for reporting.
type ErrorKind int

// Error kinds.
const (
	// KindUnknown covers unexpected failures, including recovered panics.
	KindUnknown ErrorKind = iota

	// KindRemote is a cloud request that failed or returned a non-success message.
	KindRemote

	// KindLocal is a radio scan, connect or actuate failure.
	KindLocal

	// KindConfig is a device whose configuration does not allow the operation.
	KindConfig
)

// String returns the kind name used in logs and fault markers.
func (k ErrorKind) String() string {
	switch k {
	case KindRemote:
		return "remote"
	case KindLocal:
		return "local"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error is a classified failure for a single device operation.
type Error struct {
	Kind     ErrorKind
	DeviceID string
	Op       string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Kind, e.Op, e.DeviceID, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind, device and operation.
// It returns nil when err is nil.
func NewError(kind ErrorKind, deviceID, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, DeviceID: deviceID, Op: op, Err: err}
}

// KindOf returns the kind of err. Errors that were never classified report
// KindUnknown.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}
