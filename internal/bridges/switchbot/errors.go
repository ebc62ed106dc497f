package switchbot

import "errors"

// Domain errors for the switchbot bridge.
var (
	// ErrUnknownDevice is returned for commands addressed to a device the
	// bridge does not manage.
	ErrUnknownDevice = errors.New("switchbot: unknown device")

	// ErrInvalidCommand is returned for commands that cannot be parsed or
	// name an unsupported characteristic.
	ErrInvalidCommand = errors.New("switchbot: invalid command")
)
