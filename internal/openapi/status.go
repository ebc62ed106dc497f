package openapi

// StatusCode is the API-level status code returned in a command response.
type StatusCode int

// Known status codes.
const (
	StatusAccepted          StatusCode = 100
	StatusUnsupportedType   StatusCode = 151
	StatusDeviceNotFound    StatusCode = 152
	StatusCommandNotSupport StatusCode = 160
	StatusDeviceOffline     StatusCode = 161
	StatusHubOffline        StatusCode = 171
	StatusInternalError     StatusCode = 190
)

// Severity is the log level a status code is reported at.
type Severity int

// Severities.
const (
	SeverityDebug Severity = iota
	SeverityError
)

// Describe returns the log message and severity for a status code.
func (c StatusCode) Describe() (string, Severity) {
	switch c {
	case StatusAccepted:
		return "command accepted", SeverityDebug
	case StatusUnsupportedType:
		return "command not supported by this device type", SeverityError
	case StatusDeviceNotFound:
		return "device not found", SeverityError
	case StatusCommandNotSupport:
		return "command is not supported", SeverityError
	case StatusDeviceOffline:
		return "device is offline", SeverityError
	case StatusHubOffline:
		return "hub device is offline", SeverityError
	case StatusInternalError:
		return "device internal error due to device states not synchronized with server, or command format is invalid", SeverityError
	default:
		return "unknown status code", SeverityDebug
	}
}

// LogStatusCode reports a command status code through the logger.
func (c *Client) LogStatusCode(deviceID string, code StatusCode) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger == nil {
		return
	}

	msg, sev := code.Describe()
	if sev == SeverityError {
		logger.Error(msg, "device_id", deviceID, "status_code", int(code))
		return
	}
	logger.Debug(msg, "device_id", deviceID, "status_code", int(code))
}
