// Package openapi is the remote transport: a client for the SwitchBot cloud
// API.
//
// It fetches device status, sends commands and enumerates devices. Every
// response is wrapped in an envelope carrying an API status code and a
// message; only the message "success" counts as a successful status fetch.
//
// Command status codes are mapped to log lines only. The mapping never turns
// a code into an error for the caller:
//
//	100  accepted (debug)
//	151  command not supported for the device type
//	152  device not found
//	160  command not supported
//	161  device offline
//	171  hub offline
//	190  internal desync or malformed request
//	*    unknown (debug)
//
// Failures are returned as *device.Error values of kind KindRemote so that
// the engine can report them without inspecting HTTP details.
package openapi
