// Package logging provides structured logging for the SwitchBot bridge.
//
// This package wraps Go's standard log/slog package. Every entry carries
// service=switchbot-bridge and the build version; per-device loggers add
// device_id, device_name and transport.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Security
//
// Never log the cloud token or broker password.
package logging
