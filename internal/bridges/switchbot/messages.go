package switchbot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

// StateMessage carries a device's characteristics to the host.
// Topic: switchbot/state/{device_id}, QoS 1, retained.
type StateMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`

	// Values maps characteristic names to values. A characteristic carrying
	// a fault marker is present with a null value.
	Values map[string]any `json:"values"`

	// Known is false while the values are a fault marker.
	Known bool `json:"known"`

	// Fault describes the failure behind the marker.
	Fault *FaultInfo `json:"fault,omitempty"`
}

// FaultInfo describes a failure pushed to the host.
type FaultInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewStateMessage converts an engine update.
func NewStateMessage(deviceID string, u device.Update, at time.Time) StateMessage {
	values := make(map[string]any, len(u.Values))
	for c, v := range u.Values {
		values[string(c)] = v
	}

	msg := StateMessage{
		DeviceID:  deviceID,
		Timestamp: at.UTC(),
		Values:    values,
		Known:     !u.IsFault(),
	}
	if u.IsFault() {
		msg.Fault = &FaultInfo{
			Kind:    device.KindOf(u.Fault).String(),
			Message: u.Fault.Error(),
		}
	}
	return msg
}

// CommandMessage is sent by the host to set a characteristic.
// Topic: switchbot/command/{device_id}
type CommandMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// DeviceID may be omitted; the topic identifies the device.
	DeviceID string `json:"device_id,omitempty"`

	// Characteristic must be "On".
	Characteristic string `json:"characteristic"`

	// Value is a JSON boolean, 0/1, or "on"/"off".
	Value any `json:"value"`
}

// On returns the requested on/off value.
func (m CommandMessage) On() (bool, error) {
	if m.Characteristic != string(device.CharOn) {
		return false, fmt.Errorf("%w: characteristic %q", ErrInvalidCommand, m.Characteristic)
	}
	switch v := m.Value.(type) {
	case bool:
		return v, nil
	case float64:
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case string:
		switch strings.ToLower(v) {
		case "on", "true":
			return true, nil
		case "off", "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: value %v", ErrInvalidCommand, m.Value)
}

// ParseCommand decodes a command payload.
func ParseCommand(payload []byte) (CommandMessage, error) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return CommandMessage{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return cmd, nil
}

// AckStatus is the acknowledgement status of a command.
type AckStatus string

// Acknowledgement statuses.
const (
	// AckAccepted means the desired state was recorded and a write scheduled.
	AckAccepted AckStatus = "accepted"

	// AckFailed means the command was rejected.
	AckFailed AckStatus = "failed"
)

// Error codes for rejected commands.
const (
	ErrCodeInvalidCommand = "INVALID_COMMAND"
	ErrCodeNotConfigured  = "NOT_CONFIGURED"
	ErrCodeUnsupported    = "UNSUPPORTED"
)

// AckMessage acknowledges a command.
// Topic: switchbot/ack/{device_id}, QoS 1, not retained.
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError details a rejected command.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAckMessage builds a successful acknowledgement.
func NewAckMessage(cmd CommandMessage, deviceID string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Status:    AckAccepted,
	}
}

// NewAckError builds a failed acknowledgement.
func NewAckError(cmd CommandMessage, deviceID, code, message string) AckMessage {
	ack := NewAckMessage(cmd, deviceID)
	ack.Status = AckFailed
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// HealthStatus is the operational status of the bridge.
type HealthStatus string

// Health statuses.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's status.
// Topic: switchbot/health, QoS 1, retained.
type HealthMessage struct {
	Bridge         string            `json:"bridge"`
	Timestamp      time.Time         `json:"timestamp"`
	Status         HealthStatus      `json:"status"`
	Version        string            `json:"version"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	DevicesManaged int               `json:"devices_managed"`
	DevicesFaulted int               `json:"devices_faulted"`
	Connections    map[string]string `json:"connections,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}
