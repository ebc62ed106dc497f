package mqtt

import "strings"

// TopicPrefix is the root of every topic the bridge publishes or consumes.
const TopicPrefix = "switchbot"

// Topics provides builders for the bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.State("1A23B456789A") // "switchbot/state/1A23B456789A"
type Topics struct{}

// State returns the retained characteristic-state topic of a device.
func (Topics) State(deviceID string) string {
	return TopicPrefix + "/state/" + deviceID
}

// Command returns the set-desired topic of a device.
func (Topics) Command(deviceID string) string {
	return TopicPrefix + "/command/" + deviceID
}

// Ack returns the command acknowledgement topic of a device.
func (Topics) Ack(deviceID string) string {
	return TopicPrefix + "/ack/" + deviceID
}

// Health returns the retained bridge health topic.
func (Topics) Health() string {
	return TopicPrefix + "/health"
}

// BridgeStatus returns the retained online/offline topic used for LWT.
func (Topics) BridgeStatus() string {
	return TopicPrefix + "/bridge/status"
}

// AllCommands returns the wildcard subscription for every device command.
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// AllStates returns the wildcard subscription for every device state.
func (Topics) AllStates() string {
	return TopicPrefix + "/state/+"
}

// DeviceID extracts the device identifier from a per-device topic such as
// "switchbot/command/{id}". It returns false for any other shape.
func (Topics) DeviceID(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != TopicPrefix || parts[2] == "" {
		return "", false
	}
	switch parts[1] {
	case "state", "command", "ack":
		return parts[2], true
	default:
		return "", false
	}
}
