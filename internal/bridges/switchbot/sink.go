package switchbot

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/mqtt"
)

// stateQoS is the QoS for state and ack messages.
const stateQoS = 1

// mqttSink publishes engine updates as retained state messages.
type mqttSink struct {
	publisher Publisher
	logger    func() Logger
}

// Push implements engine.Sink.
func (s *mqttSink) Push(deviceID string, u device.Update) {
	payload, err := json.Marshal(NewStateMessage(deviceID, u, time.Now()))
	if err != nil {
		s.logError("failed to encode state", deviceID, err)
		return
	}
	if err := s.publisher.Publish(mqtt.Topics{}.State(deviceID), payload, stateQoS, true); err != nil {
		s.logError("failed to publish state", deviceID, err)
	}
}

// clear removes the retained state of a device that is no longer managed.
func (s *mqttSink) clear(deviceID string) {
	if err := s.publisher.Publish(mqtt.Topics{}.State(deviceID), nil, stateQoS, true); err != nil {
		s.logError("failed to clear state", deviceID, err)
	}
}

func (s *mqttSink) logError(msg, deviceID string, err error) {
	if logger := s.logger(); logger != nil {
		logger.Error(msg, "device_id", deviceID, "error", err)
	}
}
