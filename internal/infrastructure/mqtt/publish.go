package mqtt

import "fmt"

// maxPayloadSize bounds a single message. Device state and command bodies
// are a few hundred bytes.
const maxPayloadSize = 1 << 20

func checkTopicQoS(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// Publish sends payload to topic and waits for the broker to accept it.
//
// Device state is published retained so a host reconnecting to the broker
// sees the last known characteristics. Commands and acks are not retained.
//
// Parameters:
//   - topic: Concrete topic, no wildcards
//   - payload: Message body, at most maxPayloadSize bytes
//   - qos: 0, 1 or 2
//   - retained: Whether the broker keeps the message for new subscribers
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or ErrPublishFailed
//
// Example:
//
//	err := client.Publish(mqtt.Topics{}.State(id), payload, 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopicQoS(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return await(c.client.Publish(topic, qos, retained, payload), defaultPublishTimeout, ErrPublishFailed)
}
