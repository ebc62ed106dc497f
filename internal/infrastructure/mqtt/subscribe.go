package mqtt

import (
	"fmt"
	"sort"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// subscriptionSet is the replay list used after a reconnect, keyed by the
// exact topic filter. The zero value is ready to use.
type subscriptionSet struct {
	mu      sync.RWMutex
	byTopic map[string]subscription
}

func (s *subscriptionSet) track(sub subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byTopic == nil {
		s.byTopic = make(map[string]subscription)
	}
	s.byTopic[sub.topic] = sub
}

func (s *subscriptionSet) untrack(topic string) {
	s.mu.Lock()
	delete(s.byTopic, topic)
	s.mu.Unlock()
}

func (s *subscriptionSet) has(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byTopic[topic]
	return ok
}

// snapshot returns the subscriptions ordered by topic.
func (s *subscriptionSet) snapshot() []subscription {
	s.mu.RLock()
	out := make([]subscription, 0, len(s.byTopic))
	for _, sub := range s.byTopic {
		out = append(out, sub)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].topic < out[j].topic })
	return out
}

// Subscribe registers handler for a topic filter and remembers it for
// replay after a reconnect.
//
// The bridge subscribes once to Topics.AllCommands and routes by
// Topics.DeviceID; the BLE gateway driver subscribes to its advert and
// ack topics the same way.
//
// Parameters:
//   - topic: Topic filter; + and # wildcards are allowed
//   - qos: 0, 1 or 2
//   - handler: Called for every matching message; panics are recovered
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or ErrSubscribeFailed
//
// Example:
//
//	err := client.Subscribe(mqtt.Topics{}.AllCommands(), 1, handleCommand)
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopicQoS(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Tracked first so a reconnect racing this call still replays it.
	c.subs.track(subscription{topic: topic, qos: qos, handler: handler})
	if err := await(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		c.subs.untrack(topic)
		return err
	}
	return nil
}

// Unsubscribe drops the subscription for the exact topic filter given to
// Subscribe. It is forgotten locally even if the broker call fails.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subs.untrack(topic)
	return await(c.client.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed)
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subs.mu.RLock()
	defer c.subs.mu.RUnlock()
	return len(c.subs.byTopic)
}

// HasSubscription reports whether the exact topic filter is tracked.
func (c *Client) HasSubscription(topic string) bool {
	return c.subs.has(topic)
}

// wrapHandler adapts a MessageHandler to paho, recovering panics and
// logging returned errors.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logError("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logWarn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
