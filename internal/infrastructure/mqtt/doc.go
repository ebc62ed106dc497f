// Package mqtt provides the bridge's connection to the MQTT broker.
//
// The broker is the host side of the bridge: device characteristics are
// published retained on switchbot/state/{id}, set-desired commands arrive on
// switchbot/command/{id} and are acknowledged on switchbot/ack/{id}. The
// bridge's own liveness is published on switchbot/bridge/status, with a
// Last Will so that the host sees "offline" after a crash.
//
// The same client also carries the BLE gateway protocol when the local
// radio transport is enabled.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := mqtt.Topics{}.DeviceID(topic)
//	        return handleCommand(id, payload)
//	    })
package mqtt
