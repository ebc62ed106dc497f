// Package switchbot connects SwitchBot accessories to the host over MQTT.
//
// The Bridge enumerates devices (declared in configuration and, when a
// token is set, listed by the cloud API), builds one engine.Accessory per
// supported device and routes between the accessories and the broker:
//
//	switchbot/state/{id}    bridge -> host   retained characteristic state
//	switchbot/command/{id}  host -> bridge   set-desired On
//	switchbot/ack/{id}      bridge -> host   command acknowledgement
//	switchbot/health        bridge -> host   retained health, every interval
//
// Accessories seen on earlier runs are cached in SQLite so that devices the
// cloud no longer lists can be removed, and kept when enumeration fails.
// Observed states and write outcomes are optionally recorded in InfluxDB.
package switchbot
