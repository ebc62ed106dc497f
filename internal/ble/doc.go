// Package ble is the local radio transport.
//
// A Transport wraps a radio Driver and offers three things to the engine:
// a timed scan filtered by hardware address, direct actuation of a found
// peer, and a continuous listener for passive advertisements. The latest
// advertisement per address is cached so that a refresh can be answered
// without a connection.
//
// One Transport is constructed per process and shared by every device that
// is configured for local radio.
//
// The package ships one Driver, GatewayDriver, which talks to a BLE gateway
// over MQTT:
//
//	{prefix}/status           retained "online" / "offline" from the gateway
//	{prefix}/advert/{mac}     advertisement JSON published by the gateway
//	{prefix}/scan             scan request published by the driver
//	{prefix}/command/{mac}    actuation request published by the driver
//	{prefix}/ack/{mac}        actuation result published by the gateway
//
// {mac} is the hardware address without separators, lower case.
package ble
