package ble

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

// Model codes carried in advertisements.
const (
	ModelBot     = "H"
	ModelContact = "d"
)

// Advertisement is a passive broadcast decoded by the driver.
type Advertisement struct {
	Address    string
	Model      string
	RSSI       int
	On         *bool
	Open       *bool
	Motion     *bool
	ReceivedAt time.Time
}

// Reading converts the advertisement into a transport-neutral reading.
func (a Advertisement) Reading() device.Reading {
	return device.Reading{Power: a.On, Open: a.Open, Motion: a.Motion}
}

// Peer is a discovered device that can be actuated directly.
type Peer interface {
	Address() string
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}
