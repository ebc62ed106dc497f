package device

import (
	"strings"
	"sync"
)

// Type is the device-type tag reported by the cloud API.
type Type string

// Supported device types.
const (
	TypeBot     Type = "Bot"
	TypeContact Type = "Contact Sensor"
)

// Spec is the host-side description of a device, as enumerated from the
// cloud or declared in configuration.
type Spec struct {
	ID    string
	Name  string
	Type  Type
	HubID string
}

// Identity is the immutable identity of a device.
//
// The hardware address is derived lazily on first use and cached.
type Identity struct {
	id    string
	name  string
	typ   Type
	hubID string

	macOnce sync.Once
	mac     string
}

// NewIdentity creates an Identity from a Spec.
func NewIdentity(s Spec) *Identity {
	return &Identity{
		id:    s.ID,
		name:  s.Name,
		typ:   s.Type,
		hubID: s.HubID,
	}
}

// ID returns the device identifier.
func (i *Identity) ID() string { return i.id }

// Name returns the human-readable name.
func (i *Identity) Name() string { return i.name }

// Type returns the device-type tag.
func (i *Identity) Type() Type { return i.typ }

// HubID returns the parent hub identifier, or "" when the device has none.
func (i *Identity) HubID() string { return i.hubID }

// HardwareAddress returns the lower-case colon-separated address derived
// from the identifier, e.g. "1A23B456789A" -> "1a:23:b4:56:78:9a".
func (i *Identity) HardwareAddress() string {
	i.macOnce.Do(func() {
		i.mac = HardwareAddress(i.id)
	})
	return i.mac
}

// HardwareAddress derives a hardware address by inserting ':' every two
// characters of id and lower-casing the result. A trailing odd character
// forms its own group.
func HardwareAddress(id string) string {
	if id == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(id) + len(id)/2)
	for i := 0; i < len(id); i++ {
		if i > 0 && i%2 == 0 {
			b.WriteByte(':')
		}
		b.WriteByte(id[i])
	}
	return strings.ToLower(b.String())
}
