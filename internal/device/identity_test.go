package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHardwareAddress(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{name: "typical identifier", id: "1A23B456789A", want: "1a:23:b4:56:78:9a"},
		{name: "already lower case", id: "c0ffee001122", want: "c0:ff:ee:00:11:22"},
		{name: "odd length", id: "ABC", want: "ab:c"},
		{name: "two characters", id: "AB", want: "ab"},
		{name: "empty", id: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HardwareAddress(tt.id))
		})
	}
}

func TestIdentity_HardwareAddressIsStable(t *testing.T) {
	id := NewIdentity(Spec{ID: "1A23B456789A", Name: "Door", Type: TypeContact, HubID: "HUB1"})

	first := id.HardwareAddress()
	second := id.HardwareAddress()

	assert.Equal(t, "1a:23:b4:56:78:9a", first)
	assert.Equal(t, first, second)
	assert.Equal(t, "1A23B456789A", id.ID())
	assert.Equal(t, "Door", id.Name())
	assert.Equal(t, TypeContact, id.Type())
	assert.Equal(t, "HUB1", id.HubID())
}
