package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelect(t *testing.T) {
	local := NewIDSet("AA11", "BB22", "")

	tests := []struct {
		name string
		id   string
		set  IDSet
		want Transport
	}{
		{name: "listed id is local", id: "AA11", set: local, want: TransportLocal},
		{name: "unlisted id is remote", id: "CC33", set: local, want: TransportRemote},
		{name: "empty id is remote", id: "", set: local, want: TransportRemote},
		{name: "nil set is remote", id: "AA11", set: nil, want: TransportRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Repeated evaluation must give the same answer.
			for range 3 {
				assert.Equal(t, tt.want, Select(tt.id, tt.set))
			}
		})
	}
}

func TestTransport_String(t *testing.T) {
	assert.Equal(t, "local", TransportLocal.String())
	assert.Equal(t, "remote", TransportRemote.String())
}
