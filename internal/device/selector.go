package device

// Transport identifies which of the two transports serves a device.
type Transport int

// Transports.
const (
	TransportRemote Transport = iota
	TransportLocal
)

// String returns "remote" or "local".
func (t Transport) String() string {
	if t == TransportLocal {
		return "local"
	}
	return "remote"
}

// IDSet is a set of device identifiers.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids. Empty identifiers are ignored.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set. A nil set contains nothing.
func (s IDSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Select returns TransportLocal when id is in the configured local-radio set
// and TransportRemote otherwise.
func Select(id string, localIDs IDSet) Transport {
	if localIDs.Contains(id) {
		return TransportLocal
	}
	return TransportRemote
}
