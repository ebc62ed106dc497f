package device

// Update is one push to the host: either characteristic values or a fault
// marker for the role's fault characteristics.
type Update struct {
	Values map[Characteristic]any
	Fault  error
}

// ValuesUpdate renders an observed state as an Update.
func ValuesUpdate(r Role, o Observed) Update {
	return Update{Values: r.Characteristics(o)}
}

// FaultUpdate marks every fault characteristic of r with err.
func FaultUpdate(r Role, err error) Update {
	values := make(map[Characteristic]any, len(r.FaultCharacteristics()))
	for _, c := range r.FaultCharacteristics() {
		values[c] = nil
	}
	return Update{Values: values, Fault: err}
}

// IsFault reports whether the update carries a fault marker.
func (u Update) IsFault() bool {
	return u.Fault != nil
}
